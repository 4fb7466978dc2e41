package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultStream is the Redis stream entries are published to
const DefaultStream = "entitle:audit"

// RedisStreamSink publishes entries to a Redis stream so downstream consumers
// (admin dashboards, SIEM shippers) can follow changes with XREAD.
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamSink creates a sink. An empty stream uses DefaultStream.
func NewRedisStreamSink(client *redis.Client, stream string) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{client: client, stream: stream}
}

// WithMaxLen caps the stream at roughly n entries. Zero disables trimming.
func (s *RedisStreamSink) WithMaxLen(n int64) *RedisStreamSink {
	s.maxLen = n
	return s
}

// AppendAuditEntry implements Sink
func (s *RedisStreamSink) AppendAuditEntry(ctx context.Context, entry *Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"id":              entry.ID,
			"action":          string(entry.Action),
			"organization_id": entry.OrganizationID,
			"entry":           string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish audit entry: %w", err)
	}
	return nil
}

// DecodeStreamMessage turns a stream message written by RedisStreamSink back
// into an Entry.
func DecodeStreamMessage(msg redis.XMessage) (*Entry, error) {
	raw, ok := msg.Values["entry"].(string)
	if !ok {
		return nil, fmt.Errorf("stream message %s has no entry field", msg.ID)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("failed to decode stream message %s: %w", msg.ID, err)
	}
	return &e, nil
}
