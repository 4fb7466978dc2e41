package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, entry *Entry) error

func (f SinkFunc) AppendAuditEntry(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}

// MultiSink writes every entry to all sinks concurrently. A failing sink does not
// stop the others; the combined error is returned.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a fan-out sink. Nil sinks are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// AppendAuditEntry implements Sink
func (m *MultiSink) AppendAuditEntry(ctx context.Context, entry *Entry) error {
	if len(m.sinks) == 1 {
		return m.sinks[0].AppendAuditEntry(ctx, entry)
	}

	errs := make([]error, len(m.sinks))
	var g errgroup.Group
	for i, s := range m.sinks {
		g.Go(func() error {
			errs[i] = s.AppendAuditEntry(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// JSONSink writes entries as newline-delimited JSON
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink creates a sink writing to w
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// AppendAuditEntry implements Sink
func (s *JSONSink) AppendAuditEntry(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(entry); err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	return nil
}
