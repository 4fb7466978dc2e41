package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManager_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)

	var order []string
	for _, name := range []string{"store", "cron", "http"} {
		name := name
		sm.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	assert.NoError(t, sm.Shutdown())
	assert.Equal(t, []string{"http", "cron", "store"}, order)

	// Hooks run once.
	assert.NoError(t, sm.Shutdown())
	assert.Len(t, order, 3)
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), 0)

	ran := false
	sm.Register("later", func(context.Context) error {
		ran = true
		return nil
	})
	sm.Register("broken", func(context.Context) error { return errors.New("close failed") })

	err := sm.Shutdown()
	assert.ErrorContains(t, err, "broken: close failed")
	assert.True(t, ran)
}

func TestShutdownManager_WaitOnContext(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)
	called := false
	sm.Register("x", func(context.Context) error {
		called = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, sm.Wait(ctx))
	assert.True(t, called)
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	assert.NotPanics(t, func() {
		defer RecoverPanic(logger, "test job")
		panic("bad")
	})
	assert.Contains(t, buf.String(), "Background task panicked")
	assert.Contains(t, buf.String(), "test job")
}
