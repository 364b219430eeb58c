package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photopipe/internal/logger"
)

func TestAddRejectsBadSchedule(t *testing.T) {
	s := New(logger.Discard())
	assert.Error(t, s.Add("bad", "every tuesday", func(context.Context) error { return nil }))
	assert.Error(t, s.Add("five-field", "0 4 * * *", func(context.Context) error { return nil }))
}

func TestWrappedJobRecoversAndReports(t *testing.T) {
	s := New(logger.Discard())

	var runs atomic.Int32
	s.wrap("ok", func(ctx context.Context) error {
		runs.Add(1)
		return ctx.Err()
	}).Run()
	s.wrap("fails", func(context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}).Run()
	assert.NotPanics(t, func() {
		s.wrap("panics", func(context.Context) error { panic("oh no") }).Run()
	})
	assert.Equal(t, int32(2), runs.Load())
}

func TestStopCancelsContext(t *testing.T) {
	s := New(logger.Discard())
	started := make(chan struct{}, 1)
	var cancelled atomic.Bool

	require.NoError(t, s.Add("long", "* * * * * *", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}
	s.Stop()
	assert.True(t, cancelled.Load())
}
