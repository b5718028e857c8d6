package outbound

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherRunsAndCounts(t *testing.T) {
	d := New(zap.NewNop(), 2, 16, time.Second)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, d.Submit("ok", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	d.Submit("fail", func(context.Context) error { return errors.New("smtp down") })
	d.Submit("panic", func(context.Context) error { panic("boom") })

	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int32(5), ran.Load())
	stats := d.Stats()
	assert.Equal(t, int64(7), stats.Submitted)
	assert.Equal(t, int64(5), stats.Succeeded)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := New(zap.NewNop(), 1, 1, time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	d.Submit("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	assert.True(t, d.Submit("queued", func(context.Context) error { return nil }))
	assert.False(t, d.Submit("dropped", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int64(1), d.Stats().Dropped)
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := New(zap.NewNop(), 1, 4, time.Second)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.False(t, d.Submit("late", func(context.Context) error { return nil }))
	assert.Equal(t, int64(1), d.Stats().Dropped)
}

func TestInlineDispatcher(t *testing.T) {
	d := NewInline(zap.NewNop())
	var ran bool
	assert.True(t, d.Submit("sync", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	assert.Equal(t, int64(1), d.Stats().Succeeded)
}

func TestTaskTimeout(t *testing.T) {
	d := NewInline(zap.NewNop())
	d.timeout = 10 * time.Millisecond
	d.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.Equal(t, int64(1), d.Stats().Failed)
}
