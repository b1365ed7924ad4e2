package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(t.Context(), "delete", "deleteMessage", func() error {
		if calls.Add(1) < 3 {
			return &tele.Error{Code: 502, Description: "Bad Gateway"}
		}
		return nil
	}))
	d.Close()
	require.EqualValues(t, 3, calls.Load())
	require.Zero(t, d.ErrorCount())
}

func TestDispatcherGivesUpOnClientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "unpin", "unpinChatMessage", func() error {
		calls.Add(1)
		return &tele.Error{Code: 400, Description: "Bad Request: message to unpin not found"}
	}))
	d.Close()
	require.EqualValues(t, 1, calls.Load())
	require.EqualValues(t, 1, d.ErrorCount())
}

func TestDispatcherStopsWhenDeadlineIsShort(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Hour, MaxDuration: 50 * time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(t.Context(), "respond", "answerCallbackQuery", func() error {
		calls.Add(1)
		return &tele.Error{Code: 500}
	}))
	d.Close()
	require.EqualValues(t, 1, calls.Load())
	require.EqualValues(t, 1, d.ErrorCount())
}

func TestDispatcherQueueLimits(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(t.Context(), "a", "", func() error { close(started); <-block; return nil }))
	<-started
	require.NoError(t, d.Enqueue(t.Context(), "b", "", func() error { return nil }))
	require.ErrorIs(t, d.Enqueue(t.Context(), "c", "", func() error { return nil }), ErrQueueFull)
	require.Error(t, d.Enqueue(t.Context(), "nil", "", nil))

	close(block)
	d.Close()
	d.Close()
	require.ErrorIs(t, d.Enqueue(t.Context(), "d", "", func() error { return errors.New("late") }), ErrQueueClosed)
}
