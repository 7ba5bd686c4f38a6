package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superstore/internal/amqp"
	"superstore/internal/analytics"
	applog "superstore/internal/log"
)

func newTestWorker(t *testing.T, interval time.Duration) (*UsageWorker, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := applog.New(applog.Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
	require.NoError(t, err)
	return NewUsageWorker(l, interval, 2), &buf
}

func event(f analytics.Filters, matched int, took time.Duration) *amqp.ViewComputedMessage {
	return amqp.NewViewComputedMessage(f, matched, took)
}

func TestHandleViewComputedCountsByKey(t *testing.T) {
	w, _ := newTestWorker(t, 0)
	ctx := context.Background()

	west := analytics.Filters{Regions: []string{"West"}, Discount: analytics.Range{Lo: 0, Hi: 0.8}}
	westAgain := analytics.Filters{Regions: []string{"West", "West"}, Discount: analytics.Range{Lo: 0.8, Hi: 0}}
	all := analytics.DefaultFilters()

	require.NoError(t, w.HandleViewComputed(ctx, event(west, 10, 200*time.Microsecond)))
	require.NoError(t, w.HandleViewComputed(ctx, event(westAgain, 10, 400*time.Microsecond)))
	require.NoError(t, w.HandleViewComputed(ctx, event(all, 40, time.Millisecond)))

	assert.EqualValues(t, 3, w.Total())
	top := w.Top(0)
	require.Len(t, top, 2)
	assert.Equal(t, west.String(), top[0].FilterKey)
	assert.EqualValues(t, 2, top[0].Count)
	assert.Equal(t, 300*time.Microsecond, top[0].AverageDuration())
	assert.EqualValues(t, 1, top[1].Count)

	assert.Len(t, w.Top(1), 1)
}

func TestHandleViewComputedRejectsInvalid(t *testing.T) {
	w, _ := newTestWorker(t, 0)

	err := w.HandleViewComputed(context.Background(), &amqp.ViewComputedMessage{})
	assert.ErrorIs(t, err, amqp.ErrUnprocessable)

	err = w.HandleViewComputed(context.Background(), &amqp.ViewComputedMessage{FilterKey: "k", MatchedRows: -1})
	assert.ErrorIs(t, err, amqp.ErrUnprocessable)
	assert.Zero(t, w.Total())
}

func TestTopBreaksTiesByKey(t *testing.T) {
	w, _ := newTestWorker(t, 0)
	for _, key := range []string{"b", "a", "c"} {
		require.NoError(t, w.HandleViewComputed(context.Background(), &amqp.ViewComputedMessage{FilterKey: key}))
	}
	top := w.Top(0)
	assert.Equal(t, []string{"a", "b", "c"}, []string{top[0].FilterKey, top[1].FilterKey, top[2].FilterKey})
}

type fakeConsumer struct {
	events []*amqp.ViewComputedMessage
	err    error
	// stop returns nil once the events are delivered
	stop bool
}

func (f *fakeConsumer) ConsumeViewComputed(ctx context.Context, handler func(context.Context, *amqp.ViewComputedMessage) error) error {
	for _, e := range f.events {
		if err := handler(ctx, e); err != nil {
			return err
		}
	}
	if f.err != nil || f.stop {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunStopsOnCancel(t *testing.T) {
	w, logs := newTestWorker(t, 10*time.Millisecond)
	c := &fakeConsumer{events: []*amqp.ViewComputedMessage{
		event(analytics.DefaultFilters(), 4, time.Millisecond),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, c) }()

	require.Eventually(t, func() bool { return w.Total() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Contains(t, logs.String(), "View usage summary")
	assert.Contains(t, logs.String(), "Popular filter")
}

func TestRunReturnsConsumerError(t *testing.T) {
	w, _ := newTestWorker(t, 0)
	boom := errors.New("broker gone")

	err := w.Run(context.Background(), &fakeConsumer{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestRunReportsConsumerThatStops(t *testing.T) {
	w, _ := newTestWorker(t, 0)
	c := &fakeConsumer{stop: true, events: []*amqp.ViewComputedMessage{
		event(analytics.DefaultFilters(), 2, time.Millisecond),
	}}

	err := w.Run(context.Background(), c)
	require.ErrorIs(t, err, ErrConsumerStopped)
	assert.NotContains(t, err.Error(), "%!w")
	assert.EqualValues(t, 1, w.Total())
}
