// Package worker consumes view events and keeps per-filter usage counters.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"superstore/internal/amqp"
	"superstore/internal/analytics"
	applog "superstore/internal/log"
)

// ErrConsumerStopped reports a consumer that returned while the worker was
// still running.
var ErrConsumerStopped = errors.New("view event consumer stopped")

// Consumer delivers view events to a handler until ctx is done.
// *amqp.Client satisfies it.
type Consumer interface {
	ConsumeViewComputed(ctx context.Context, handler func(context.Context, *amqp.ViewComputedMessage) error) error
}

// FilterUsage aggregates the events seen for one canonical filter key.
type FilterUsage struct {
	FilterKey     string            `json:"filter_key"`
	Filters       analytics.Filters `json:"filters"`
	Count         int64             `json:"count"`
	MatchedRows   int               `json:"matched_rows"`
	TotalDuration time.Duration     `json:"total_duration"`
	LastSeen      time.Time         `json:"last_seen"`
}

// AverageDuration is the mean computation time per event.
func (u FilterUsage) AverageDuration() time.Duration {
	if u.Count == 0 {
		return 0
	}
	return u.TotalDuration / time.Duration(u.Count)
}

// UsageWorker counts view computations per filter combination and reports
// the most requested ones on an interval.
type UsageWorker struct {
	mu     sync.Mutex
	usage  map[string]*FilterUsage
	total  int64
	logger *applog.Logger

	interval time.Duration
	topN     int
}

// NewUsageWorker creates a worker reporting every interval; a zero interval
// disables periodic reports.
func NewUsageWorker(logger *applog.Logger, interval time.Duration, topN int) *UsageWorker {
	if topN <= 0 {
		topN = 5
	}
	return &UsageWorker{
		usage:    make(map[string]*FilterUsage),
		logger:   logger.WithComponent(applog.ComponentWorker),
		interval: interval,
		topN:     topN,
	}
}

// HandleViewComputed records one event. Messages without a filter key are
// rejected as unprocessable.
func (w *UsageWorker) HandleViewComputed(ctx context.Context, msg *amqp.ViewComputedMessage) error {
	key := msg.FilterKey
	if key == "" {
		return fmt.Errorf("%w: missing filter key", amqp.ErrUnprocessable)
	}
	if msg.MatchedRows < 0 || msg.DurationMicros < 0 {
		return fmt.Errorf("%w: negative counters for %s", amqp.ErrUnprocessable, key)
	}

	w.mu.Lock()
	u, ok := w.usage[key]
	if !ok {
		u = &FilterUsage{FilterKey: key, Filters: msg.Filters}
		w.usage[key] = u
	}
	u.Count++
	u.MatchedRows = msg.MatchedRows
	u.TotalDuration += time.Duration(msg.DurationMicros) * time.Microsecond
	if msg.Timestamp.After(u.LastSeen) {
		u.LastSeen = msg.Timestamp
	}
	w.total++
	w.mu.Unlock()

	w.logger.DebugContext(ctx, "View event recorded",
		applog.NewFields().WithView(key, msg.MatchedRows).WithOperation(applog.OpConsume).ToSlice()...)
	return nil
}

// Top returns up to n usage entries, most requested first; ties break on
// the filter key.
func (w *UsageWorker) Top(n int) []FilterUsage {
	w.mu.Lock()
	out := make([]FilterUsage, 0, len(w.usage))
	for _, u := range w.usage {
		out = append(out, *u)
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FilterKey < out[j].FilterKey
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Total is the number of events recorded.
func (w *UsageWorker) Total() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// Report logs a summary of the most requested filters.
func (w *UsageWorker) Report(ctx context.Context) {
	top := w.Top(w.topN)
	w.logger.InfoContext(ctx, "View usage summary",
		"events", w.Total(),
		"distinct_filters", w.distinct())
	for i, u := range top {
		w.logger.InfoContext(ctx, "Popular filter",
			"rank", i+1,
			applog.FieldFilters, u.FilterKey,
			"count", u.Count,
			applog.FieldMatchedRows, u.MatchedRows,
			"avg_duration_us", u.AverageDuration().Microseconds())
	}
}

func (w *UsageWorker) distinct() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.usage)
}

// Run consumes events from c until ctx is done, reporting on the worker's
// interval, and logs a final summary on exit.
func (w *UsageWorker) Run(ctx context.Context, c Consumer) error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.ConsumeViewComputed(ctx, w.HandleViewComputed) }()

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			w.Report(ctx)
		case err := <-errCh:
			w.Report(context.WithoutCancel(ctx))
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				return ErrConsumerStopped
			}
			return fmt.Errorf("consume view events: %w", err)
		}
	}
}
