package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"superstore/internal/amqp"
	"superstore/internal/analytics"
	"superstore/internal/cache"
	"superstore/internal/core"
	"superstore/internal/dataset"
)

// Publisher announces computed views. *amqp.Client satisfies it.
type Publisher interface {
	PublishViewComputed(ctx context.Context, msg *amqp.ViewComputedMessage) error
}

// Options describes the data domain offered by the dashboard controls.
type Options struct {
	Regions      []string `json:"regions"`
	Categories   []string `json:"categories"`
	Years        []int    `json:"years"`
	DiscountMin  float64  `json:"discount_min"`
	DiscountMax  float64  `json:"discount_max"`
	DiscountStep float64  `json:"discount_step"`
}

// Stats summarises service activity for the metrics endpoint.
type Stats struct {
	Rows     int         `json:"rows"`
	Source   string      `json:"source"`
	Computed uint64      `json:"views_computed"`
	Cache    cache.Stats `json:"cache"`
}

// ViewService serves dashboard views over one immutable dataset. Results are
// cached by canonical filter key and identical concurrent requests share one
// computation.
type ViewService struct {
	ds        *dataset.Dataset
	cache     cache.Cache[uint64, analytics.Views]
	publisher Publisher
	group     singleflight.Group
	computed  atomic.Uint64
}

// NewViewService wires the dataset with an optional cache and publisher.
// Either may be nil.
func NewViewService(ds *dataset.Dataset, c cache.Cache[uint64, analytics.Views], p Publisher) *ViewService {
	return &ViewService{ds: ds, cache: c, publisher: p}
}

// Dataset returns the dataset backing the service.
func (s *ViewService) Dataset() *dataset.Dataset { return s.ds }

// Views returns the five views for f. The only possible error is the
// context's.
func (s *ViewService) Views(ctx context.Context, f analytics.Filters) (analytics.Views, error) {
	if err := ctx.Err(); err != nil {
		return analytics.Views{}, err
	}

	key := f.Key()
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			slog.DebugContext(ctx, "View cache hit", "component", "cache", "filters", f.String())
			return v, nil
		}
	}

	res, _, _ := s.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		start := time.Now()
		v := analytics.ComputeViews(s.ds, f)
		took := time.Since(start)
		s.computed.Add(1)

		if s.cache != nil {
			s.cache.Set(key, v)
		}
		slog.DebugContext(ctx, "View computed",
			"component", "pipeline",
			"filters", v.Filters.String(),
			"matched_rows", v.MatchedRows,
			"duration_us", took.Microseconds())

		s.publish(context.WithoutCancel(ctx), amqp.NewViewComputedMessage(f, v.MatchedRows, took))
		return v, nil
	})
	return res.(analytics.Views), nil
}

func (s *ViewService) publish(ctx context.Context, msg *amqp.ViewComputedMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishViewComputed(ctx, msg); err != nil {
		// the view is already served; events are best effort
		slog.WarnContext(ctx, "Failed to publish view event", "component", "amqp", "error", err)
	}
}

// Options returns the control domains derived from the dataset.
func (s *ViewService) Options() Options {
	return Options{
		Regions:      s.ds.Regions(),
		Categories:   s.ds.Categories(),
		Years:        s.ds.Years(),
		DiscountMin:  core.MinDiscount,
		DiscountMax:  core.MaxDiscount,
		DiscountStep: core.DiscountStep,
	}
}

// Stats returns counters for the metrics endpoint.
func (s *ViewService) Stats() Stats {
	st := Stats{Rows: s.ds.Len(), Source: s.ds.Source(), Computed: s.computed.Load()}
	if s.cache != nil {
		st.Cache = s.cache.Stats()
	}
	return st
}

// Close releases the publisher if it holds resources.
func (s *ViewService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
