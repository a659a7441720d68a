package workspace

import (
	"context"
	"time"

	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
)

// Instrumented wraps a Store and records call timings.
type Instrumented struct {
	Store
	metrics *metrics.Collector
}

// Instrument returns s wrapped with timing collection. A nil collector
// returns s unchanged.
func Instrument(s Store, c *metrics.Collector) Store {
	if c == nil {
		return s
	}
	return &Instrumented{Store: s, metrics: c}
}

func (i *Instrumented) Query(ctx context.Context, collection string, f Filter) ([]Record, error) {
	defer i.observe(metrics.OpStoreQuery, time.Now())
	return i.Store.Query(ctx, collection, f)
}

func (i *Instrumented) AllTitles(ctx context.Context, collection string) ([]string, error) {
	defer i.observe(metrics.OpStoreQuery, time.Now())
	return i.Store.AllTitles(ctx, collection)
}

func (i *Instrumented) Get(ctx context.Context, id string) (Record, error) {
	defer i.observe(metrics.OpStoreQuery, time.Now())
	return i.Store.Get(ctx, id)
}

func (i *Instrumented) Create(ctx context.Context, payload models.RecordPayload) (Record, error) {
	defer i.observe(metrics.OpStoreCreate, time.Now())
	return i.Store.Create(ctx, payload)
}

func (i *Instrumented) Update(ctx context.Context, id string, props map[string]models.PropertyValue) (Record, error) {
	defer i.observe(metrics.OpStoreUpdate, time.Now())
	return i.Store.Update(ctx, id, props)
}

func (i *Instrumented) observe(op string, start time.Time) {
	i.metrics.RecordTiming(op, time.Since(start))
}
