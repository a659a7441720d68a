package workspace

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/raphaelgruber/dictate-go/internal/models"
)

// MemStore is an in-memory Store. Safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*Record)}
}

// Seed inserts title-only records into collection and returns them.
func (s *MemStore) Seed(collection, titleField string, titles ...string) []Record {
	out := make([]Record, 0, len(titles))
	for _, title := range titles {
		rec, _ := s.Create(context.Background(), models.RecordPayload{
			Collection: collection,
			TitleField: titleField,
			Title:      title,
		})
		out = append(out, rec)
	}
	return out
}

// Records returns every record of collection in insertion order.
func (s *MemStore) Records(collection string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, id := range s.order {
		if r := s.records[id]; r.Collection == collection {
			out = append(out, clone(r))
		}
	}
	return out
}

func (s *MemStore) Query(ctx context.Context, collection string, f Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(f.Value)
	var out []Record
	for _, id := range s.order {
		r := s.records[id]
		if r.Collection != collection {
			continue
		}
		switch f.Op {
		case TitleEquals:
			if r.Title != f.Value {
				continue
			}
		case TitleContains:
			if !strings.Contains(strings.ToLower(r.Title), needle) {
				continue
			}
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return clone(r), nil
}

func (s *MemStore) Create(ctx context.Context, payload models.RecordPayload) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	id := uuid.NewString()
	r := &Record{
		ID:         id,
		URL:        "memory://" + payload.Collection + "/" + id,
		Collection: payload.Collection,
		Title:      payload.Title,
		Properties: propertiesOf(payload),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = r
	s.order = append(s.order, id)
	return clone(r), nil
}

func (s *MemStore) Update(ctx context.Context, id string, props map[string]models.PropertyValue) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	for name, v := range props {
		r.Properties[name] = v
		if v.Type == models.PropTitle {
			r.Title = v.Text
		}
	}
	return clone(r), nil
}

func (s *MemStore) AllTitles(ctx context.Context, collection string) ([]string, error) {
	recs, err := s.Query(ctx, collection, Contains(""))
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(recs))
	for i, r := range recs {
		titles[i] = r.Title
	}
	return titles, nil
}

func clone(r *Record) Record {
	out := *r
	out.Properties = maps.Clone(r.Properties)
	return out
}
