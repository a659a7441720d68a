// Package workspace is the persistence boundary to the external workspace
// database the pipeline writes records into.
package workspace

import (
	"context"
	"errors"

	"github.com/raphaelgruber/dictate-go/internal/models"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// FilterOp selects how a title filter compares.
type FilterOp int

const (
	// TitleEquals matches titles exactly.
	TitleEquals FilterOp = iota
	// TitleContains matches titles containing the value, ignoring case.
	TitleContains
)

// Filter restricts a query on a collection's title.
type Filter struct {
	Op    FilterOp
	Value string
}

// Equals builds an exact title filter.
func Equals(v string) Filter { return Filter{Op: TitleEquals, Value: v} }

// Contains builds a case-insensitive substring title filter.
func Contains(v string) Filter { return Filter{Op: TitleContains, Value: v} }

// Record is a stored workspace record. Relations appear in Properties as
// relation-typed values keyed by property name.
type Record struct {
	ID         string                          `json:"id"`
	URL        string                          `json:"url,omitempty"`
	Collection string                          `json:"collection"`
	Title      string                          `json:"title"`
	Properties map[string]models.PropertyValue `json:"properties,omitempty"`
}

// Property returns a property by name.
func (r Record) Property(name string) (models.PropertyValue, bool) {
	v, ok := r.Properties[name]
	return v, ok
}

// Number returns a numeric property, or 0 when absent, null or not a number.
func (r Record) Number(name string) float64 {
	v, ok := r.Properties[name]
	if !ok || v.Null || v.Number == nil {
		return 0
	}
	return *v.Number
}

// RelationIDs returns the ids of a relation property.
func (r Record) RelationIDs(name string) []string {
	return r.Properties[name].Relation
}

// Store is the external workspace database.
type Store interface {
	// Query returns the records of collection whose title matches f, in
	// store order.
	Query(ctx context.Context, collection string, f Filter) ([]Record, error)
	// Get loads one record by id.
	Get(ctx context.Context, id string) (Record, error)
	// Create inserts a record built from payload.
	Create(ctx context.Context, payload models.RecordPayload) (Record, error)
	// Update replaces the given properties of an existing record.
	Update(ctx context.Context, id string, props map[string]models.PropertyValue) (Record, error)
	// AllTitles lists every title in collection.
	AllTitles(ctx context.Context, collection string) ([]string, error)
}

// propertiesOf flattens a payload into stored properties: scalar fields plus
// relations as relation values.
func propertiesOf(p models.RecordPayload) map[string]models.PropertyValue {
	props := make(map[string]models.PropertyValue, len(p.Properties)+len(p.Relations))
	for name, v := range p.Properties {
		props[name] = v
	}
	for name, ids := range p.Relations {
		props[name] = models.RelationValue(append([]string(nil), ids...))
	}
	if p.TitleField != "" {
		props[p.TitleField] = models.TextValue(models.PropTitle, p.Title)
	}
	return props
}
