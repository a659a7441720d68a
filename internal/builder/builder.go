// Package builder turns extracted fields and resolved relations into
// store-ready record payloads and update operations.
package builder

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/parser"
	"github.com/raphaelgruber/dictate-go/internal/schema"
)

const dateLayout = "2006-01-02"

// Input is everything the builder needs for one record.
type Input struct {
	Category models.Category
	Title    string
	Fields   models.ExtractedFields
	// Relations maps relation keys to record ids in resolution order.
	Relations map[string][]string
	// Body is free text turned into content blocks.
	Body string
}

// Builder builds payloads against a schema registry.
type Builder struct {
	registry  *schema.Registry
	logger    *slog.Logger
	blockSize int
}

// New creates a builder.
func New(registry *schema.Registry, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{registry: registry, logger: logger, blockSize: parser.DefaultMaxRunes}
}

// Build assembles the payload for a new record. Every field the schema
// declares for the category is present; absent values are explicit nulls.
// Coercion problems and unknown relation keys are reported as log entries.
// The only error is a category without a collection.
func (b *Builder) Build(in Input) (models.RecordPayload, []models.ActionLogEntry, error) {
	coll, err := b.registry.CollectionFor(in.Category)
	if err != nil {
		return models.RecordPayload{}, nil, fmt.Errorf("build %s: %w", in.Category, err)
	}

	var entries []models.ActionLogEntry
	titleField := coll.TitleField()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSpace(in.Fields.String(titleField))
	}
	if title == "" {
		title = parser.FirstHeading(in.Body)
	}

	props := make(map[string]models.PropertyValue, len(coll.Fields))
	for _, f := range coll.Fields {
		if f.Type == models.PropTitle {
			props[f.Name] = models.TextValue(models.PropTitle, title)
			continue
		}
		raw, ok := in.Fields[f.Name]
		v, problem := coerce(f, raw, ok)
		if problem != "" {
			entries = append(entries, models.InfoEntry("Field '%s' left empty: %s.", f.Name, problem))
		}
		props[f.Name] = v
	}
	for _, name := range sortedKeys(in.Fields) {
		if _, ok := coll.Field(name); !ok {
			b.logger.Info("extracted field not in schema", "field", name, "collection", coll.Key)
			entries = append(entries, models.InfoEntry("Skipped field '%s': not defined for %s database.", name, coll.Key))
		}
	}

	relations, relEntries := b.relations(coll, in.Relations)
	entries = append(entries, relEntries...)

	payload := models.RecordPayload{
		Collection: coll.Key,
		TitleField: titleField,
		Title:      title,
		Properties: props,
		Relations:  relations,
	}
	if body := strings.TrimSpace(in.Body); body != "" {
		payload.Content = parser.ParseBlocks(body, b.blockSize)
	}
	return payload, entries, nil
}

// relations maps relation keys to store property names, dropping
// unresolved ids and keys the collection does not declare.
func (b *Builder) relations(coll *schema.Collection, in map[string][]string) (map[string][]string, []models.ActionLogEntry) {
	if len(in) == 0 {
		return nil, nil
	}
	var entries []models.ActionLogEntry
	out := make(map[string][]string, len(in))
	for _, key := range sortedKeys(in) {
		rel, ok := coll.Relation(key)
		if !ok {
			b.logger.Warn("relation not declared, skipping", "collection", coll.Key, "relation", key)
			entries = append(entries, models.InfoEntry("Skipped relation '%s': not defined for %s database.", key, coll.Key))
			continue
		}
		ids := lo.Uniq(lo.Compact(in[key]))
		if len(ids) == 0 {
			continue
		}
		out[rel.Name] = append(out[rel.Name], ids...)
		out[rel.Name] = lo.Uniq(out[rel.Name])
	}
	if len(out) == 0 {
		return nil, entries
	}
	return out, entries
}

// coerce converts a raw extracted value to the field's property type.
// problem is non-empty when a present value could not be used.
func coerce(f schema.Field, raw any, present bool) (v models.PropertyValue, problem string) {
	if !present || raw == nil {
		return empty(f), ""
	}

	switch f.Type {
	case models.PropRichText, models.PropURL, models.PropTitle:
		s := strings.TrimSpace(toString(raw))
		if s == "" {
			return empty(f), ""
		}
		return models.TextValue(f.Type, s), ""

	case models.PropDate:
		s := strings.TrimSpace(toDateString(raw))
		if s == "" {
			return empty(f), ""
		}
		if _, err := time.Parse(dateLayout, s); err != nil {
			return empty(f), fmt.Sprintf("%q is not a YYYY-MM-DD date", s)
		}
		return models.TextValue(models.PropDate, s), ""

	case models.PropNumber:
		n, ok := toNumber(raw)
		if !ok {
			return empty(f), fmt.Sprintf("%v is not a number", raw)
		}
		return models.NumberValue(n), ""

	case models.PropCheckbox:
		b, ok := toBool(raw)
		if !ok {
			return empty(f), fmt.Sprintf("%v is not a yes/no value", raw)
		}
		return models.PropertyValue{Type: models.PropCheckbox, Checkbox: b}, ""

	case models.PropStatus, models.PropSelect:
		s := strings.TrimSpace(toString(raw))
		if s == "" {
			return empty(f), ""
		}
		opt, ok := lo.Find(f.Options, func(o string) bool { return strings.EqualFold(o, s) })
		if !ok {
			return empty(f), fmt.Sprintf("%q is not one of %s", s, strings.Join(f.Options, ", "))
		}
		return models.TextValue(f.Type, opt), ""
	}

	return empty(f), fmt.Sprintf("unsupported type %s", f.Type)
}

// empty is the value stored when a field has nothing: the schema default
// for status and select fields, false for checkboxes, null otherwise.
func empty(f schema.Field) models.PropertyValue {
	switch {
	case f.Type == models.PropCheckbox:
		return models.PropertyValue{Type: models.PropCheckbox}
	case f.Default != "" && (f.Type == models.PropStatus || f.Type == models.PropSelect):
		return models.TextValue(f.Type, f.Default)
	}
	return models.NullValue(f.Type)
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toDateString(raw any) string {
	switch v := raw.(type) {
	case time.Time:
		return v.Format(dateLayout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format(dateLayout)
	default:
		return toString(raw)
	}
}

func toNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case *int:
		if v == nil {
			return 0, false
		}
		return float64(*v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	}
	return 0, false
}

func toBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "y":
			return true, true
		case "no", "n":
			return false, true
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
