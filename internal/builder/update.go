package builder

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/schema"
	"github.com/raphaelgruber/dictate-go/internal/workspace"
)

// UpdateOp is one change to an existing record. The concrete types are
// AddNumber, MergeRelation and SetProperty.
type UpdateOp interface {
	// apply computes the new property value from the stored record and
	// describes the change. changed is false when the stored value already
	// satisfies the op.
	apply(rec workspace.Record) (name string, value models.PropertyValue, detail string, changed bool)
}

// AddNumber adds Delta to a number property. A missing or null stored value
// counts as zero.
type AddNumber struct {
	Field string
	Delta float64
}

func (op AddNumber) apply(rec workspace.Record) (string, models.PropertyValue, string, bool) {
	before := rec.Number(op.Field)
	after := before + op.Delta
	return op.Field, models.NumberValue(after),
		fmt.Sprintf("%s %s -> %s", op.Field, formatNumber(before), formatNumber(after)), op.Delta != 0
}

// MergeRelation adds IDs to a relation property, keeping existing links
// first and dropping duplicates.
type MergeRelation struct {
	Relation string
	IDs      []string
}

func (op MergeRelation) apply(rec workspace.Record) (string, models.PropertyValue, string, bool) {
	existing := rec.RelationIDs(op.Relation)
	merged := lo.Uniq(append(append([]string(nil), existing...), lo.Compact(op.IDs)...))
	added := len(merged) - len(lo.Uniq(existing))
	return op.Relation, models.RelationValue(merged),
		fmt.Sprintf("linked %d %s", added, op.Relation), added > 0
}

// SetProperty overwrites a property.
type SetProperty struct {
	Field string
	Value models.PropertyValue
}

func (op SetProperty) apply(workspace.Record) (string, models.PropertyValue, string, bool) {
	return op.Field, op.Value, "set " + op.Field, true
}

// Updates derives the operations that merge the input into an existing record of
// the category's collection. Each field follows its merge strategy and only
// fields present in in.Fields are touched.
func (b *Builder) Updates(in Input) ([]UpdateOp, []models.ActionLogEntry, error) {
	coll, err := b.registry.CollectionFor(in.Category)
	if err != nil {
		return nil, nil, fmt.Errorf("updates %s: %w", in.Category, err)
	}

	var ops []UpdateOp
	var entries []models.ActionLogEntry
	for _, f := range coll.Fields {
		raw, ok := in.Fields[f.Name]
		if !ok || f.Type == models.PropTitle {
			continue
		}
		v, problem := coerce(f, raw, true)
		if problem != "" {
			entries = append(entries, models.InfoEntry("Field '%s' not updated: %s.", f.Name, problem))
			continue
		}
		if f.Merge == schema.MergeAdd && v.Number != nil {
			ops = append(ops, AddNumber{Field: f.Name, Delta: *v.Number})
			continue
		}
		ops = append(ops, SetProperty{Field: f.Name, Value: v})
	}

	for _, key := range sortedKeys(in.Relations) {
		rel, ok := coll.Relation(key)
		if !ok {
			entries = append(entries, models.InfoEntry("Skipped relation '%s': not defined for %s database.", key, coll.Key))
			continue
		}
		ids := lo.Uniq(lo.Compact(in.Relations[key]))
		if len(ids) == 0 {
			continue
		}
		if rel.Merge == schema.MergeReplace {
			ops = append(ops, SetProperty{Field: rel.Name, Value: models.RelationValue(ids)})
			continue
		}
		ops = append(ops, MergeRelation{Relation: rel.Name, IDs: ids})
	}
	return ops, entries, nil
}

// Apply evaluates ops against rec. It returns the properties to write and a
// description of each effective change.
func Apply(rec workspace.Record, ops []UpdateOp) (map[string]models.PropertyValue, []string) {
	props := make(map[string]models.PropertyValue, len(ops))
	var details []string
	for _, op := range ops {
		name, value, detail, changed := op.apply(rec)
		if !changed {
			continue
		}
		props[name] = value
		details = append(details, detail)
	}
	return props, details
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
