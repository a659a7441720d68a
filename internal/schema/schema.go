// Package schema holds the declarative mapping from categories to workspace
// collections, their fields and their relations.
package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/dictate-go/internal/config"
	"github.com/raphaelgruber/dictate-go/internal/models"
)

//go:embed default.yaml
var defaultYAML []byte

// MergeStrategy says how an update combines a new value with the stored one.
type MergeStrategy string

const (
	MergeReplace MergeStrategy = "replace"
	MergeAdd     MergeStrategy = "add"
	MergeUnion   MergeStrategy = "union"
)

// Field is one declared property of a collection.
type Field struct {
	Name    string              `yaml:"name"`
	Type    models.PropertyType `yaml:"type"`
	Merge   MergeStrategy       `yaml:"merge,omitempty"`
	Options []string            `yaml:"options,omitempty"`
	Default string              `yaml:"default,omitempty"`
}

// Relation links a collection to records of a target collection.
type Relation struct {
	Key    string        `yaml:"key"`
	Name   string        `yaml:"name"`
	Target string        `yaml:"target"`
	Merge  MergeStrategy `yaml:"merge,omitempty"`
}

// Collection is the schema of one workspace collection.
type Collection struct {
	Key         string     `yaml:"-"`
	Name        string     `yaml:"name"`
	DatabaseEnv string     `yaml:"database_env"`
	Fields      []Field    `yaml:"fields"`
	Relations   []Relation `yaml:"relations,omitempty"`
}

// TitleField returns the name of the collection's title property.
func (c *Collection) TitleField() string {
	for _, f := range c.Fields {
		if f.Type == models.PropTitle {
			return f.Name
		}
	}
	return ""
}

// Field looks up a declared field by name.
func (c *Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relation looks up a relation by key.
func (c *Collection) Relation(key string) (Relation, bool) {
	for _, r := range c.Relations {
		if r.Key == key {
			return r, true
		}
	}
	return Relation{}, false
}

type document struct {
	Categories  map[string]string      `yaml:"categories"`
	EntityKinds map[string]string      `yaml:"entity_kinds"`
	Collections map[string]*Collection `yaml:"collections"`
}

// Registry is the validated, read-only schema. Safe for concurrent use.
type Registry struct {
	collections map[string]*Collection
	categories  map[models.Category]string
	kinds       map[models.EntityKind]string
	order       []string
}

// Default loads the embedded workspace layout.
func Default() (*Registry, error) {
	return Parse(defaultYAML)
}

// LoadFile reads a registry from a YAML file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %q: %w", path, err)
	}
	defer f.Close()

	reg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("schema: parse %q: %w", path, err)
	}
	return reg, nil
}

// Parse decodes and validates a registry from raw YAML.
func Parse(data []byte) (*Registry, error) {
	return Load(bytes.NewReader(data))
}

// Load decodes a registry from r and validates it. Validation failures are
// returned as a *config.ConfigurationError.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: decode yaml: %w", err)
	}

	reg := &Registry{
		collections: make(map[string]*Collection, len(doc.Collections)),
		categories:  make(map[models.Category]string, len(doc.Categories)),
		kinds:       make(map[models.EntityKind]string, len(doc.EntityKinds)),
	}
	for key, c := range doc.Collections {
		if c == nil {
			c = &Collection{}
		}
		c.Key = key
		for i := range c.Fields {
			if c.Fields[i].Merge == "" {
				c.Fields[i].Merge = MergeReplace
			}
		}
		for i := range c.Relations {
			if c.Relations[i].Merge == "" {
				c.Relations[i].Merge = MergeUnion
			}
		}
		reg.collections[key] = c
		reg.order = append(reg.order, key)
	}
	sort.Strings(reg.order)
	for cat, coll := range doc.Categories {
		reg.categories[models.Category(cat)] = coll
	}
	for kind, coll := range doc.EntityKinds {
		reg.kinds[models.EntityKind(kind)] = coll
	}

	if err := reg.Validate(); err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}
	return reg, nil
}

// Validate checks the registry is internally consistent and returns every
// problem found.
func (r *Registry) Validate() error {
	var errs []error

	for _, key := range r.order {
		c := r.collections[key]
		titles := 0
		seen := make(map[string]bool, len(c.Fields))
		for _, f := range c.Fields {
			if f.Name == "" {
				errs = append(errs, fmt.Errorf("collections.%s: field name is required", key))
				continue
			}
			if seen[f.Name] {
				errs = append(errs, fmt.Errorf("collections.%s.%s: duplicate field", key, f.Name))
			}
			seen[f.Name] = true
			if f.Type == models.PropTitle {
				titles++
			}
			errs = append(errs, validateField(key, f)...)
		}
		if titles != 1 {
			errs = append(errs, fmt.Errorf("collections.%s: must have exactly one title field, has %d", key, titles))
		}
		for _, rel := range c.Relations {
			if rel.Key == "" || rel.Name == "" {
				errs = append(errs, fmt.Errorf("collections.%s: relation key and name are required", key))
			}
			if _, ok := r.collections[rel.Target]; !ok {
				errs = append(errs, fmt.Errorf("collections.%s.%s: relation target %q is not a collection", key, rel.Key, rel.Target))
			}
			if rel.Merge != MergeUnion && rel.Merge != MergeReplace {
				errs = append(errs, fmt.Errorf("collections.%s.%s: relation merge %q is invalid", key, rel.Key, rel.Merge))
			}
		}
	}

	for _, cat := range models.AllCategories() {
		coll, ok := r.categories[cat]
		if !ok {
			errs = append(errs, fmt.Errorf("categories.%s: not mapped to a collection", cat))
			continue
		}
		if _, ok := r.collections[coll]; !ok {
			errs = append(errs, fmt.Errorf("categories.%s: collection %q is not defined", cat, coll))
		}
	}
	for cat := range r.categories {
		if !cat.Valid() {
			errs = append(errs, fmt.Errorf("categories.%s: unknown category", cat))
		}
	}
	for kind, coll := range r.kinds {
		if _, ok := r.collections[coll]; !ok {
			errs = append(errs, fmt.Errorf("entity_kinds.%s: collection %q is not defined", kind, coll))
		}
	}

	return errors.Join(errs...)
}

func validateField(coll string, f Field) []error {
	var errs []error
	prefix := fmt.Sprintf("collections.%s.%s", coll, f.Name)

	switch f.Type {
	case models.PropTitle, models.PropRichText, models.PropDate, models.PropNumber,
		models.PropCheckbox, models.PropURL:
	case models.PropStatus, models.PropSelect:
		if len(f.Options) == 0 {
			errs = append(errs, fmt.Errorf("%s: %s field needs options", prefix, f.Type))
		}
	case models.PropRelation:
		errs = append(errs, fmt.Errorf("%s: declare relations under relations, not fields", prefix))
	default:
		errs = append(errs, fmt.Errorf("%s: unknown type %q", prefix, f.Type))
	}

	switch f.Merge {
	case MergeReplace:
	case MergeAdd:
		if f.Type != models.PropNumber {
			errs = append(errs, fmt.Errorf("%s: merge add needs a number field", prefix))
		}
	default:
		errs = append(errs, fmt.Errorf("%s: merge %q is invalid for fields", prefix, f.Merge))
	}

	if f.Default != "" && len(f.Options) > 0 && !slices.Contains(f.Options, f.Default) {
		errs = append(errs, fmt.Errorf("%s: default %q is not an option", prefix, f.Default))
	}
	return errs
}

// CollectionFor returns the collection a category writes to.
func (r *Registry) CollectionFor(cat models.Category) (*Collection, error) {
	key, ok := r.categories[cat]
	if !ok {
		return nil, fmt.Errorf("schema: %w: %q", models.ErrUnknownCategory, cat)
	}
	return r.collections[key], nil
}

// CollectionForKind returns the collection key entities of kind live in.
func (r *Registry) CollectionForKind(kind models.EntityKind) (string, error) {
	key, ok := r.kinds[kind]
	if !ok {
		return "", fmt.Errorf("schema: no collection for entity kind %q", kind)
	}
	return key, nil
}

// Collection looks up a collection by key.
func (r *Registry) Collection(key string) (*Collection, bool) {
	c, ok := r.collections[key]
	return c, ok
}

// Collections returns every collection ordered by key.
func (r *Registry) Collections() []*Collection {
	out := make([]*Collection, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.collections[key])
	}
	return out
}

// FieldsFor returns the fields declared for a category's collection.
func (r *Registry) FieldsFor(cat models.Category) []Field {
	c, err := r.CollectionFor(cat)
	if err != nil {
		return nil
	}
	return c.Fields
}

// RelationsFor returns the relations declared for a category's collection.
func (r *Registry) RelationsFor(cat models.Category) []Relation {
	c, err := r.CollectionFor(cat)
	if err != nil {
		return nil
	}
	return c.Relations
}

// TitleField returns the title property name of a collection, or "".
func (r *Registry) TitleField(collection string) string {
	c, ok := r.collections[collection]
	if !ok {
		return ""
	}
	return c.TitleField()
}

// DatabaseIDs resolves each collection's external database id through
// lookup (normally os.Getenv). Missing ids are reported together.
func (r *Registry) DatabaseIDs(lookup func(string) string) (map[string]string, error) {
	ids := make(map[string]string, len(r.collections))
	var errs []error
	for _, key := range r.order {
		c := r.collections[key]
		if c.DatabaseEnv == "" {
			errs = append(errs, fmt.Errorf("collections.%s: database_env is not set", key))
			continue
		}
		id := lookup(c.DatabaseEnv)
		if id == "" {
			errs = append(errs, fmt.Errorf("%s is required for collection %s", c.DatabaseEnv, key))
			continue
		}
		ids[key] = id
	}
	if len(errs) > 0 {
		return nil, &config.ConfigurationError{Err: errors.Join(errs...)}
	}
	return ids, nil
}
