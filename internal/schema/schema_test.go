package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/dictate-go/internal/config"
	"github.com/raphaelgruber/dictate-go/internal/models"
)

func TestDefault_Valid(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	for _, cat := range models.AllCategories() {
		coll, err := reg.CollectionFor(cat)
		require.NoError(t, err, "category %s", cat)
		assert.NotEmpty(t, coll.TitleField(), "category %s", cat)
	}
}

func TestDefault_Accessors(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "Meeting", reg.TitleField("notes"))
	assert.Equal(t, "Name", reg.TitleField("tasks"))
	assert.Equal(t, "", reg.TitleField("missing"))

	fields := reg.FieldsFor(models.CategoryTask)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"Name", "Deadline", "Action Date", "Status"}, names)

	rels := reg.RelationsFor(models.CategoryNote)
	require.Len(t, rels, 3)
	assert.Equal(t, "Course", rels[2].Name)
	assert.Equal(t, "classes", rels[2].Target)
	assert.Equal(t, MergeUnion, rels[0].Merge)

	coll, err := reg.CollectionForKind(models.KindPerson)
	require.NoError(t, err)
	assert.Equal(t, "people", coll)

	ingredients, ok := reg.Collection("ingredients")
	require.True(t, ok)
	amount, ok := ingredients.Field("Amount")
	require.True(t, ok)
	assert.Equal(t, MergeAdd, amount.Merge)

	name, _ := ingredients.Field("Name")
	assert.Equal(t, MergeReplace, name.Merge)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "two title fields",
			yaml: `
categories: {note: notes}
collections:
  notes:
    fields:
      - {name: A, type: title}
      - {name: B, type: title}
`,
			wantErr: "exactly one title field, has 2",
		},
		{
			name: "dangling relation",
			yaml: `
categories: {note: notes}
collections:
  notes:
    fields: [{name: A, type: title}]
    relations: [{key: people, name: People, target: people}]
`,
			wantErr: `relation target "people" is not a collection`,
		},
		{
			name: "unmapped category",
			yaml: `
categories: {note: notes}
collections:
  notes:
    fields: [{name: A, type: title}]
`,
			wantErr: "categories.task: not mapped",
		},
		{
			name: "select without options",
			yaml: `
categories: {note: notes}
collections:
  notes:
    fields: [{name: A, type: title}, {name: Kind, type: select}]
`,
			wantErr: "select field needs options",
		},
		{
			name: "add on text",
			yaml: `
categories: {note: notes}
collections:
  notes:
    fields: [{name: A, type: title}, {name: Body, type: rich_text, merge: add}]
`,
			wantErr: "merge add needs a number field",
		},
		{
			name: "kind to missing collection",
			yaml: `
categories: {note: notes}
entity_kinds: {person: people}
collections:
  notes:
    fields: [{name: A, type: title}]
`,
			wantErr: `entity_kinds.person: collection "people" is not defined`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var cfgErr *config.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	_, err := Parse([]byte("collections:\n  notes:\n    titel: Meeting\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode yaml")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, defaultYAML, 0o644))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, reg.Collections(), 11)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDatabaseIDs(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	env := map[string]string{}
	for _, c := range reg.Collections() {
		env[c.DatabaseEnv] = "db-" + c.Key
	}
	ids, err := reg.DatabaseIDs(func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "db-tasks", ids["tasks"])

	delete(env, "TASKS_DB_KEY")
	_, err = reg.DatabaseIDs(func(k string) string { return env[k] })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TASKS_DB_KEY")
}
