package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Category
	}{
		{"plain", "task", CategoryTask},
		{"uppercase", "NOTE", CategoryNote},
		{"padded", "  wordle \n", CategoryWordle},
		{"space separated", "person update", CategoryPersonUpdate},
		{"hyphenated", "person-update", CategoryPersonUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCategory_Unknown(t *testing.T) {
	_, err := ParseCategory("shopping")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCategory))
}

func TestAllCategories_IsCopy(t *testing.T) {
	cats := AllCategories()
	require.Len(t, cats, 9)
	cats[0] = "mutated"
	assert.Equal(t, CategoryNote, AllCategories()[0])
}

func TestActionLog(t *testing.T) {
	var log ActionLog
	log.Append(InfoEntry("classified as %s", CategoryTask))
	log.Append(CreatedEntry("people", "Nora", "p1", "https://example.test/p1"))
	log.Append(CreatedEntry("tasks", "Call Nora", "t1", ""))

	assert.Equal(t, 2, log.Count(ActionCreated))
	assert.Equal(t, []string{
		"classified as task",
		"Created new page 'Nora' in people database.",
		"Created new page 'Call Nora' in tasks database.",
	}, log.Messages())
}

func TestUpdatedEntry(t *testing.T) {
	e := UpdatedEntry("ingredients", "Eggs", "i1", "", "Amount 3 → 5")
	assert.Equal(t, ActionUpdated, e.Kind)
	assert.Equal(t, "Updated 'Eggs' in ingredients database: Amount 3 → 5.", e.Message)
}

func TestResolvedEntity_Resolved(t *testing.T) {
	assert.True(t, ResolvedEntity{RecordID: "x", Tier: TierExact}.Resolved())
	assert.False(t, ResolvedEntity{Tier: TierUnresolved}.Resolved())
}

func TestRecordIDString(t *testing.T) {
	s, err := RecordIDString(surrealmodels.NewRecordID("recording", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	_, err = RecordIDString(surrealmodels.NewRecordID("recording", 42))
	assert.Error(t, err)
}
