package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/dictate-go/internal/llm/llmtest"
	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
)

// Wednesday.
var testNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

const (
	matchClassify   = "sort personal dictation"
	matchTask       = "summary of the task"
	matchDeadline   = "Return only the deadline"
	matchMentions   = "people, companies and classes"
	matchNoteTitle  = "body of a note"
	matchNoteBody   = "parse elements of a dictation"
	matchIngredient = "pantry changes"
	matchRecipe     = "dish and its ingredients"
	matchRec        = "Extract the recommendation"
	matchRestaurant = "Extract the restaurant"
	matchPerson     = "news about a person"
	matchWordle     = "Wordle scores"
	matchSemantic   = "match a spoken name"
)

func newTestGateway(m *llmtest.Model) (*Gateway, *metrics.Collector) {
	collector := metrics.NewCollector()
	g := NewGateway(NewModelFrom(m, "scripted", collector), Options{
		Now:      func() time.Time { return testNow },
		Location: time.UTC,
		SelfName: "Mark",
		Opponent: "Lorna",
	})
	return g, collector
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  models.Category
	}{
		{"plain", "task", models.CategoryTask},
		{"trailing period", "Wordle.", models.CategoryWordle},
		{"quoted", `"note"`, models.CategoryNote},
		{"padded mixed case", "  Person_Update\n", models.CategoryPersonUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := llmtest.New().On(matchClassify, tt.reply)
			g, collector := newTestGateway(m)

			got, err := g.Classify(context.Background(), "anything")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			calls := m.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, 0.0, calls[0].Temperature)
			assert.Equal(t, int64(1), collector.Snapshot().LLMClassify.Count)
		})
	}
}

func TestClassify_OnlyKnownCategories(t *testing.T) {
	for _, reply := range []string{"task", "shopping list", "", "note or task", "recipe!", "IDEA"} {
		g, _ := newTestGateway(llmtest.New().On(matchClassify, reply))
		got, err := g.Classify(context.Background(), "text")
		if err != nil {
			var ce *ClassificationError
			require.True(t, errors.As(err, &ce), "reply %q", reply)
			assert.Equal(t, reply, ce.Raw)
			continue
		}
		assert.Contains(t, models.AllCategories(), got, "reply %q", reply)
	}
}

func TestClassify_ProviderErrors(t *testing.T) {
	g, _ := newTestGateway(llmtest.New().OnError(matchClassify, errors.New("connection reset")))
	_, err := g.Classify(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFatalAPI))

	g, _ = newTestGateway(llmtest.New().OnError(matchClassify, errors.New("HTTP 401: invalid api key")))
	_, err = g.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, ErrFatalAPI)
}

func TestExtract_TaskWithRelativeDeadline(t *testing.T) {
	m := llmtest.New().
		On(matchTask, "Pick up dry cleaning").
		On(matchMentions, `{"people": [], "companies": [], "classes": []}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryTask, "On Tuesday, I need to pick up my dry cleaning.")
	require.NoError(t, err)

	assert.Equal(t, "Pick up dry cleaning", ex.Title)
	assert.Equal(t, "2026-10-20", ex.Fields["Deadline"])
	assert.Equal(t, "2026-10-20", ex.Fields["Action Date"])
	assert.Empty(t, ex.Mentions)
	assert.Empty(t, ex.Warnings)
	assert.Zero(t, m.CallsMatching(matchDeadline), "relative phrase should not need the model")

	for _, c := range m.Calls() {
		switch {
		case c.System == taskSummarySystemPrompt:
			assert.Equal(t, 0.7, c.Temperature)
		case c.System == mentionsSystemPrompt:
			assert.Equal(t, 0.0, c.Temperature)
			assert.True(t, c.JSONMode)
		}
	}
}

func TestExtract_TaskDeadlineFromModel(t *testing.T) {
	m := llmtest.New().
		On(matchTask, "Pay rent").
		On(matchDeadline, "2026-12-01").
		On(matchMentions, `{}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryTask, "Pay rent on December first")
	require.NoError(t, err)
	assert.Equal(t, "2026-12-01", ex.Fields["Deadline"])

	calls := m.Calls()
	for _, c := range calls {
		if c.System == deadlineSystemPrompt(AnchorsFor(testNow)) {
			assert.Contains(t, c.System, "today is Wednesday, 2026-10-14")
			assert.Contains(t, c.System, "return 2026-10-15")
			assert.Equal(t, 0.0, c.Temperature)
		}
	}
}

func TestExtract_TaskDeadlineGarbageFallsBackToTomorrow(t *testing.T) {
	m := llmtest.New().
		On(matchTask, "Water the plants").
		On(matchDeadline, "whenever you like").
		On(matchMentions, `{}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryTask, "Water the plants")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", ex.Fields["Deadline"])
	require.Len(t, ex.Warnings, 1)
	assert.Contains(t, ex.Warnings[0], "deadline")
}

func TestExtract_TaskMentionsSkipSpeaker(t *testing.T) {
	m := llmtest.New().
		On(matchTask, "Call Nora").
		On(matchMentions, `{"people": ["Nora", "Mark", "nora"], "companies": ["Acme"], "classes": ["Biology"]}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryTask, "Remind me to call Nora tomorrow about Acme")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", ex.Fields["Deadline"])
	assert.Equal(t, []models.EntityMention{
		{Name: "Nora", Kind: models.KindPerson, Relation: "people"},
		{Name: "Acme", Kind: models.KindCompany, Relation: "organization"},
	}, ex.Mentions)
}

func TestExtract_TaskSummaryFailureIsWarning(t *testing.T) {
	m := llmtest.New().
		OnError(matchTask, errors.New("connection reset")).
		On(matchMentions, `{}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryTask, "Buy stamps today")
	require.NoError(t, err)
	assert.Equal(t, "Buy stamps today", ex.Title)
	assert.Len(t, ex.Warnings, 1)
}

func TestExtract_FatalErrorAborts(t *testing.T) {
	m := llmtest.New().OnError(matchTask, errors.New("insufficient credit balance"))
	g, _ := newTestGateway(m)

	_, err := g.Extract(context.Background(), models.CategoryTask, "Buy stamps today")
	assert.ErrorIs(t, err, ErrFatalAPI)
}

func TestExtract_Note(t *testing.T) {
	m := llmtest.New().
		On(matchNoteBody, "The quarterly review went well.\nSam will run the next one.").
		On(matchNoteTitle, "Quarterly review").
		On(matchMentions, `{"people": ["Sam"], "companies": ["Acme"], "classes": []}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryNote, "Make a note that the quarterly review went well. Sam will run the next one.")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly review", ex.Title)
	assert.Equal(t, "The quarterly review went well.\nSam will run the next one.", ex.Body)
	assert.Equal(t, "2026-10-14", ex.Fields["Date"])
	assert.Equal(t, []models.EntityMention{
		{Name: "Sam", Kind: models.KindPerson, Relation: "people"},
		{Name: "Acme", Kind: models.KindCompany, Relation: "company"},
	}, ex.Mentions)
}

func TestExtract_Ingredients(t *testing.T) {
	m := llmtest.New().On(matchIngredient,
		"```json\n{\"ingredients\": [{\"name\": \"egg\", \"quantity\": 2}, {\"name\": \"butter\", \"quantity\": -1}, {\"name\": \"flour\"}, {\"name\": \" \"}]}\n```")
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryIngredient, "Bought two eggs and flour, used the butter")
	require.NoError(t, err)
	assert.Equal(t, []models.EntityMention{
		{Name: "egg", Kind: models.KindIngredient, Quantity: 2},
		{Name: "butter", Kind: models.KindIngredient, Quantity: -1},
		{Name: "flour", Kind: models.KindIngredient, Quantity: 1},
	}, ex.Mentions)
}

func TestExtract_MalformedJSONYieldsEmptyDefault(t *testing.T) {
	m := llmtest.New().On(matchIngredient, "eggs, I think?")
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryIngredient, "eggs")
	require.NoError(t, err)
	assert.Empty(t, ex.Mentions)
	assert.Len(t, ex.Warnings, 2)
}

func TestExtract_Recipe(t *testing.T) {
	m := llmtest.New().On(matchRecipe, `{"recipe": "Lasagna", "ingredients": ["spinach", "ricotta", "Spinach"]}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryRecipe, "Made the lasagna again with spinach and ricotta")
	require.NoError(t, err)
	assert.Equal(t, "Lasagna", ex.Title)
	assert.Equal(t, []models.EntityMention{
		{Name: "Lasagna", Kind: models.KindRecipe},
		{Name: "spinach", Kind: models.KindIngredient, Relation: "ingredients"},
		{Name: "ricotta", Kind: models.KindIngredient, Relation: "ingredients"},
	}, ex.Mentions)
	assert.Equal(t, 1, ex.Fields["Times Made"])
	assert.Equal(t, "2026-10-14", ex.Fields["Last Made"])
}

func TestExtract_Recommendation(t *testing.T) {
	m := llmtest.New().On(matchRec, `{"title": "Piranesi", "type": "book", "recommended_by": "Priya"}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryRecommendation, "Priya says I have to read Piranesi")
	require.NoError(t, err)
	assert.Equal(t, "Piranesi", ex.Title)
	assert.Equal(t, "Book", ex.Fields["Type"])
	assert.Equal(t, []models.EntityMention{{Name: "Priya", Kind: models.KindPerson, Relation: "recommended_by"}}, ex.Mentions)
}

func TestExtract_Restaurant(t *testing.T) {
	m := llmtest.New().On(matchRestaurant, `{"name": "Lupa", "cuisine": "Italian", "location": "Bleecker St", "visited": false, "recommended_by": "Dan"}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryRestaurant, "Dan says Lupa on Bleecker has the best cacio e pepe")
	require.NoError(t, err)
	assert.Equal(t, "Lupa", ex.Title)
	assert.Equal(t, "Italian", ex.Fields["Cuisine"])
	assert.Equal(t, false, ex.Fields["Visited"])
	require.Len(t, ex.Mentions, 1)
	assert.Equal(t, "Dan", ex.Mentions[0].Name)
}

func TestExtract_PersonUpdate(t *testing.T) {
	m := llmtest.New().On(matchPerson, `{"person": "Jessica", "update": "Started a new job at Stripe.", "company": "Stripe"}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryPersonUpdate, "Jessica just started a new job at Stripe")
	require.NoError(t, err)
	assert.Equal(t, []models.EntityMention{
		{Name: "Jessica", Kind: models.KindPerson},
		{Name: "Stripe", Kind: models.KindCompany, Relation: "company"},
	}, ex.Mentions)
	assert.Equal(t, "Started a new job at Stripe.", ex.Fields["Latest Update"])
	assert.Equal(t, "2026-10-14", ex.Fields["Last Contact"])
}

func TestExtract_PersonUpdateWithoutPersonFails(t *testing.T) {
	g, _ := newTestGateway(llmtest.New().On(matchPerson, `{"person": ""}`))
	_, err := g.Extract(context.Background(), models.CategoryPersonUpdate, "someone moved")
	assert.Error(t, err)
}

func TestExtract_WordleDeterministic(t *testing.T) {
	m := llmtest.New()
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryWordle, "Lorna beat me 3-4")
	require.NoError(t, err)
	assert.Equal(t, "Wordle 2026-10-14", ex.Title)
	assert.Equal(t, 4, ex.Fields["Mark"])
	assert.Equal(t, 3, ex.Fields["Lorna"])
	assert.Empty(t, m.Calls())

	ex, err = g.Extract(context.Background(), models.CategoryWordle, "We both tied at Wordle with a score of 2")
	require.NoError(t, err)
	assert.Equal(t, 2, ex.Fields["Mark"])
	assert.Equal(t, 2, ex.Fields["Lorna"])
}

func TestExtract_WordleModelFallback(t *testing.T) {
	m := llmtest.New().On(matchWordle, `{"self": 5, "opponent": 9}`)
	g, _ := newTestGateway(m)

	ex, err := g.Extract(context.Background(), models.CategoryWordle, "Wordle took me five tries, Lorna failed")
	require.NoError(t, err)
	assert.Equal(t, 5, ex.Fields["Mark"])
	_, ok := ex.Fields["Lorna"]
	assert.False(t, ok, "out of range score is dropped")
}

func TestExtract_UnknownCategory(t *testing.T) {
	g, _ := newTestGateway(llmtest.New())
	_, err := g.Extract(context.Background(), models.Category("shopping"), "x")
	assert.ErrorIs(t, err, models.ErrUnknownCategory)
}

func TestFindBestSemanticMatch(t *testing.T) {
	candidates := []string{"Jessica Alvarez", "Jess Park", "Acme Corp"}

	tests := []struct {
		name  string
		reply string
		want  string
		ok    bool
	}{
		{"verbatim", "Jessica Alvarez", "Jessica Alvarez", true},
		{"case differs", "jess park", "Jess Park", true},
		{"list marker", "- Acme Corp", "Acme Corp", true},
		{"no match", "NO_MATCH", "", false},
		{"hallucinated", "Jessica Jones", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := llmtest.New().On(matchSemantic, tt.reply)
			g, _ := newTestGateway(m)

			got, ok, err := g.FindBestSemanticMatch(context.Background(), "Jessica", candidates)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reply, g.LastRaw())
		})
	}
}

func TestFindBestSemanticMatch_NoCandidates(t *testing.T) {
	m := llmtest.New()
	g, _ := newTestGateway(m)

	_, ok, err := g.FindBestSemanticMatch(context.Background(), "Jessica", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, m.Calls())
}
