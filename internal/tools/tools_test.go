package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/dictate-go/internal/builder"
	"github.com/raphaelgruber/dictate-go/internal/llm"
	"github.com/raphaelgruber/dictate-go/internal/llm/llmtest"
	"github.com/raphaelgruber/dictate-go/internal/matcher"
	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/schema"
	"github.com/raphaelgruber/dictate-go/internal/service"
	"github.com/raphaelgruber/dictate-go/internal/tools"
	"github.com/raphaelgruber/dictate-go/internal/workspace"
)

const dictation = "I need to send a follow-up email to Jessica by Friday"

// testLogger discards output so tool errors do not clutter test runs.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHistory struct {
	recordings []models.Recording
	activities []models.Activity
	err        error
}

func (h *fakeHistory) Recent(_ context.Context, limit int) ([]models.Recording, error) {
	if h.err != nil {
		return nil, h.err
	}
	if limit > 0 && limit < len(h.recordings) {
		return h.recordings[:limit], nil
	}
	return h.recordings, nil
}

func (h *fakeHistory) Activities(_ context.Context, _ string) ([]models.Activity, error) {
	return h.activities, h.err
}

type env struct {
	session *mcp.ClientSession
	store   *workspace.MemStore
	model   *llmtest.Model
	jobs    *service.JobManager
}

func newEnv(t *testing.T, m *llmtest.Model, history tools.HistoryReader) *env {
	t.Helper()
	logger := testLogger()

	reg, err := schema.Default()
	require.NoError(t, err)
	store := workspace.NewMemStore()
	collector := metrics.NewCollector()
	gw := llm.NewGateway(llm.NewModelFrom(m, "scripted", collector), llm.Options{
		Now:      func() time.Time { return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC) },
		Location: time.UTC,
		Logger:   logger,
	})
	match := matcher.New(store, reg, gw, collector, logger)
	pipeline := service.NewPipeline(service.Dependencies{
		Gateway:  gw,
		Matcher:  match,
		Builder:  builder.New(reg, logger),
		Registry: reg,
		Store:    store,
		Metrics:  collector,
		Logger:   logger,
	})
	jobs := service.NewJobManager(pipeline, 2, logger)

	server := mcp.NewServer(&mcp.Implementation{Name: "test-dictate", Version: "0.0.1-test"}, nil)
	deps := &tools.Dependencies{
		Pipeline:   pipeline,
		Jobs:       jobs,
		Classifier: gw,
		Matcher:    match,
		Registry:   reg,
		Metrics:    collector,
		Logger:     logger,
	}
	if history != nil {
		deps.History = history
	}
	tools.RegisterAll(server, deps)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { _ = server.Run(ctx, serverTransport) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err, "client should connect successfully")
	t.Cleanup(func() { _ = session.Close() })

	return &env{session: session, store: store, model: m, jobs: jobs}
}

// call invokes a tool and returns its text content.
func (e *env) call(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := e.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content should be text")
	return text.Text, res.IsError
}

func taskModel() *llmtest.Model {
	return llmtest.New().
		On("sort personal dictation", "task").
		On("summary of the task", "Send a follow-up email to Jessica").
		On("people, companies and classes", `{"people": ["Jessica"], "companies": [], "classes": []}`).
		On("match a spoken name", "NO_MATCH")
}

func TestListTools(t *testing.T) {
	e := newEnv(t, taskModel(), nil)

	res, err := e.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.ElementsMatch(t, []string{"capture", "capture_status", "classify", "resolve", "list_schema", "stats"}, names)
}

func TestListTools_HistoryWhenAuditing(t *testing.T) {
	e := newEnv(t, taskModel(), &fakeHistory{})

	res, err := e.session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Tools, 7)
}

func TestCapture(t *testing.T) {
	e := newEnv(t, taskModel(), nil)

	text, isErr := e.call(t, "capture", map[string]any{"text": dictation})
	require.False(t, isErr, text)

	var res service.Result
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.True(t, res.Success)
	assert.Equal(t, models.CategoryTask, res.Category)
	require.Len(t, res.ActionLog, 2)
	assert.Equal(t, "Created new page 'Jessica' in people database.", res.ActionLog[0].Message)
	assert.Len(t, e.store.Records("tasks"), 1)
}

func TestCapture_Validation(t *testing.T) {
	e := newEnv(t, taskModel(), nil)

	t.Run("empty text", func(t *testing.T) {
		text, isErr := e.call(t, "capture", map[string]any{"text": "   "})
		assert.True(t, isErr)
		assert.Contains(t, text, "Text cannot be empty")
	})

	t.Run("unknown category", func(t *testing.T) {
		text, isErr := e.call(t, "capture", map[string]any{"text": dictation, "category": "poem"})
		assert.True(t, isErr)
		assert.Contains(t, text, "Unknown category poem")
		assert.Contains(t, text, "person_update")
	})
}

func TestCapture_FailureReturnsActionLog(t *testing.T) {
	m := llmtest.New().On("sort personal dictation", "weather")
	e := newEnv(t, m, nil)

	text, isErr := e.call(t, "capture", map[string]any{"text": dictation})
	require.True(t, isErr)

	var res service.Result
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.False(t, res.Success)
	assert.Equal(t, service.FailClassification, res.FailedStage)
	assert.Equal(t, dictation, res.Input)
	require.NotEmpty(t, res.ActionLog)
	assert.Equal(t, models.ActionFailed, res.ActionLog[len(res.ActionLog)-1].Kind)
}

func TestCapture_AsyncAndStatus(t *testing.T) {
	e := newEnv(t, taskModel(), nil)

	text, isErr := e.call(t, "capture", map[string]any{"text": dictation, "async": true})
	require.False(t, isErr, text)

	var job tools.JobView
	require.NoError(t, json.Unmarshal([]byte(text), &job))
	require.NotEmpty(t, job.ID)
	e.jobs.Wait()

	text, isErr = e.call(t, "capture_status", map[string]any{"job_id": job.ID})
	require.False(t, isErr, text)
	require.NoError(t, json.Unmarshal([]byte(text), &job))
	assert.Equal(t, string(service.JobStatusCompleted), job.Status)
	require.NotNil(t, job.Result)
	assert.True(t, job.Result.Success)

	text, isErr = e.call(t, "capture_status", map[string]any{})
	require.False(t, isErr, text)
	var all []tools.JobView
	require.NoError(t, json.Unmarshal([]byte(text), &all))
	assert.Len(t, all, 1)

	text, isErr = e.call(t, "capture_status", map[string]any{"job_id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Job not found")
}

func TestClassify(t *testing.T) {
	m := llmtest.New().On("sort personal dictation", "Ingredient.")
	e := newEnv(t, m, nil)

	text, isErr := e.call(t, "classify", map[string]any{"text": "bought tomatoes"})
	require.False(t, isErr, text)

	var res tools.ClassifyResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Equal(t, models.CategoryIngredient, res.Category)
	assert.Equal(t, "ingredients", res.Collection)
	assert.True(t, res.Upsert)
	assert.Empty(t, e.store.Records("ingredients"), "classify saves nothing")
}

func TestClassify_Errors(t *testing.T) {
	t.Run("invalid label", func(t *testing.T) {
		e := newEnv(t, llmtest.New().On("sort personal dictation", "weather"), nil)
		text, isErr := e.call(t, "classify", map[string]any{"text": "it is sunny"})
		assert.True(t, isErr)
		assert.Contains(t, text, "Rephrase")
	})

	t.Run("model down", func(t *testing.T) {
		m := llmtest.New().OnError("sort personal dictation", errors.New("connection refused"))
		e := newEnv(t, m, nil)
		text, isErr := e.call(t, "classify", map[string]any{"text": "it is sunny"})
		assert.True(t, isErr)
		assert.Contains(t, text, "unavailable")
	})
}

func TestResolve(t *testing.T) {
	e := newEnv(t, taskModel(), nil)
	jess := e.store.Seed("people", "Name", "Jessica Park")[0]

	t.Run("fuzzy match by kind", func(t *testing.T) {
		text, isErr := e.call(t, "resolve", map[string]any{"name": "Jessica", "kind": "person"})
		require.False(t, isErr, text)

		var res tools.ResolveResult
		require.NoError(t, json.Unmarshal([]byte(text), &res))
		assert.Equal(t, "people", res.Collection)
		assert.Equal(t, jess.ID, res.Entity.RecordID)
		assert.Equal(t, models.TierFuzzy, res.Entity.Tier)
	})

	t.Run("unresolved without create", func(t *testing.T) {
		text, isErr := e.call(t, "resolve", map[string]any{"name": "Stripe", "collection": "companies"})
		require.False(t, isErr, text)

		var res tools.ResolveResult
		require.NoError(t, json.Unmarshal([]byte(text), &res))
		assert.Equal(t, models.TierUnresolved, res.Entity.Tier)
		assert.Empty(t, e.store.Records("companies"))
	})

	t.Run("create", func(t *testing.T) {
		text, isErr := e.call(t, "resolve", map[string]any{"name": "Stripe", "collection": "companies", "allow_create": true})
		require.False(t, isErr, text)

		var res tools.ResolveResult
		require.NoError(t, json.Unmarshal([]byte(text), &res))
		assert.Equal(t, models.TierCreated, res.Entity.Tier)
		require.Len(t, res.ActionLog, 1)
		assert.Equal(t, "Created new page 'Stripe' in companies database.", res.ActionLog[0].Message)
	})

	t.Run("validation", func(t *testing.T) {
		text, isErr := e.call(t, "resolve", map[string]any{"name": "Stripe"})
		assert.True(t, isErr)
		assert.Contains(t, text, "Collection or kind is required")

		text, isErr = e.call(t, "resolve", map[string]any{"name": "Stripe", "collection": "planets"})
		assert.True(t, isErr)
		assert.Contains(t, text, "Unknown collection planets")

		text, isErr = e.call(t, "resolve", map[string]any{"name": "Stripe", "kind": "planet"})
		assert.True(t, isErr)
		assert.Contains(t, text, "Unknown kind planet")
	})
}

func TestListSchema(t *testing.T) {
	e := newEnv(t, taskModel(), nil)

	text, isErr := e.call(t, "list_schema", map[string]any{"collection": "tasks"})
	require.False(t, isErr, text)

	var views []tools.CollectionView
	require.NoError(t, json.Unmarshal([]byte(text), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "tasks", views[0].Key)
	assert.NotEmpty(t, views[0].Fields)
	assert.NotEmpty(t, views[0].TitleField)

	text, isErr = e.call(t, "list_schema", map[string]any{})
	require.False(t, isErr, text)
	require.NoError(t, json.Unmarshal([]byte(text), &views))
	assert.Greater(t, len(views), 1)

	_, isErr = e.call(t, "list_schema", map[string]any{"collection": "planets"})
	assert.True(t, isErr)
}

func TestStats(t *testing.T) {
	e := newEnv(t, taskModel(), nil)
	_, isErr := e.call(t, "capture", map[string]any{"text": dictation})
	require.False(t, isErr)

	text, isErr := e.call(t, "stats", map[string]any{})
	require.False(t, isErr, text)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal([]byte(text), &snap))
	assert.Equal(t, int64(1), snap.Runs)
	assert.Zero(t, snap.FailedRuns)
	assert.NotNil(t, snap.LLMClassify)
}

func TestHistory(t *testing.T) {
	h := &fakeHistory{
		recordings: []models.Recording{
			{Body: "second", Status: models.RecordingCompleted},
			{Body: "first", Status: models.RecordingFailed},
		},
		activities: []models.Activity{{ActionType: "created", PageID: "p1", Action: "Created new page 'Jessica' in people database."}},
	}
	e := newEnv(t, taskModel(), h)

	text, isErr := e.call(t, "history", map[string]any{"limit": 1})
	require.False(t, isErr, text)
	var recs []models.Recording
	require.NoError(t, json.Unmarshal([]byte(text), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "second", recs[0].Body)

	text, isErr = e.call(t, "history", map[string]any{"recording_id": "recording:abc"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "p1")

	h.err = errors.New("socket closed")
	text, isErr = e.call(t, "history", map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, text, "Failed to load history")
}
