// Package service runs the dictation pipeline: classify, extract, resolve
// mentioned entities, build the record and persist it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/raphaelgruber/dictate-go/internal/builder"
	"github.com/raphaelgruber/dictate-go/internal/llm"
	"github.com/raphaelgruber/dictate-go/internal/matcher"
	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/schema"
	"github.com/raphaelgruber/dictate-go/internal/workspace"
)

// Stage is the state a run has reached.
type Stage string

const (
	StageReceived         Stage = "received"
	StageClassified       Stage = "classified"
	StageExtracted        Stage = "extracted"
	StageEntitiesResolved Stage = "entities_resolved"
	StageBuilt            Stage = "built"
	StagePersisted        Stage = "persisted"
	StageLogged           Stage = "logged"
	StageFailed           Stage = "failed"
)

// Steps a run can fail in. Result.FailedStage holds one of these.
const (
	FailClassification = "classification"
	FailExtraction     = "extraction"
	FailResolution     = "resolution"
	FailBuild          = "build"
	FailPersistence    = "persistence"
)

// ErrPersistence marks a write to the workspace store that failed. The run
// is not retried; the caller may resubmit the same text.
var ErrPersistence = errors.New("persistence failed")

// ErrEmptyInput is returned for blank dictation.
var ErrEmptyInput = errors.New("nothing to capture")

// Gateway is the part of the language model gateway the pipeline drives.
type Gateway interface {
	Classify(ctx context.Context, text string) (models.Category, error)
	Extract(ctx context.Context, cat models.Category, text string) (*llm.Extraction, error)
}

// AuditLog records runs for later inspection. db.History implements it.
type AuditLog interface {
	StartRecording(ctx context.Context, body string) (string, error)
	FinishRecording(ctx context.Context, id string, out models.RecordingOutcome) error
}

// Dependencies are the collaborators of a Pipeline.
type Dependencies struct {
	Gateway  Gateway
	Matcher  *matcher.Matcher
	Builder  *builder.Builder
	Registry *schema.Registry
	Store    workspace.Store
	// Audit and Metrics are optional.
	Audit   AuditLog
	Metrics *metrics.Collector
	Logger  *slog.Logger
	// Timeout bounds a whole run. Zero means no limit.
	Timeout time.Duration
}

// Pipeline turns dictated text into workspace records. Runs are
// independent and may execute concurrently.
type Pipeline struct {
	gateway  Gateway
	matcher  *matcher.Matcher
	builder  *builder.Builder
	registry *schema.Registry
	store    workspace.Store
	audit    AuditLog
	metrics  *metrics.Collector
	logger   *slog.Logger
	timeout  time.Duration
}

// NewPipeline wires a pipeline from its dependencies.
func NewPipeline(deps Dependencies) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		gateway:  deps.Gateway,
		matcher:  deps.Matcher,
		builder:  deps.Builder,
		registry: deps.Registry,
		store:    deps.Store,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		logger:   logger,
		timeout:  deps.Timeout,
	}
}

// RunOptions tunes a single run.
type RunOptions struct {
	// NoCreate leaves unknown names unresolved instead of creating records.
	NoCreate bool
	// Category skips classification when set.
	Category models.Category
}

// Result is the outcome of one run.
type Result struct {
	Success     bool                    `json:"success"`
	Category    models.Category         `json:"category,omitempty"`
	Stage       Stage                   `json:"stage"`
	FailedStage string                  `json:"failed_stage,omitempty"`
	Summary     string                  `json:"summary,omitempty"`
	RecordID    string                  `json:"record_id,omitempty"`
	URL         string                  `json:"url,omitempty"`
	Fields      models.ExtractedFields  `json:"fields,omitempty"`
	Resolved    []models.ResolvedEntity `json:"resolved,omitempty"`
	ActionLog   models.ActionLog        `json:"action_log"`
	Error       string                  `json:"error,omitempty"`
	// Err is the failure behind Error, for errors.Is checks.
	Err error `json:"-"`
	// Input is the submitted text, returned so a failed run can be resubmitted.
	Input       string        `json:"input"`
	RecordingID string        `json:"recording_id,omitempty"`
	Duration    time.Duration `json:"duration"`
}

func (r *Result) fail(step string, err error) error {
	r.Stage = StageFailed
	r.FailedStage = step
	return err
}

// upsertCategories update the records they mention instead of creating a
// new one.
var upsertCategories = []models.Category{
	models.CategoryIngredient,
	models.CategoryRecipe,
	models.CategoryPersonUpdate,
}

// IsUpsert reports whether cat updates existing records.
func IsUpsert(cat models.Category) bool {
	return lo.Contains(upsertCategories, cat)
}

// Run processes text end to end. It never returns nil; failures are
// reported through Result.Success, Result.FailedStage and Result.Error.
func (p *Pipeline) Run(ctx context.Context, text string, opts RunOptions) *Result {
	start := time.Now()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	text = strings.TrimSpace(text)
	res := &Result{Stage: StageReceived, Input: text, ActionLog: models.ActionLog{}}
	res.RecordingID = p.startRecording(ctx, text)

	if err := p.execute(ctx, text, opts, res); err != nil {
		res.Success = false
		res.Err = err
		res.Error = err.Error()
		res.ActionLog.Append(models.ActionLogEntry{
			Kind:    models.ActionFailed,
			Message: fmt.Sprintf("Failed during %s: %v.", res.FailedStage, err),
		})
		p.logger.Error("capture failed", "stage", res.FailedStage, "category", res.Category, "error", err)
	} else {
		res.Success = true
		res.Stage = StageLogged
		p.logger.Info("capture complete", "category", res.Category, "record_id", res.RecordID, "entries", len(res.ActionLog))
	}
	res.Duration = time.Since(start)

	// The audit row is written even when the run timed out.
	p.finishRecording(context.WithoutCancel(ctx), res)
	if p.metrics != nil {
		p.metrics.RecordRun(res.Success)
	}
	return res
}

func (p *Pipeline) execute(ctx context.Context, text string, opts RunOptions, res *Result) error {
	if text == "" {
		return res.fail(FailClassification, ErrEmptyInput)
	}

	cat := opts.Category
	if cat == "" {
		c, err := p.gateway.Classify(ctx, text)
		if err != nil {
			return res.fail(FailClassification, err)
		}
		cat = c
	}
	coll, err := p.registry.CollectionFor(cat)
	if err != nil {
		return res.fail(FailClassification, err)
	}
	res.Category = cat
	res.Stage = StageClassified
	p.logger.Debug("classified", "category", cat, "collection", coll.Key)

	ex, err := p.gateway.Extract(ctx, cat, text)
	if err != nil {
		return res.fail(FailExtraction, err)
	}
	res.Fields = ex.Fields
	res.Stage = StageExtracted
	for _, w := range ex.Warnings {
		res.ActionLog.Append(models.WarningEntry("Extraction incomplete: %s.", w))
	}

	session := matcher.NewSession()
	if IsUpsert(cat) {
		return p.upsertRecords(ctx, session, coll, ex, opts, res)
	}
	return p.createRecord(ctx, session, coll, ex, opts, res)
}

// link resolves mentions that point at other collections and groups the
// resolved ids by relation key. Unresolved mentions are left out.
func (p *Pipeline) link(ctx context.Context, s *matcher.Session, coll *schema.Collection, mentions []models.EntityMention, opts RunOptions, res *Result) (map[string][]string, error) {
	relations := make(map[string][]string)
	for _, m := range mentions {
		if m.Relation == "" {
			continue
		}
		rel, ok := coll.Relation(m.Relation)
		if !ok {
			res.ActionLog.Append(models.InfoEntry("Skipped '%s': %s database has no %s relation.", m.Name, coll.Key, m.Relation))
			continue
		}
		r, entries, err := p.matcher.Resolve(ctx, s, m, rel.Target, matcher.ResolveOptions{AllowCreate: !opts.NoCreate})
		if err != nil {
			return nil, err
		}
		res.ActionLog.Append(entries...)
		res.Resolved = append(res.Resolved, r)
		if r.Resolved() {
			relations[m.Relation] = append(relations[m.Relation], r.RecordID)
		}
	}
	return relations, nil
}

func (p *Pipeline) createRecord(ctx context.Context, s *matcher.Session, coll *schema.Collection, ex *llm.Extraction, opts RunOptions, res *Result) error {
	relations, err := p.link(ctx, s, coll, ex.Mentions, opts, res)
	if err != nil {
		return res.fail(FailResolution, err)
	}
	res.Stage = StageEntitiesResolved

	payload, entries, err := p.builder.Build(builder.Input{
		Category:  res.Category,
		Title:     ex.Title,
		Fields:    ex.Fields,
		Relations: relations,
		Body:      ex.Body,
	})
	if err != nil {
		return res.fail(FailBuild, err)
	}
	res.ActionLog.Append(entries...)
	res.Stage = StageBuilt

	rec, err := p.store.Create(ctx, payload)
	if err != nil {
		return res.fail(FailPersistence, fmt.Errorf("%w: create in %s: %w", ErrPersistence, coll.Key, err))
	}
	res.Stage = StagePersisted
	res.RecordID = rec.ID
	res.URL = rec.URL
	res.ActionLog.Append(models.CreatedEntry(coll.Key, payload.Title, rec.ID, rec.URL))
	res.Summary = fmt.Sprintf("Saved %s '%s' to %s.", categoryLabel(res.Category), payload.Title, coll.Name)
	return nil
}

type subject struct {
	mention models.EntityMention
	input   builder.Input
	payload models.RecordPayload
}

// upsertRecords finds or creates every record the text is about and merges
// the extracted values into it. Each record yields one log entry.
func (p *Pipeline) upsertRecords(ctx context.Context, s *matcher.Session, coll *schema.Collection, ex *llm.Extraction, opts RunOptions, res *Result) error {
	relations, err := p.link(ctx, s, coll, ex.Mentions, opts, res)
	if err != nil {
		return res.fail(FailResolution, err)
	}
	res.Stage = StageEntitiesResolved

	var subjects []subject
	for _, m := range ex.Mentions {
		if m.Relation != "" {
			continue
		}
		in := builder.Input{
			Category:  res.Category,
			Title:     m.Name,
			Fields:    subjectFields(res.Category, m, ex.Fields),
			Relations: relations,
			Body:      ex.Body,
		}
		payload, entries, err := p.builder.Build(in)
		if err != nil {
			return res.fail(FailBuild, err)
		}
		res.ActionLog.Append(entries...)
		subjects = append(subjects, subject{mention: m, input: in, payload: payload})
	}
	res.Stage = StageBuilt

	var created, updated int
	for _, sub := range subjects {
		r, entries, err := p.matcher.Resolve(ctx, s, sub.mention, coll.Key, matcher.ResolveOptions{
			AllowCreate: !opts.NoCreate,
			Payload:     &sub.payload,
		})
		if err != nil {
			if errors.Is(err, llm.ErrFatalAPI) || ctx.Err() != nil {
				return res.fail(FailResolution, err)
			}
			return res.fail(FailPersistence, fmt.Errorf("%w: %w", ErrPersistence, err))
		}
		res.Resolved = append(res.Resolved, r)

		if r.Tier == models.TierCreated || r.Tier == models.TierUnresolved {
			res.ActionLog.Append(entries...)
			if r.Tier == models.TierCreated {
				created++
				p.setPrimary(res, r.RecordID, r.URL)
			}
			continue
		}

		// The update entry stands in for the match entry.
		res.ActionLog.Append(lo.Filter(entries, func(e models.ActionLogEntry, _ int) bool {
			return e.Kind != models.ActionMatched
		})...)
		entry, err := p.update(ctx, coll, sub.input, r)
		if err != nil {
			return res.fail(FailPersistence, fmt.Errorf("%w: update %s: %w", ErrPersistence, r.Title, err))
		}
		res.ActionLog.Append(entry)
		updated++
		p.setPrimary(res, r.RecordID, r.URL)
	}
	res.Stage = StagePersisted

	switch {
	case len(subjects) == 0:
		res.Summary = fmt.Sprintf("Nothing to update in %s.", coll.Name)
	case len(subjects) == 1 && created+updated == 1:
		res.Summary = fmt.Sprintf("%s %s '%s' in %s.", verb(created), categoryLabel(res.Category), subjects[0].mention.Name, coll.Name)
	default:
		res.Summary = fmt.Sprintf("%d %s records: %d created, %d updated.", len(subjects), categoryLabel(res.Category), created, updated)
	}
	return nil
}

func (p *Pipeline) update(ctx context.Context, coll *schema.Collection, in builder.Input, r models.ResolvedEntity) (models.ActionLogEntry, error) {
	rec, err := p.store.Get(ctx, r.RecordID)
	if err != nil {
		return models.ActionLogEntry{}, err
	}
	// Coercion problems were already logged by Build.
	ops, _, err := p.builder.Updates(in)
	if err != nil {
		return models.ActionLogEntry{}, err
	}

	props, details := builder.Apply(rec, ops)
	if len(props) == 0 {
		entry := models.InfoEntry("No changes to '%s' in %s database.", rec.Title, coll.Key)
		entry.Collection, entry.RecordID, entry.URL = coll.Key, rec.ID, rec.URL
		return entry, nil
	}

	rec, err = p.store.Update(ctx, rec.ID, props)
	if err != nil {
		return models.ActionLogEntry{}, err
	}
	return models.UpdatedEntry(coll.Key, rec.Title, rec.ID, rec.URL, strings.Join(details, ", ")), nil
}

func (p *Pipeline) setPrimary(res *Result, id, url string) {
	if res.RecordID == "" {
		res.RecordID = id
		res.URL = url
	}
}

// subjectFields returns the fields merged into one upserted record. An
// ingredient carries its own signed quantity as the Amount delta.
func subjectFields(cat models.Category, m models.EntityMention, fields models.ExtractedFields) models.ExtractedFields {
	if cat != models.CategoryIngredient {
		return fields
	}
	out := models.ExtractedFields{}
	maps.Copy(out, fields)
	out["Amount"] = m.Quantity
	return out
}

func verb(created int) string {
	if created > 0 {
		return "Created"
	}
	return "Updated"
}

func categoryLabel(cat models.Category) string {
	return strings.ReplaceAll(string(cat), "_", " ")
}

func (p *Pipeline) startRecording(ctx context.Context, text string) string {
	if p.audit == nil || text == "" {
		return ""
	}
	id, err := p.audit.StartRecording(ctx, text)
	if err != nil {
		p.logger.Warn("failed to start recording", "error", err)
		return ""
	}
	return id
}

func (p *Pipeline) finishRecording(ctx context.Context, res *Result) {
	if p.audit == nil || res.RecordingID == "" {
		return
	}
	out := models.RecordingOutcome{
		Category: string(res.Category),
		Summary:  res.Summary,
		Status:   models.RecordingCompleted,
		Stage:    string(res.Stage),
		Error:    res.Error,
	}
	if !res.Success {
		out.Status = models.RecordingFailed
		out.Stage = res.FailedStage
	}
	for _, e := range res.ActionLog {
		if e.RecordID == "" {
			continue
		}
		out.Activities = append(out.Activities, models.Activity{
			ActionType: string(e.Kind),
			PageID:     e.RecordID,
			Collection: e.Collection,
			Action:     e.Message,
			PageURL:    e.URL,
		})
	}
	if err := p.audit.FinishRecording(ctx, res.RecordingID, out); err != nil {
		p.logger.Warn("failed to finish recording", "recording_id", res.RecordingID, "error", err)
	}
}
