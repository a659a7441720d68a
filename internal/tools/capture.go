package tools

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/dictate-go/internal/llm"
	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/service"
)

// CaptureInput defines the input schema for the capture tool.
type CaptureInput struct {
	Text     string `json:"text" jsonschema:"The dictated text to capture"`
	NoCreate bool   `json:"no_create,omitempty" jsonschema:"Leave unknown names unresolved instead of creating records"`
	Category string `json:"category,omitempty" jsonschema:"Skip classification and use this category"`
	Async    bool   `json:"async,omitempty" jsonschema:"Run in the background and return a job id for capture_status"`
}

// NewCaptureHandler creates the capture tool handler.
// A failed run is returned as an error result carrying the action log and
// the input text, so the caller can fix and resubmit it.
func NewCaptureHandler(deps *Dependencies) mcp.ToolHandlerFor[CaptureInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CaptureInput) (*mcp.CallToolResult, any, error) {
		text := strings.TrimSpace(input.Text)
		if text == "" {
			return ErrorResult("Text cannot be empty", "Provide the dictated text"), nil, nil
		}

		opts := service.RunOptions{NoCreate: input.NoCreate}
		if input.Category != "" {
			cat, err := models.ParseCategory(input.Category)
			if err != nil {
				return ErrorResult("Unknown category "+input.Category, "Use one of: "+categoryList()), nil, nil
			}
			opts.Category = cat
		}

		if input.Async {
			if deps.Jobs == nil {
				return ErrorResult("Background captures are not available", "Call capture without async"), nil, nil
			}
			job := deps.Jobs.Submit(ctx, text, opts)
			snap := job.Snapshot()
			return JSONResult(jobView(&snap)), nil, nil
		}

		res := deps.Pipeline.Run(ctx, text, opts)
		deps.Logger.Debug("capture tool finished", "success", res.Success, "category", res.Category, "entries", len(res.ActionLog))

		out := JSONResult(res)
		out.IsError = !res.Success
		return out, nil, nil
	}
}

// CaptureStatusInput defines the input schema for the capture_status tool.
type CaptureStatusInput struct {
	JobID string `json:"job_id,omitempty" jsonschema:"Job id returned by capture with async=true. Omit to list all jobs"`
}

// JobView is a background capture as reported to clients.
type JobView struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      *service.Result `json:"result,omitempty"`
}

func jobView(j *service.Job) JobView {
	return JobView{
		ID:          j.ID,
		Status:      string(j.Status),
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}

// NewCaptureStatusHandler creates the capture_status tool handler.
func NewCaptureStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[CaptureStatusInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CaptureStatusInput) (*mcp.CallToolResult, any, error) {
		if deps.Jobs == nil {
			return ErrorResult("Background captures are not available", ""), nil, nil
		}
		id := strings.TrimSpace(input.JobID)
		if id == "" {
			views := make([]JobView, 0)
			for _, j := range deps.Jobs.ListJobs() {
				snap := j.Snapshot()
				views = append(views, jobView(&snap))
			}
			return JSONResult(views), nil, nil
		}

		job := deps.Jobs.GetJob(id)
		if job == nil {
			return ErrorResult("Job not found: "+id, "Omit job_id to list all jobs"), nil, nil
		}
		snap := job.Snapshot()
		return JSONResult(jobView(&snap)), nil, nil
	}
}

// ClassifyInput defines the input schema for the classify tool.
type ClassifyInput struct {
	Text string `json:"text" jsonschema:"Text to classify"`
}

// ClassifyResult is the response from the classify tool.
type ClassifyResult struct {
	Category   models.Category `json:"category"`
	Collection string          `json:"collection"`
	Upsert     bool            `json:"upsert"`
}

// NewClassifyHandler creates the classify tool handler.
func NewClassifyHandler(deps *Dependencies) mcp.ToolHandlerFor[ClassifyInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ClassifyInput) (*mcp.CallToolResult, any, error) {
		text := strings.TrimSpace(input.Text)
		if text == "" {
			return ErrorResult("Text cannot be empty", "Provide the text to classify"), nil, nil
		}

		cat, err := deps.Classifier.Classify(ctx, text)
		if err != nil {
			deps.Logger.Error("classify failed", "error", err)
			var ce *llm.ClassificationError
			if errors.As(err, &ce) {
				return ErrorResult("Classification failed: "+err.Error(), "Rephrase the text or pass a category to capture"), nil, nil
			}
			return ErrorResult("Classification failed: "+err.Error(), "The language model may be unavailable"), nil, nil
		}
		coll, err := deps.Registry.CollectionFor(cat)
		if err != nil {
			return ErrorResult("No collection for category "+string(cat), "Check the schema file"), nil, nil
		}
		return JSONResult(ClassifyResult{Category: cat, Collection: coll.Key, Upsert: service.IsUpsert(cat)}), nil, nil
	}
}

func categoryList() string {
	cats := models.AllCategories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
