package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/dictate-go/internal/models"
)

// QueryCreateRecording inserts a recording in processing state and returns
// its id.
func (c *Client) QueryCreateRecording(ctx context.Context, body string) (string, error) {
	id := uuid.NewString()
	_, err := surrealdb.Query[[]models.Recording](ctx, c.db, `
		CREATE type::record("recording", $id) SET
			body = $body,
			status = "processing",
			activities_count = 0,
			created_at = time::now()
		RETURN AFTER
	`, map[string]any{"id": id, "body": body})
	if err != nil {
		return "", fmt.Errorf("create recording: %w", wrapQueryError(err))
	}
	return id, nil
}

// QueryFinishRecording stores the outcome of a run and its activities.
func (c *Client) QueryFinishRecording(ctx context.Context, id string, out models.RecordingOutcome) error {
	activities := make([]map[string]any, 0, len(out.Activities))
	for _, a := range out.Activities {
		activities = append(activities, map[string]any{
			"action_type": a.ActionType,
			"page_id":     a.PageID,
			"collection":  a.Collection,
			"action":      a.Action,
			"page_url":    a.PageURL,
		})
	}

	var errMsg *string
	if out.Error != "" {
		errMsg = &out.Error
	}

	sql := `
		UPDATE type::record("recording", $id) SET
			category = $category,
			summary = $summary,
			status = $status,
			stage = $stage,
			error = $error,
			activities_count = $count;
		FOR $a IN $activities {
			CREATE activity SET
				recording = type::record("recording", $id),
				action_type = $a.action_type,
				page_id = $a.page_id,
				collection = $a.collection,
				action = $a.action,
				page_url = $a.page_url,
				created_at = time::now();
		};
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":         id,
		"category":   out.Category,
		"summary":    out.Summary,
		"status":     out.Status,
		"stage":      out.Stage,
		"error":      errMsg,
		"count":      len(activities),
		"activities": activities,
	})
	if err != nil {
		return fmt.Errorf("finish recording: %w", wrapQueryError(err))
	}
	return nil
}

// QueryListRecordings returns the most recent recordings, newest first.
func (c *Client) QueryListRecordings(ctx context.Context, limit int) ([]models.Recording, error) {
	if limit <= 0 {
		limit = 20
	}
	results, err := surrealdb.Query[[]models.Recording](ctx, c.db, `
		SELECT * FROM recording ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.Recording{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryListActivities returns a recording's activities in creation order.
func (c *Client) QueryListActivities(ctx context.Context, recordingID string) ([]models.Activity, error) {
	results, err := surrealdb.Query[[]models.Activity](ctx, c.db, `
		SELECT * FROM activity
		WHERE recording = type::record("recording", $id)
		ORDER BY created_at ASC
	`, map[string]any{"id": recordingID})
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.Activity{}, nil
	}
	return (*results)[0].Result, nil
}

// History adapts the client to the pipeline's audit interface.
type History struct {
	client *Client
}

// NewHistory wraps a connected client.
func NewHistory(client *Client) *History {
	return &History{client: client}
}

// StartRecording records that a run began.
func (h *History) StartRecording(ctx context.Context, body string) (string, error) {
	return h.client.QueryCreateRecording(ctx, body)
}

// FinishRecording records how a run ended.
func (h *History) FinishRecording(ctx context.Context, id string, out models.RecordingOutcome) error {
	return h.client.QueryFinishRecording(ctx, id, out)
}

// Recent lists the latest recordings.
func (h *History) Recent(ctx context.Context, limit int) ([]models.Recording, error) {
	return h.client.QueryListRecordings(ctx, limit)
}

// Activities lists what one recording did.
func (h *History) Activities(ctx context.Context, recordingID string) ([]models.Activity, error) {
	return h.client.QueryListActivities(ctx, recordingID)
}
