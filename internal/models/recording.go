package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Recording statuses.
const (
	RecordingProcessing = "processing"
	RecordingCompleted  = "completed"
	RecordingFailed     = "failed"
)

// Recording is the audit row for one pipeline run.
type Recording struct {
	ID              *surrealmodels.RecordID `json:"id,omitempty"`
	Category        string                  `json:"category,omitempty"`
	Body            string                  `json:"body"`
	Summary         string                  `json:"summary,omitempty"`
	Status          string                  `json:"status"`
	Stage           string                  `json:"stage,omitempty"`
	Error           *string                 `json:"error,omitempty"`
	ActivitiesCount int                     `json:"activities_count"`
	CreatedAt       time.Time               `json:"created_at"`
}

// Activity is the audit row for one store side effect of a run.
type Activity struct {
	ID         *surrealmodels.RecordID `json:"id,omitempty"`
	Recording  surrealmodels.RecordID  `json:"recording"`
	ActionType string                  `json:"action_type"`
	PageID     string                  `json:"page_id"`
	Collection string                  `json:"collection,omitempty"`
	Action     string                  `json:"action"`
	PageURL    string                  `json:"page_url,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// RecordingOutcome is how a run ended, written back onto its recording.
type RecordingOutcome struct {
	Category   string
	Summary    string
	Status     string
	Stage      string
	Error      string
	Activities []Activity
}
