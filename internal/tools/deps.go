// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/dictate-go/internal/matcher"
	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/schema"
	"github.com/raphaelgruber/dictate-go/internal/service"
)

// Classifier labels text with a category.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Category, error)
}

// HistoryReader lists past captures. db.History implements it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]models.Recording, error)
	Activities(ctx context.Context, recordingID string) ([]models.Activity, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Pipeline   *service.Pipeline
	Jobs       *service.JobManager
	Classifier Classifier
	Matcher    *matcher.Matcher
	Registry   *schema.Registry
	Metrics    *metrics.Collector
	// History is nil when auditing is disabled.
	History HistoryReader
	Logger  *slog.Logger
}
