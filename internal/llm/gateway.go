package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
)

const (
	tempDeterministic = 0.0
	tempCreative      = 0.7
)

// DefaultRecommendationTypes are used when no options are configured.
var DefaultRecommendationTypes = []string{"Book", "Movie", "Show", "Podcast", "Music", "Product", "Other"}

// Options configures a Gateway.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Location is the timezone dates are anchored in.
	Location *time.Location
	// SelfName and Opponent are the Wordle players.
	SelfName string
	Opponent string
	// RecommendationTypes are the allowed recommendation type options.
	RecommendationTypes []string
	Logger              *slog.Logger
}

// Gateway issues the fixed prompts of the pipeline against a model.
// Safe for concurrent use.
type Gateway struct {
	model      *Model
	now        func() time.Time
	loc        *time.Location
	selfName   string
	opponent   string
	recTypes   []string
	logger     *slog.Logger
	extractors map[models.Category]extractFunc

	mu      sync.Mutex
	lastRaw string
}

// NewGateway creates a gateway over model.
func NewGateway(model *Model, opts Options) *Gateway {
	g := &Gateway{
		model:    model,
		now:      opts.Now,
		loc:      opts.Location,
		selfName: opts.SelfName,
		opponent: opts.Opponent,
		recTypes: opts.RecommendationTypes,
		logger:   opts.Logger,
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.loc == nil {
		g.loc = time.Local
	}
	if g.selfName == "" {
		g.selfName = "Mark"
	}
	if g.opponent == "" {
		g.opponent = "Lorna"
	}
	if len(g.recTypes) == 0 {
		g.recTypes = DefaultRecommendationTypes
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.extractors = map[models.Category]extractFunc{
		models.CategoryTask:           g.extractTask,
		models.CategoryNote:           g.extractNote,
		models.CategoryIngredient:     g.extractIngredients,
		models.CategoryRecipe:         g.extractRecipe,
		models.CategoryRecommendation: g.extractRecommendation,
		models.CategoryIdea:           g.extractIdea,
		models.CategoryWordle:         g.extractWordle,
		models.CategoryRestaurant:     g.extractRestaurant,
		models.CategoryPersonUpdate:   g.extractPersonUpdate,
	}
	return g
}

// Today returns the calendar day dates are anchored on.
func (g *Gateway) Today() time.Time {
	return truncateDay(g.now().In(g.loc))
}

// LastRaw returns the most recent raw model response.
func (g *Gateway) LastRaw() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRaw
}

func (g *Gateway) complete(ctx context.Context, op, system, user string, temperature float64, jsonMode bool) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}

	out, err := g.model.GenerateWithSystem(ctx, op, system, user, opts...)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	g.lastRaw = out
	g.mu.Unlock()

	g.logger.Debug("llm response", "op", op, "chars", len(out))
	return strings.TrimSpace(out), nil
}

// Classify maps text onto exactly one category.
func (g *Gateway) Classify(ctx context.Context, text string) (models.Category, error) {
	raw, err := g.complete(ctx, metrics.OpLLMClassify, classifySystemPrompt, text, tempDeterministic, false)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	label := strings.Trim(strings.ToLower(raw), " \t\r\n\"'`.,:;!")
	cat, err := models.ParseCategory(label)
	if err != nil {
		return "", &ClassificationError{Raw: raw}
	}
	return cat, nil
}

// Extract runs the category's extraction routine.
func (g *Gateway) Extract(ctx context.Context, cat models.Category, text string) (*Extraction, error) {
	fn, ok := g.extractors[cat]
	if !ok {
		return nil, fmt.Errorf("extract: %w: %q", models.ErrUnknownCategory, cat)
	}
	ex, err := fn(ctx, text, AnchorsFor(g.Today()))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", cat, err)
	}
	return ex, nil
}

// FindBestSemanticMatch asks the model which candidate term refers to.
// It reports false when the model answers NO_MATCH or names something that
// is not a candidate.
func (g *Gateway) FindBestSemanticMatch(ctx context.Context, term string, candidates []string) (string, bool, error) {
	if len(candidates) == 0 {
		return "", false, nil
	}

	raw, err := g.complete(ctx, metrics.OpLLMMatch, semanticMatchSystemPrompt,
		semanticMatchUserPrompt(term, candidates), tempDeterministic, false)
	if err != nil {
		return "", false, fmt.Errorf("semantic match: %w", err)
	}

	answer := cleanLine(raw)
	if strings.EqualFold(answer, noMatchSentinel) {
		return "", false, nil
	}
	for _, c := range candidates {
		if c == answer {
			return c, true, nil
		}
	}
	for _, c := range candidates {
		if strings.EqualFold(c, answer) {
			return c, true, nil
		}
	}

	g.logger.Debug("semantic match answer is not a candidate", "term", term, "answer", answer)
	return "", false, nil
}

// cleanLine strips list markers, quotes and trailing periods from a one-line
// model answer.
func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.TrimPrefix(s, "- ")
	s = strings.TrimPrefix(s, "* ")
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(s)
}
