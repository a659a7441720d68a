package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
)

// Extraction is the structured result of one category's extraction routine.
type Extraction struct {
	// Title is the value for the collection's title field. Empty for
	// categories that upsert mentioned records instead.
	Title  string
	Fields models.ExtractedFields
	// Mentions with a Relation are linked to the new record. Mentions
	// without one are the records the run upserts.
	Mentions []models.EntityMention
	Body     string
	Warnings []string
}

func newExtraction() *Extraction {
	return &Extraction{Fields: models.ExtractedFields{}}
}

type extractFunc func(ctx context.Context, text string, a DateAnchors) (*Extraction, error)

// tolerate turns a failed extraction step into a warning unless the error
// must abort the run.
func (g *Gateway) tolerate(ex *Extraction, step string, err error) error {
	if errors.Is(err, ErrFatalAPI) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	g.logger.Warn("extraction step failed", "step", step, "error", err)
	ex.Warnings = append(ex.Warnings, fmt.Sprintf("%s: %v", step, err))
	return nil
}

// completeJSON runs a JSON prompt and decodes the answer into T. Malformed
// output yields the zero T and a warning.
func completeJSON[T any](ctx context.Context, g *Gateway, ex *Extraction, step, system, text string) (T, error) {
	var zero T
	raw, err := g.complete(ctx, metrics.OpLLMExtract, system, text, tempDeterministic, true)
	if err != nil {
		return zero, g.tolerate(ex, step, err)
	}
	out, err := decodeJSON[T](raw)
	if err != nil {
		return zero, g.tolerate(ex, step, err)
	}
	return out, nil
}

func (g *Gateway) extractTask(ctx context.Context, text string, a DateAnchors) (*Extraction, error) {
	ex := newExtraction()

	summary, err := g.complete(ctx, metrics.OpLLMExtract, taskSummarySystemPrompt, text, tempCreative, false)
	if err != nil {
		if err := g.tolerate(ex, "task summary", err); err != nil {
			return nil, err
		}
	}
	ex.Title = titleOrFallback(cleanLine(summary), text)

	deadline, err := g.deadline(ctx, ex, text, a)
	if err != nil {
		return nil, err
	}
	ex.Fields["Deadline"] = deadline
	ex.Fields["Action Date"] = deadline

	mentions, err := g.mentions(ctx, ex, text, map[models.EntityKind]string{
		models.KindPerson:  "people",
		models.KindCompany: "organization",
	})
	if err != nil {
		return nil, err
	}
	ex.Mentions = mentions
	return ex, nil
}

// deadline resolves the task deadline, preferring unambiguous relative
// phrases over a model call. Unparseable model output falls back to tomorrow.
func (g *Gateway) deadline(ctx context.Context, ex *Extraction, text string, a DateAnchors) (string, error) {
	if d, ok := ResolveRelativeDate(text, a.Today); ok {
		return d.Format(DateLayout), nil
	}

	fallback := a.Tomorrow.Format(DateLayout)
	raw, err := g.complete(ctx, metrics.OpLLMExtract, deadlineSystemPrompt(a), text, tempDeterministic, false)
	if err != nil {
		return fallback, g.tolerate(ex, "deadline", err)
	}
	d, ok := NormalizeDate(raw)
	if !ok {
		ex.Warnings = append(ex.Warnings, fmt.Sprintf("deadline: could not read %q, using %s", raw, fallback))
		return fallback, nil
	}
	return d, nil
}

type mentionsResponse struct {
	People    []string `json:"people"`
	Companies []string `json:"companies"`
	Classes   []string `json:"classes"`
}

// mentions extracts people, companies and classes and links each kind to the
// relation named in relations. Kinds missing from relations are dropped.
func (g *Gateway) mentions(ctx context.Context, ex *Extraction, text string, relations map[models.EntityKind]string) ([]models.EntityMention, error) {
	resp, err := completeJSON[mentionsResponse](ctx, g, ex, "mentions", mentionsSystemPrompt, text)
	if err != nil {
		return nil, err
	}

	var out []models.EntityMention
	add := func(kind models.EntityKind, names []string) {
		rel, ok := relations[kind]
		if !ok {
			return
		}
		for _, name := range cleanNames(names) {
			if kind == models.KindPerson && strings.EqualFold(name, g.selfName) {
				continue
			}
			out = append(out, models.EntityMention{Name: name, Kind: kind, Relation: rel})
		}
	}
	add(models.KindPerson, resp.People)
	add(models.KindCompany, resp.Companies)
	add(models.KindClass, resp.Classes)
	return out, nil
}

func (g *Gateway) extractNote(ctx context.Context, text string, a DateAnchors) (*Extraction, error) {
	ex, err := g.titleAndBody(ctx, text, a)
	if err != nil {
		return nil, err
	}
	mentions, err := g.mentions(ctx, ex, text, map[models.EntityKind]string{
		models.KindPerson:  "people",
		models.KindCompany: "company",
		models.KindClass:   "class",
	})
	if err != nil {
		return nil, err
	}
	ex.Mentions = mentions
	return ex, nil
}

func (g *Gateway) extractIdea(ctx context.Context, text string, a DateAnchors) (*Extraction, error) {
	return g.titleAndBody(ctx, text, a)
}

func (g *Gateway) titleAndBody(ctx context.Context, text string, a DateAnchors) (*Extraction, error) {
	ex := newExtraction()

	body, err := g.complete(ctx, metrics.OpLLMExtract, noteBodySystemPrompt, text, tempCreative, false)
	if err != nil {
		if err := g.tolerate(ex, "body", err); err != nil {
			return nil, err
		}
		body = text
	}
	if body == "" {
		body = strings.TrimSpace(text)
	}
	ex.Body = body

	title, err := g.complete(ctx, metrics.OpLLMExtract, noteTitleSystemPrompt, body, tempCreative, false)
	if err != nil {
		if err := g.tolerate(ex, "title", err); err != nil {
			return nil, err
		}
	}
	ex.Title = titleOrFallback(cleanLine(title), body)
	ex.Fields["Date"] = a.Today.Format(DateLayout)
	return ex, nil
}

type ingredientResponse struct {
	Ingredients []struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
	} `json:"ingredients"`
}

func (g *Gateway) extractIngredients(ctx context.Context, text string, _ DateAnchors) (*Extraction, error) {
	ex := newExtraction()
	resp, err := completeJSON[ingredientResponse](ctx, g, ex, "ingredients", ingredientSystemPrompt, text)
	if err != nil {
		return nil, err
	}
	for _, item := range resp.Ingredients {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		ex.Mentions = append(ex.Mentions, models.EntityMention{Name: name, Kind: models.KindIngredient, Quantity: qty})
	}
	if len(ex.Mentions) == 0 {
		ex.Warnings = append(ex.Warnings, "ingredients: none found")
	}
	return ex, nil
}

type recipeResponse struct {
	Recipe      string   `json:"recipe"`
	Ingredients []string `json:"ingredients"`
}

func (g *Gateway) extractRecipe(ctx context.Context, text string, a DateAnchors) (*Extraction, error) {
	ex := newExtraction()
	resp, err := completeJSON[recipeResponse](ctx, g, ex, "recipe", recipeSystemPrompt, text)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(resp.Recipe)
	if name == "" {
		return nil, errors.New("no recipe named")
	}

	ex.Title = name
	ex.Mentions = append(ex.Mentions, models.EntityMention{Name: name, Kind: models.KindRecipe})
	for _, ing := range cleanNames(resp.Ingredients) {
		ex.Mentions = append(ex.Mentions, models.EntityMention{Name: ing, Kind: models.KindIngredient, Relation: "ingredients"})
	}
	ex.Fields["Times Made"] = 1
	ex.Fields["Last Made"] = a.Today.Format(DateLayout)
	return ex, nil
}

type recommendationResponse struct {
	Title         string `json:"title"`
	Type          string `json:"type"`
	RecommendedBy string `json:"recommended_by"`
}

func (g *Gateway) extractRecommendation(ctx context.Context, text string, a DateAnchors) (*Extraction, error) {
	ex := newExtraction()
	prompt := fmt.Sprintf(recommendationSystemPrompt, strings.Join(g.recTypes, ", "))
	resp, err := completeJSON[recommendationResponse](ctx, g, ex, "recommendation", prompt, text)
	if err != nil {
		return nil, err
	}

	ex.Title = titleOrFallback(strings.TrimSpace(resp.Title), text)
	if opt, ok := matchOption(resp.Type, g.recTypes); ok {
		ex.Fields["Type"] = opt
	} else if resp.Type != "" {
		ex.Warnings = append(ex.Warnings, fmt.Sprintf("recommendation: unknown type %q", resp.Type))
	}
	ex.Fields["Date"] = a.Today.Format(DateLayout)
	ex.Mentions = g.recommender(resp.RecommendedBy)
	return ex, nil
}

type restaurantResponse struct {
	Name          string `json:"name"`
	Cuisine       string `json:"cuisine"`
	Location      string `json:"location"`
	Visited       bool   `json:"visited"`
	RecommendedBy string `json:"recommended_by"`
}

func (g *Gateway) extractRestaurant(ctx context.Context, text string, a DateAnchors) (*Extraction, error) {
	ex := newExtraction()
	resp, err := completeJSON[restaurantResponse](ctx, g, ex, "restaurant", restaurantSystemPrompt, text)
	if err != nil {
		return nil, err
	}

	ex.Title = titleOrFallback(strings.TrimSpace(resp.Name), text)
	if resp.Cuisine != "" {
		ex.Fields["Cuisine"] = resp.Cuisine
	}
	if resp.Location != "" {
		ex.Fields["Location"] = resp.Location
	}
	ex.Fields["Visited"] = resp.Visited
	ex.Fields["Date"] = a.Today.Format(DateLayout)
	ex.Mentions = g.recommender(resp.RecommendedBy)
	return ex, nil
}

func (g *Gateway) recommender(name string) []models.EntityMention {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, g.selfName) {
		return nil
	}
	return []models.EntityMention{{Name: name, Kind: models.KindPerson, Relation: "recommended_by"}}
}

type personUpdateResponse struct {
	Person  string `json:"person"`
	Update  string `json:"update"`
	Company string `json:"company"`
}

func (g *Gateway) extractPersonUpdate(ctx context.Context, text string, a DateAnchors) (*Extraction, error) {
	ex := newExtraction()
	resp, err := completeJSON[personUpdateResponse](ctx, g, ex, "person update", personUpdateSystemPrompt, text)
	if err != nil {
		return nil, err
	}
	person := strings.TrimSpace(resp.Person)
	if person == "" {
		return nil, errors.New("no person named")
	}

	ex.Title = person
	ex.Mentions = append(ex.Mentions, models.EntityMention{Name: person, Kind: models.KindPerson})
	if company := strings.TrimSpace(resp.Company); company != "" {
		ex.Mentions = append(ex.Mentions, models.EntityMention{Name: company, Kind: models.KindCompany, Relation: "company"})
	}
	update := strings.TrimSpace(resp.Update)
	if update == "" {
		update = strings.TrimSpace(text)
	}
	ex.Fields["Latest Update"] = update
	ex.Fields["Last Contact"] = a.Today.Format(DateLayout)
	return ex, nil
}

type wordleResponse struct {
	Self     *int `json:"self"`
	Opponent *int `json:"opponent"`
}

func (g *Gateway) extractWordle(ctx context.Context, text string, a DateAnchors) (*Extraction, error) {
	ex := newExtraction()

	scores, ok := ParseWordle(text, g.selfName, g.opponent)
	if !ok {
		resp, err := completeJSON[wordleResponse](ctx, g, ex, "wordle",
			fmt.Sprintf(wordleSystemPrompt, g.selfName, g.opponent), text)
		if err != nil {
			return nil, err
		}
		scores = WordleScores{Self: validScore(resp.Self), Opponent: validScore(resp.Opponent)}
	}

	date := a.Today.Format(DateLayout)
	ex.Title = "Wordle " + date
	ex.Fields["Date"] = date
	if scores.Self != nil {
		ex.Fields[g.selfName] = *scores.Self
	}
	if scores.Opponent != nil {
		ex.Fields[g.opponent] = *scores.Opponent
	}
	if scores.Self == nil && scores.Opponent == nil {
		ex.Warnings = append(ex.Warnings, "wordle: no scores found")
	}
	return ex, nil
}

// cleanNames trims names, drops empties and removes case-insensitive
// duplicates keeping the first spelling.
func cleanNames(names []string) []string {
	trimmed := lo.FilterMap(names, func(n string, _ int) (string, bool) {
		n = strings.TrimSpace(n)
		return n, n != ""
	})
	return lo.UniqBy(trimmed, strings.ToLower)
}

func matchOption(value string, options []string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, opt := range options {
		if strings.EqualFold(opt, value) {
			return opt, true
		}
	}
	return "", false
}

const maxFallbackTitle = 80

// titleOrFallback returns title, or the first line of text cut to a
// reasonable title length when the model gave nothing usable.
func titleOrFallback(title, text string) string {
	if title != "" {
		return title
	}
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if utf8.RuneCountInString(line) > maxFallbackTitle {
		line = string([]rune(line)[:maxFallbackTitle])
	}
	return line
}
