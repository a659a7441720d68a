// Package matcher resolves spoken entity names to workspace records.
//
// Resolution walks a fixed ladder of tiers, cheapest and most precise first,
// and stops at the first hit:
//
//  1. exact title (run memo, then store)
//  2. singular or plural form of the name
//  3. case-insensitive substring, ranked by edit distance
//  4. shared word tokens with a unique best score
//  5. language model pick among all titles
//  6. create a title-only record (when allowed)
//  7. unresolved
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
	"github.com/jinzhu/inflection"
	"github.com/samber/lo"

	"github.com/raphaelgruber/dictate-go/internal/llm"
	"github.com/raphaelgruber/dictate-go/internal/metrics"
	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/schema"
	"github.com/raphaelgruber/dictate-go/internal/workspace"
)

// SemanticMatcher picks the candidate a term refers to, if any.
type SemanticMatcher interface {
	FindBestSemanticMatch(ctx context.Context, term string, candidates []string) (string, bool, error)
}

// ResolveOptions tunes one resolution.
type ResolveOptions struct {
	// AllowCreate enables tier 6.
	AllowCreate bool
	// Payload, when set, is the full record created in tier 6. Its
	// collection, title field and title are overwritten from the mention.
	Payload *models.RecordPayload
}

// Matcher resolves mentions against a store. Safe for concurrent use.
type Matcher struct {
	store    workspace.Store
	registry *schema.Registry
	semantic SemanticMatcher
	metrics  *metrics.Collector
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a matcher. semantic and collector may be nil; a nil semantic
// matcher skips tier 5.
func New(store workspace.Store, registry *schema.Registry, semantic SemanticMatcher, collector *metrics.Collector, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		store:    store,
		registry: registry,
		semantic: semantic,
		metrics:  collector,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// collectionLock serializes find-or-create per collection within this
// process.
func (m *Matcher) collectionLock(collection string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		m.locks[collection] = l
	}
	return l
}

// Resolve maps mention onto a record of collection. Store failures are
// returned as errors; everything else ends in a ResolvedEntity, possibly
// unresolved.
func (m *Matcher) Resolve(ctx context.Context, s *Session, mention models.EntityMention, collection string, opts ResolveOptions) (models.ResolvedEntity, []models.ActionLogEntry, error) {
	name := strings.TrimSpace(mention.Name)
	mention.Name = name
	if name == "" {
		return unresolved(mention, collection)
	}
	if s == nil {
		s = NewSession()
	}

	res, entries, err := m.resolve(ctx, s, mention, collection, opts)
	if err != nil {
		return models.ResolvedEntity{}, nil, fmt.Errorf("resolve %q in %s: %w", name, collection, err)
	}
	if res.Resolved() {
		s.remember(collection, name, res)
	}
	if m.metrics != nil {
		m.metrics.RecordTier(string(res.Tier))
	}
	m.logger.Debug("entity resolved", "name", name, "collection", collection, "tier", res.Tier, "record_id", res.RecordID)
	return res, entries, nil
}

func (m *Matcher) resolve(ctx context.Context, s *Session, mention models.EntityMention, collection string, opts ResolveOptions) (models.ResolvedEntity, []models.ActionLogEntry, error) {
	name := mention.Name

	// Tier 1: exact. A record this run already resolved or created counts
	// as an exact match.
	if prev, ok := s.lookup(collection, name); ok {
		prev.Mention = mention
		prev.Tier = models.TierExact
		return prev, []models.ActionLogEntry{matchedEntry(prev, collection)}, nil
	}
	if rec, ok, err := m.first(ctx, collection, workspace.Equals(name)); err != nil || ok {
		return m.hit(mention, rec, collection, models.TierExact, err)
	}

	// Tier 2: singular and plural forms.
	for _, form := range variants(name) {
		if rec, ok, err := m.first(ctx, collection, workspace.Equals(form)); err != nil || ok {
			return m.hit(mention, rec, collection, models.TierNormalized, err)
		}
	}

	// Tier 3: substring ranked by edit distance.
	hits, err := m.store.Query(ctx, collection, workspace.Contains(name))
	if err != nil {
		return models.ResolvedEntity{}, nil, err
	}
	if len(hits) > 0 {
		return m.hit(mention, closest(name, hits), collection, models.TierFuzzy, nil)
	}

	titles, err := s.titles(ctx, m.store, collection)
	if err != nil {
		return models.ResolvedEntity{}, nil, err
	}

	// Tier 4: token overlap with a unique best score.
	if title, ok := bestOverlap(name, titles); ok {
		if rec, ok, err := m.first(ctx, collection, workspace.Equals(title)); err != nil || ok {
			return m.hit(mention, rec, collection, models.TierLexical, err)
		}
	}

	// Tier 5: language model.
	var warnings []models.ActionLogEntry
	if m.semantic != nil && len(titles) > 0 {
		title, ok, err := m.semantic.FindBestSemanticMatch(ctx, name, titles)
		switch {
		case err != nil && isAbort(err):
			return models.ResolvedEntity{}, nil, err
		case err != nil:
			m.logger.Warn("semantic match failed", "name", name, "collection", collection, "error", err)
			warnings = append(warnings, models.WarningEntry("Semantic match for '%s' failed: %v", name, err))
		case ok:
			if rec, found, err := m.first(ctx, collection, workspace.Equals(title)); err != nil || found {
				return m.hit(mention, rec, collection, models.TierSemantic, err)
			}
		}
	}

	// Tier 6: create.
	if opts.AllowCreate {
		res, entries, err := m.create(ctx, s, mention, collection, opts.Payload)
		return res, append(warnings, entries...), err
	}

	// Tier 7: unresolved.
	res, entries, _ := unresolved(mention, collection)
	return res, append(warnings, entries...), nil
}

func (m *Matcher) create(ctx context.Context, s *Session, mention models.EntityMention, collection string, payload *models.RecordPayload) (models.ResolvedEntity, []models.ActionLogEntry, error) {
	lock := m.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	// A concurrent run may have created it while we walked the tiers.
	if rec, ok, err := m.first(ctx, collection, workspace.Equals(mention.Name)); err != nil || ok {
		return m.hit(mention, rec, collection, models.TierExact, err)
	}

	var p models.RecordPayload
	if payload != nil {
		p = *payload
	}
	p.Collection = collection
	p.TitleField = m.registry.TitleField(collection)
	p.Title = mention.Name

	rec, err := m.store.Create(ctx, p)
	if err != nil {
		return models.ResolvedEntity{}, nil, fmt.Errorf("create: %w", err)
	}
	s.addTitle(collection, rec.Title)

	res := models.ResolvedEntity{
		Mention:  mention,
		RecordID: rec.ID,
		Title:    mention.Name,
		URL:      rec.URL,
		Tier:     models.TierCreated,
	}
	return res, []models.ActionLogEntry{models.CreatedEntry(collection, mention.Name, rec.ID, rec.URL)}, nil
}

func (m *Matcher) first(ctx context.Context, collection string, f workspace.Filter) (workspace.Record, bool, error) {
	recs, err := m.store.Query(ctx, collection, f)
	if err != nil || len(recs) == 0 {
		return workspace.Record{}, false, err
	}
	return recs[0], true, nil
}

func (m *Matcher) hit(mention models.EntityMention, rec workspace.Record, collection string, tier models.MatchTier, err error) (models.ResolvedEntity, []models.ActionLogEntry, error) {
	if err != nil {
		return models.ResolvedEntity{}, nil, err
	}
	res := models.ResolvedEntity{
		Mention:  mention,
		RecordID: rec.ID,
		Title:    rec.Title,
		URL:      rec.URL,
		Tier:     tier,
	}
	return res, []models.ActionLogEntry{matchedEntry(res, collection)}, nil
}

func matchedEntry(res models.ResolvedEntity, collection string) models.ActionLogEntry {
	return models.ActionLogEntry{
		Kind:       models.ActionMatched,
		Message:    fmt.Sprintf("Matched '%s' to existing page '%s' in %s database (%s).", res.Mention.Name, res.Title, collection, res.Tier),
		Collection: collection,
		RecordID:   res.RecordID,
		URL:        res.URL,
	}
}

func unresolved(mention models.EntityMention, collection string) (models.ResolvedEntity, []models.ActionLogEntry, error) {
	res := models.ResolvedEntity{Mention: mention, Tier: models.TierUnresolved}
	return res, []models.ActionLogEntry{models.InfoEntry("Could not resolve '%s' in %s database.", mention.Name, collection)}, nil
}

func isAbort(err error) bool {
	return errors.Is(err, llm.ErrFatalAPI) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// variants returns the singular and plural forms of name that differ from it.
func variants(name string) []string {
	forms := []string{inflection.Singular(name), inflection.Plural(name)}
	return lo.Uniq(lo.Filter(forms, func(f string, _ int) bool { return f != "" && f != name }))
}

// closest picks the hit with the smallest case-insensitive edit distance to
// name. Ties go to the earlier hit.
func closest(name string, hits []workspace.Record) workspace.Record {
	lower := strings.ToLower(name)
	best, bestDist := hits[0], matchr.Levenshtein(lower, strings.ToLower(hits[0].Title))
	for _, h := range hits[1:] {
		if d := matchr.Levenshtein(lower, strings.ToLower(h.Title)); d < bestDist {
			best, bestDist = h, d
		}
	}
	return best
}

// tokens splits s on whitespace, lower-cased. Punctuation stays part of
// its word.
func tokens(s string) []string {
	return lo.Uniq(strings.Fields(strings.ToLower(s)))
}

// bestOverlap returns the title sharing the most tokens with name. It
// reports false when no title shares a token or the best score is tied.
func bestOverlap(name string, titles []string) (string, bool) {
	want := tokens(name)
	best, bestScore, tied := "", 0, false
	for _, title := range titles {
		score := len(lo.Filter(tokens(title), func(t string, _ int) bool { return lo.Contains(want, t) }))
		switch {
		case score > bestScore:
			best, bestScore, tied = title, score, false
		case score == bestScore && score > 0 && title != best:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return "", false
	}
	return best, true
}
