package matcher

import (
	"context"
	"sync"

	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/workspace"
)

// Session holds what one run has already resolved, so repeated mentions
// resolve to the same record without further store calls.
type Session struct {
	mu       sync.Mutex
	resolved map[string]models.ResolvedEntity
	titleSet map[string][]string
}

// NewSession starts an empty run session.
func NewSession() *Session {
	return &Session{
		resolved: make(map[string]models.ResolvedEntity),
		titleSet: make(map[string][]string),
	}
}

// sessionKey is case-sensitive, like the stores' exact title filter.
func sessionKey(collection, name string) string {
	return collection + "\x00" + name
}

func (s *Session) lookup(collection, name string) (models.ResolvedEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.resolved[sessionKey(collection, name)]
	return res, ok
}

func (s *Session) remember(collection, name string, res models.ResolvedEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[sessionKey(collection, name)] = res
}

// titles lists the collection's titles, fetching them once per run.
func (s *Session) titles(ctx context.Context, store workspace.Store, collection string) ([]string, error) {
	s.mu.Lock()
	cached, ok := s.titleSet[collection]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	titles, err := store.AllTitles(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if titles == nil {
		titles = []string{}
	}
	s.titleSet[collection] = titles
	return titles, nil
}

func (s *Session) addTitle(collection, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if titles, ok := s.titleSet[collection]; ok {
		s.titleSet[collection] = append(titles, title)
	}
}
