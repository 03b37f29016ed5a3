package recommend

import (
	"context"
	"sort"
	"sync"

	"github.com/wonny/rgm/internal/contracts"
)

// Store persists completed scenario results. Results are written once and never updated:
// saving an existing scenario id returns contracts.ErrScenarioExists.
type Store interface {
	SaveResult(ctx context.Context, result *contracts.ScenarioResult) error
	GetResult(ctx context.Context, scenarioID string) (*contracts.ScenarioResult, error)
	ListResults(ctx context.Context, limit int) ([]contracts.ScenarioResult, error)
}

// MemoryStore keeps results in process (sample runs, tests, API without a database)
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]contracts.ScenarioResult
}

// NewMemoryStore creates an empty in-memory result store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]contracts.ScenarioResult)}
}

// SaveResult stores the result; a second save of the same scenario returns
// contracts.ErrScenarioExists and leaves the first one in place
func (s *MemoryStore) SaveResult(_ context.Context, result *contracts.ScenarioResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[result.ScenarioID]; ok {
		return contracts.ErrScenarioExists
	}
	s.results[result.ScenarioID] = *result
	return nil
}

// GetResult returns contracts.ErrScenarioNotFound for unknown ids
func (s *MemoryStore) GetResult(_ context.Context, scenarioID string) (*contracts.ScenarioResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[scenarioID]
	if !ok {
		return nil, contracts.ErrScenarioNotFound
	}
	return &r, nil
}

// ListResults returns the most recently completed results first
func (s *MemoryStore) ListResults(_ context.Context, limit int) ([]contracts.ScenarioResult, error) {
	s.mu.RLock()
	out := make([]contracts.ScenarioResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].ScenarioID < out[j].ScenarioID
		}
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
