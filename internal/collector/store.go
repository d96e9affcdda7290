package collector

import (
	"slices"
	"sync"
	"time"

	"github.com/paaavkata/crypto-dashboard/pkg/models"
)

// Store holds the current view state. Replace swaps the whole value, so
// readers always see one complete cycle.
type Store struct {
	mu          sync.RWMutex
	state       *models.ViewState
	lastSuccess time.Time
	subscribers []func(*models.ViewState)
}

func NewStore() *Store {
	return &Store{state: models.NewViewState()}
}

// Snapshot returns the current state. Callers must treat it as read-only.
func (s *Store) Snapshot() *models.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Replace(state *models.ViewState) {
	s.mu.Lock()
	s.state = state
	s.lastSuccess = time.Now()
	subscribers := slices.Clone(s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(state)
	}
}

// Subscribe registers fn to be called after every Replace.
func (s *Store) Subscribe(fn func(*models.ViewState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// LastSuccess is the time of the last Replace, zero before the first one.
func (s *Store) LastSuccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess
}
