package matchclock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/matchday/go/internal/models"
)

// MemoryRepository keeps clocks in process memory. Each match has its own
// mutex so updates to one match never wait on another. A match lock exists
// exactly when its clock does.
type MemoryRepository struct {
	mu     sync.RWMutex
	clocks map[uuid.UUID]models.MatchClock
	events map[uuid.UUID][]models.MatchEvent

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		clocks: make(map[uuid.UUID]models.MatchClock),
		events: make(map[uuid.UUID][]models.MatchEvent),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *MemoryRepository) CreateClock(ctx context.Context, clock models.MatchClock) (*models.MatchClock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clocks[clock.MatchID]; exists {
		return nil, fmt.Errorf("%w: match %s already has a clock", ErrInvalidTransition, clock.MatchID)
	}
	clock.Version = 1
	r.clocks[clock.MatchID] = clock

	r.locksMu.Lock()
	r.locks[clock.MatchID] = &sync.Mutex{}
	r.locksMu.Unlock()

	return &clock, nil
}

func (r *MemoryRepository) GetClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clock, ok := r.clocks[matchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	return &clock, nil
}

// UpdateClock runs fn against a copy of the clock under the match lock and
// stores the copy only if fn succeeds.
func (r *MemoryRepository) UpdateClock(ctx context.Context, matchID uuid.UUID, fn MutateFunc) (*models.MatchClock, error) {
	lock, ok := r.matchLock(matchID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransientStorage, err)
	}

	current, err := r.GetClock(ctx, matchID)
	if err != nil {
		return nil, err
	}

	next := *current
	events, err := fn(&next)
	if err != nil {
		return nil, err
	}
	next.MatchID = current.MatchID
	next.Version = current.Version + 1

	r.mu.Lock()
	r.clocks[matchID] = next
	r.events[matchID] = append(r.events[matchID], events...)
	r.mu.Unlock()

	return &next, nil
}

func (r *MemoryRepository) ListEvents(ctx context.Context, matchID uuid.UUID) ([]models.MatchEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]models.MatchEvent, len(r.events[matchID]))
	copy(events, r.events[matchID])
	return events, nil
}

func (r *MemoryRepository) matchLock(matchID uuid.UUID) (*sync.Mutex, bool) {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock, ok := r.locks[matchID]
	return lock, ok
}
