package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"tube-courier/internal/media"
)

// Repository defines the concurrency-safe contract for session state.
type Repository interface {
	// Create stores a new session in AwaitingSelection and returns a copy.
	Create(ownerID int64, chat Chat, ref media.Reference, options []media.EncodingOption) (Session, error)

	// Get returns a copy of the session, or ErrNotFound.
	Get(id ID) (Session, error)

	// Transition atomically moves the session to `to` if its current state
	// is one of `from`, applying mutate under the same lock. It returns the
	// updated copy, ErrNotFound, or ErrInvalidTransition.
	Transition(id ID, from []State, to State, mutate ...func(*Session)) (Session, error)

	// Remove deletes the session. Removing a missing session is a no-op.
	Remove(id ID)

	// SweepExpired marks non-terminal sessions older than maxAge Expired and
	// removes them, and removes terminal sessions not updated for
	// terminalGrace. It returns the removed sessions.
	SweepExpired(maxAge, terminalGrace time.Duration) []Session

	// Count returns the number of sessions held.
	Count() int

	// CountByState returns the number of sessions per state.
	CountByState() map[State]int
}

var (
	// ErrNotFound is returned for unknown (or already swept) session ids.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidTransition is returned when a compare-and-set finds the
	// session in a state other than the expected ones.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
	now   func() time.Time
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the repository's time source. Intended for tests.
func (r *InMemoryRepository) WithClock(now func() time.Time) *InMemoryRepository {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
	return r
}

// Create implements Repository.Create.
func (r *InMemoryRepository) Create(ownerID int64, chat Chat, ref media.Reference, options []media.EncodingOption) (Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	sess := &Session{
		ID:        ID(id.String()),
		OwnerID:   ownerID,
		Chat:      chat,
		Reference: ref,
		Options:   slices.Clone(options),
		State:     AwaitingSelection,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.store.Set(sess)
	return sess.clone(), nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id ID) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.store.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess.clone(), nil
}

// Transition implements Repository.Transition.
func (r *InMemoryRepository) Transition(id ID, from []State, to State, mutate ...func(*Session)) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.store.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	if !slices.Contains(from, sess.State) {
		return sess.clone(), fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.State, to)
	}

	for _, fn := range mutate {
		fn(sess)
	}
	sess.State = to
	sess.UpdatedAt = r.now()
	return sess.clone(), nil
}

// Remove implements Repository.Remove.
func (r *InMemoryRepository) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Delete(id)
}

// SweepExpired implements Repository.SweepExpired.
func (r *InMemoryRepository) SweepExpired(maxAge, terminalGrace time.Duration) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed []Session
	for _, sess := range r.store.List() {
		switch {
		case !sess.State.Terminal() && now.Sub(sess.CreatedAt) > maxAge:
			sess.State = Expired
			sess.UpdatedAt = now
		case sess.State.Terminal() && now.Sub(sess.UpdatedAt) > terminalGrace:
		default:
			continue
		}
		removed = append(removed, sess.clone())
		r.store.Delete(sess.ID)
	}
	return removed
}

// Count implements Repository.Count.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.List())
}

// CountByState implements Repository.CountByState.
func (r *InMemoryRepository) CountByState() map[State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[State]int)
	for _, sess := range r.store.List() {
		out[sess.State]++
	}
	return out
}
