package state

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dtroode/gophdate-session/internal/event"
	"github.com/dtroode/gophdate-session/internal/model"
)

// Store holds the current State and notifies listeners on every dispatch.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[uint64]func(State)
	order     []uint64
	nextID    uint64
}

func NewStore() *Store {
	return &Store{
		state:     Initial(),
		listeners: make(map[uint64]func(State)),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and calls listeners with the new state, outside the lock.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	listeners := make([]func(State), 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.order = slices.DeleteFunc(s.order, func(v uint64) bool { return v == id })
			s.mu.Unlock()
		})
	}
}

// Seed dispatches InitComplete with whatever the credential store holds.
// A read error still completes initialization, unauthenticated.
func (s *Store) Seed(ctx context.Context, credentials model.CredentialStore) error {
	session, err := credentials.Get(ctx)
	if err != nil {
		s.Dispatch(Action{Type: InitComplete})
		return fmt.Errorf("failed to read stored session: %w", err)
	}

	s.Dispatch(Action{
		Type:        InitComplete,
		User:        session.User,
		AccessToken: session.AccessToken,
	})
	return nil
}

// OnTokensRefreshed replaces the cached profile with the refreshed one.
func (s *Store) OnTokensRefreshed(evt event.TokensRefreshed) {
	user := evt.User
	s.Dispatch(Action{Type: UpdateProfile, User: &user})
}
