// Package liststore is the shared, in-memory task list store. It is the
// single client-side source of truth for task snapshots: screens seed their
// controllers from it and controllers upsert back after confirmed mutations.
// Updates flow one way (controller -> store) during an active session.
package liststore

import (
	"errors"
	"sort"
	"sync"

	"github.com/quickhand-app/quickhand/internal/api"
	"github.com/quickhand-app/quickhand/internal/status"
)

var ErrNotFound = errors.New("task not in store")

// Store holds task snapshots by id and fans out change notifications.
type Store struct {
	mu      sync.RWMutex
	tasks   map[string]api.Task
	subs    map[int]func(api.Task)
	nextSub int
}

func New() *Store {
	return &Store{
		tasks: map[string]api.Task{},
		subs:  map[int]func(api.Task){},
	}
}

// Get returns a copy of the snapshot for id.
func (s *Store) Get(id string) (api.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return api.Task{}, ErrNotFound
	}
	return t, nil
}

// Upsert stores a snapshot and notifies subscribers with a copy. Notification
// is synchronous; subscribers must not call back into the store.
func (s *Store) Upsert(t api.Task) {
	s.mu.Lock()
	s.tasks[t.ID] = t
	subs := make([]func(api.Task), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}

// Remove drops a snapshot, if present. Subscribers are not notified.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

// List returns all snapshots, newest first.
func (s *Store) List() []api.Task {
	s.mu.RLock()
	out := make([]api.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Grouped returns the snapshots bucketed for list display, newest first
// within each bucket. Grouping uses the list normalization, not the
// lifecycle one: raw OPEN files under the PENDING bucket here.
func (s *Store) Grouped() map[status.ListBucket][]api.Task {
	out := map[status.ListBucket][]api.Task{}
	for _, t := range s.List() {
		b := status.NormalizeListBucket(t.Status)
		out[b] = append(out[b], t)
	}
	return out
}

// Subscribe registers fn for every subsequent upsert and returns an
// unsubscribe func. Safe to call the unsubscribe func more than once.
func (s *Store) Subscribe(fn func(api.Task)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
