package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tappo/tappo/internal/models"
)

// InMemoryEventStore provides in-memory storage for interaction events.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events []*models.InteractionEvent
	now    func() time.Time

	// user_id -> positions in events
	byUser map[string][]int
}

// NewInMemoryEventStore creates a new in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		now:    time.Now,
		byUser: make(map[string][]int),
	}
}

// Insert appends ev. A zero CreatedAt is stamped with the store clock; a
// preset one is kept so fixtures can place events in time.
func (s *InMemoryEventStore) Insert(ctx context.Context, ev *models.InteractionEvent) error {
	if ev == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	cp := *ev
	s.events = append(s.events, &cp)
	s.byUser[ev.UserID] = append(s.byUser[ev.UserID], len(s.events)-1)
	return nil
}

func (s *InMemoryEventStore) List(ctx context.Context, f EventFilter) ([]*models.InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make(map[models.EventType]struct{}, len(f.Types))
	for _, t := range f.Types {
		types[t] = struct{}{}
	}

	res := make([]*models.InteractionEvent, 0)
	for _, idx := range s.byUser[f.UserID] {
		ev := s.events[idx]
		if len(types) > 0 {
			if _, ok := types[ev.EventType]; !ok {
				continue
			}
		}
		if !f.From.IsZero() && ev.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && ev.CreatedAt.After(f.To) {
			continue
		}
		if f.TagID != "" && ev.NfcTagID != f.TagID {
			continue
		}
		cp := *ev
		res = append(res, &cp)
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

// Len returns the number of stored events.
func (s *InMemoryEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
