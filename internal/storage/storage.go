package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tappo/tappo/internal/models"
)

// In-memory implementations. They back the service when PostgreSQL is
// unavailable and serve as fakes in tests.

// InMemoryPageRepo stores pages in memory.
type InMemoryPageRepo struct {
	mu     sync.RWMutex
	pages  map[string]*models.Page
	bySlug map[string]string
}

func NewInMemoryPageRepo() *InMemoryPageRepo {
	return &InMemoryPageRepo{
		pages:  make(map[string]*models.Page),
		bySlug: make(map[string]string),
	}
}

// Put inserts or replaces p.
func (r *InMemoryPageRepo) Put(p *models.Page) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.pages[p.ID] = &cp
	r.bySlug[p.Slug] = p.ID
}

func (r *InMemoryPageRepo) GetByID(ctx context.Context, id string) (*models.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.pages[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *InMemoryPageRepo) GetBySlug(ctx context.Context, slug string) (*models.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySlug[slug]
	if !ok {
		return nil, nil
	}
	cp := *r.pages[id]
	return &cp, nil
}

// InMemoryTagRepo stores tags in memory.
type InMemoryTagRepo struct {
	mu     sync.RWMutex
	tags   map[string]*models.NfcTag
	byCode map[string]string
}

func NewInMemoryTagRepo() *InMemoryTagRepo {
	return &InMemoryTagRepo{
		tags:   make(map[string]*models.NfcTag),
		byCode: make(map[string]string),
	}
}

// Put inserts or replaces t.
func (r *InMemoryTagRepo) Put(t *models.NfcTag) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	if cp.SyncStatus == "" {
		cp.SyncStatus = models.SyncIdle
	}
	r.tags[t.ID] = &cp
	r.byCode[t.Code] = t.ID
}

func (r *InMemoryTagRepo) GetByID(ctx context.Context, id string) (*models.NfcTag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tags[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *InMemoryTagRepo) GetByCode(ctx context.Context, code string) (*models.NfcTag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *r.tags[id]
	return &cp, nil
}

func (r *InMemoryTagRepo) ListByUser(ctx context.Context, userID string) ([]*models.NfcTag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*models.NfcTag, 0)
	for _, t := range r.tags {
		if t.UserID == userID {
			cp := *t
			res = append(res, &cp)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (r *InMemoryTagRepo) MarkSyncRunning(ctx context.Context, id, attempt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[id]
	if !ok {
		return nil
	}
	t.SyncStatus = models.SyncRunning
	t.SyncError = nil
	t.SyncAttempt = attempt
	return nil
}

func (r *InMemoryTagRepo) CompleteSync(ctx context.Context, id, attempt string, data models.PlaceData) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[id]
	if !ok || t.SyncAttempt != attempt {
		return false, nil
	}
	syncedAt := data.SyncedAt
	t.SyncStatus = models.SyncOK
	t.SyncError = nil
	t.PlaceTitle = data.Title
	t.PlaceRating = data.Rating
	t.PlaceReviewsCount = data.ReviewsCount
	t.PlacePhotoURL = data.PhotoURL
	t.ReviewProvider = data.Provider
	t.LastSync = &syncedAt
	return true, nil
}

func (r *InMemoryTagRepo) FailSync(ctx context.Context, id, attempt, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[id]
	if !ok || t.SyncAttempt != attempt {
		return false, nil
	}
	msg := message
	t.SyncStatus = models.SyncError
	t.SyncError = &msg
	return true, nil
}

// InMemorySnapshotRepo stores review snapshots in memory.
type InMemorySnapshotRepo struct {
	mu        sync.RWMutex
	snapshots map[string][]*models.ReviewSnapshot
	now       func() time.Time
}

func NewInMemorySnapshotRepo() *InMemorySnapshotRepo {
	return &InMemorySnapshotRepo{
		snapshots: make(map[string][]*models.ReviewSnapshot),
		now:       time.Now,
	}
}

func (r *InMemorySnapshotRepo) Append(ctx context.Context, s *models.ReviewSnapshot) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.now()
	}
	r.snapshots[s.TagID] = append(r.snapshots[s.TagID], &cp)
	return nil
}

func (r *InMemorySnapshotRepo) ListByTag(ctx context.Context, tagID string, limit int) ([]*models.ReviewSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.snapshots[tagID]
	res := make([]*models.ReviewSnapshot, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(res) >= limit {
			break
		}
		cp := *all[i]
		res = append(res, &cp)
	}
	return res, nil
}
