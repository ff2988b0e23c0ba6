// internal/repository/memory/arena.go
package memory

import (
	"context"
	"sync"
	"time"

	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"
)

type slot struct {
	previewID string
	preview   *models.Preview
	expiresAt time.Time
}

// PreviewArena is the in-process arena. Expired slots are dropped lazily on access.
type PreviewArena struct {
	mu    sync.Mutex
	slots map[string]*slot
	now   func() time.Time
}

var _ repository.PreviewArena = (*PreviewArena)(nil)

func NewPreviewArena() *PreviewArena {
	return &PreviewArena{slots: make(map[string]*slot), now: time.Now}
}

// WithClock replaces the time source; tests use it to expire slots.
func (a *PreviewArena) WithClock(now func() time.Time) *PreviewArena {
	a.now = now
	return a
}

func (a *PreviewArena) live(applicationID string) *slot {
	s, ok := a.slots[applicationID]
	if !ok {
		return nil
	}
	if !a.now().Before(s.expiresAt) {
		delete(a.slots, applicationID)
		return nil
	}
	return s
}

func (a *PreviewArena) Claim(_ context.Context, applicationID, previewID string, ttl time.Duration) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.live(applicationID) != nil {
		return false, nil
	}
	a.slots[applicationID] = &slot{previewID: previewID, expiresAt: a.now().Add(ttl)}
	return true, nil
}

func (a *PreviewArena) Fill(_ context.Context, preview *models.Preview, ttl time.Duration) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.live(preview.ApplicationID)
	if s == nil || s.previewID != preview.ID {
		return false, nil
	}
	p := *preview
	s.preview = &p
	s.expiresAt = a.now().Add(ttl)
	return true, nil
}

func (a *PreviewArena) Get(_ context.Context, applicationID string) (*models.Preview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.live(applicationID)
	if s == nil || s.preview == nil {
		return nil, repository.ErrNotFound
	}
	p := *s.preview
	return &p, nil
}

func (a *PreviewArena) Discard(_ context.Context, applicationID, previewID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.slots[applicationID]; ok && s.previewID == previewID {
		delete(a.slots, applicationID)
	}
	return nil
}
