package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evolv/internal/models"
)

// MemoryStore keeps artworks in insertion order.
type MemoryStore struct {
	mu       sync.RWMutex
	order    []string
	artworks map[string]*models.Artwork
	now      func() time.Time
}

func NewMemoryStore(seed []models.Artwork) *MemoryStore {
	s := &MemoryStore{
		artworks: make(map[string]*models.Artwork, len(seed)),
		now:      time.Now,
	}
	for i := range seed {
		art := seed[i].Clone()
		if _, dup := s.artworks[art.ID]; dup {
			logrus.WithField("artwork_id", art.ID).Warn("Duplicate artwork id in seed, keeping first")
			continue
		}
		s.order = append(s.order, art.ID)
		s.artworks[art.ID] = art
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Artwork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	art, ok := s.artworks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return art.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, page, pageSize int) (*models.ArtworkPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.order)
	start, end := pageBounds(page, pageSize, total)

	items := make([]models.Artwork, 0, end-start)
	for _, id := range s.order[start:end] {
		items = append(items, *s.artworks[id].Clone())
	}

	return &models.ArtworkPage{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		HasMore:  end < total,
	}, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Artwork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.Artwork, 0)
	for _, id := range s.order {
		if art := s.artworks[id]; art.OwnerID == ownerID {
			items = append(items, *art.Clone())
		}
	}
	return items, nil
}

func (s *MemoryStore) AppendEvolution(ctx context.Context, artworkID string, evo models.Evolution) (*models.Artwork, error) {
	if evo.ID == "" {
		return nil, fmt.Errorf("evolution id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	art, ok := s.artworks[artworkID]
	if !ok {
		return nil, ErrNotFound
	}

	updated := art.Clone()
	if evo.Step == 0 {
		evo.Step = updated.NextStep()
	}
	evo.Params = evo.Params.Clone()
	updated.Evolutions = append(updated.Evolutions, evo)
	updated.UpdatedAt = later(s.now(), art.UpdatedAt)
	s.artworks[artworkID] = updated

	return updated.Clone(), nil
}

// later returns now, nudged forward if the clock has not moved past prev.
func later(now, prev time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}
