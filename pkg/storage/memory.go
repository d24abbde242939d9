package storage

import (
	"sort"
	"sync"

	"heart-audio/pkg/models"
)

// MemoryStore tracks analyses while they move through the pipeline so callers
// can poll their status before they are persisted.
type MemoryStore interface {
	StoreAnalysis(a *models.Analysis) error
	GetAnalysis(id string) (*models.Analysis, error)
	GetUserAnalyses(userID string) ([]*models.Analysis, error)
	UpdateStatus(id string, status models.ProcessingStatus) error
	Delete(id string)
}

type memoryStore struct {
	analyses map[string]*models.Analysis
	mu       sync.RWMutex
}

func NewMemoryStore() MemoryStore {
	return &memoryStore{
		analyses: make(map[string]*models.Analysis),
	}
}

func (s *memoryStore) StoreAnalysis(a *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyses[a.ID] = a.Clone()
	return nil
}

func (s *memoryStore) GetAnalysis(id string) (*models.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.analyses[id]
	if !exists {
		return nil, ErrAnalysisNotFound
	}

	return a.Clone(), nil
}

// GetUserAnalyses returns the user's analyses, newest first.
func (s *memoryStore) GetUserAnalyses(userID string) ([]*models.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Analysis
	for _, a := range s.analyses {
		if a.UserID == userID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

func (s *memoryStore) UpdateStatus(id string, status models.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.analyses[id]
	if !exists {
		return ErrAnalysisNotFound
	}

	a.Status = status
	return nil
}

func (s *memoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.analyses, id)
}
