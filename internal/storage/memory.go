package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prosparity/linkedin-bot/internal/models"
)

// MemoryStorage keeps all state in-process. Used by tests and dry runs.
type MemoryStorage struct {
	mu            sync.RWMutex
	interactions  []*models.Interaction
	leads         map[string]*models.Lead
	counts        map[string]int
	resetAt       time.Time
	conversations map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		leads:         make(map[string]*models.Lead),
		counts:        make(map[string]int),
		conversations: make(map[string]string),
	}
}

func (s *MemoryStorage) SaveInteraction(ctx context.Context, interaction *models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *interaction
	s.interactions = append(s.interactions, &stored)
	return nil
}

func (s *MemoryStorage) RecentInteractions(ctx context.Context, limit int) ([]*models.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Interaction, len(s.interactions))
	copy(result, s.interactions)
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStorage) SaveLead(ctx context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *lead
	s.leads[lead.ID] = &stored
	return nil
}

func (s *MemoryStorage) UpdateLeadStatus(ctx context.Context, id string, status models.LeadStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, exists := s.leads[id]
	if !exists {
		return ErrNotFound
	}
	lead.CRMStatus = status
	return nil
}

// GetLead is a test helper for inspecting a stored lead.
func (s *MemoryStorage) GetLead(id string) (*models.Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, exists := s.leads[id]
	if !exists {
		return nil, false
	}
	copied := *lead
	return &copied, true
}

func (s *MemoryStorage) ActionWindow(ctx context.Context) (map[string]int, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	return counts, s.resetAt, nil
}

func (s *MemoryStorage) SaveActionWindow(ctx context.Context, counts map[string]int, resetAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts = make(map[string]int, len(counts))
	for k, v := range counts {
		s.counts[k] = v
	}
	s.resetAt = resetAt
	return nil
}

func (s *MemoryStorage) SeenConversation(ctx context.Context, conversationID, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.conversations[conversationID]
	return exists && stored == fingerprint, nil
}

func (s *MemoryStorage) MarkConversation(ctx context.Context, conversationID, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conversationID] = fingerprint
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
