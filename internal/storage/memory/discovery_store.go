package memory

import (
	"context"
	"sort"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// DiscoveryStore is an in-memory implementation of storage.DiscoveryStore.
type DiscoveryStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.DiscoveryRecord // keyed by id
	byMint map[string][]string                // mint -> ids
}

// NewDiscoveryStore creates a new in-memory discovery store.
func NewDiscoveryStore() *DiscoveryStore {
	return &DiscoveryStore{
		data:   make(map[string]*domain.DiscoveryRecord),
		byMint: make(map[string][]string),
	}
}

// Insert adds a record. Returns ErrDuplicateKey if id exists.
func (s *DiscoveryStore) Insert(_ context.Context, r *domain.DiscoveryRecord) error {
	if r == nil || r.ID == "" || r.Candidate.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.ID] = &copy
	s.byMint[r.Candidate.Mint] = append(s.byMint[r.Candidate.Mint], r.ID)
	return nil
}

// GetByMint retrieves all records for a mint, ordered by discovered_at ASC.
func (s *DiscoveryStore) GetByMint(_ context.Context, mint string) ([]*domain.DiscoveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byMint[mint]
	result := make([]*domain.DiscoveryRecord, 0, len(ids))
	for _, id := range ids {
		copy := *s.data[id]
		result = append(result, &copy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Candidate.DiscoveredAt.Before(result[j].Candidate.DiscoveredAt)
	})

	return result, nil
}

// ListRecent retrieves up to limit records, most recent first.
func (s *DiscoveryStore) ListRecent(_ context.Context, limit int) ([]*domain.DiscoveryRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.DiscoveryRecord, 0, len(s.data))
	for _, r := range s.data {
		copy := *r
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		ti, tj := result[i].Candidate.DiscoveredAt, result[j].Candidate.DiscoveredAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return result[i].ID < result[j].ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.DiscoveryStore = (*DiscoveryStore)(nil)
