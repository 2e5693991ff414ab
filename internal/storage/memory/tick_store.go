package memory

import (
	"context"
	"sort"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
// Ticks are an analytics stream; duplicates are kept.
type TickStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.ValuationTick // keyed by position_id
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{
		data: make(map[string][]*domain.ValuationTick),
	}
}

// InsertBulk adds ticks. Fails the entire batch on invalid input.
func (s *TickStore) InsertBulk(_ context.Context, ticks []*domain.ValuationTick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if t == nil || t.PositionID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		copy := *t
		s.data[t.PositionID] = append(s.data[t.PositionID], &copy)
	}
	return nil
}

// GetByPosition retrieves ticks within [start, end] unix ms, ordered by timestamp ASC.
func (s *TickStore) GetByPosition(_ context.Context, positionID string, start, end int64) ([]*domain.ValuationTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ValuationTick
	for _, t := range s.data[positionID] {
		ms := t.Timestamp.UnixMilli()
		if ms >= start && ms <= end {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

var _ storage.TickStore = (*TickStore)(nil)
