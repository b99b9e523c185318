package testkit

import (
	"context"
	"errors"
	"sync"

	"pulsaroutlier/domain/chain"
)

// MemoryChainStore keeps deep copies of saved chain tables
type MemoryChainStore struct {
	mu     sync.Mutex
	tables *chain.Tables
	saves  []int
	// FailSave, when set, is returned by every Save
	FailSave error
}

// NewMemoryChainStore creates an empty store
func NewMemoryChainStore() *MemoryChainStore {
	return &MemoryChainStore{}
}

func (s *MemoryChainStore) Save(ctx context.Context, t *chain.Tables) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.tables = copyTables(t)
	s.saves = append(s.saves, t.MinLen())
	return nil
}

func (s *MemoryChainStore) Load(ctx context.Context) (*chain.Tables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables == nil {
		return nil, errors.New("no chain saved")
	}
	return copyTables(s.tables), nil
}

func (s *MemoryChainStore) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables != nil, nil
}

// Put replaces the stored tables without recording a save
func (s *MemoryChainStore) Put(t *chain.Tables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = copyTables(t)
}

// Saves returns the row count of every Save so far
func (s *MemoryChainStore) Saves() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.saves...)
}

func copyTables(t *chain.Tables) *chain.Tables {
	out := &chain.Tables{
		Params: copyRows(t.Params),
		B:      copyRows(t.B),
		Theta:  append([]float64(nil), t.Theta...),
		Z:      copyRows(t.Z),
		Alpha:  copyRows(t.Alpha),
		Pout:   copyRows(t.Pout),
		DF:     append([]float64(nil), t.DF...),
	}
	return out
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
