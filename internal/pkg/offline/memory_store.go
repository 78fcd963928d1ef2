package offline

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and environments without
// a local Redis. Contents do not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]LocalRecord
	mutations map[uint64]Mutation
	seq       uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]LocalRecord),
		mutations: make(map[uint64]Mutation),
	}
}

func (s *MemoryStore) PutRecord(ctx context.Context, record LocalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID.String()] = record
	return nil
}

func (s *MemoryStore) Records(ctx context.Context) ([]LocalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]LocalRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	return records, nil
}

func (s *MemoryStore) DeleteRecord(ctx context.Context, id RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id.String())
	return nil
}

func (s *MemoryStore) ClearRecords(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]LocalRecord)
	return nil
}

func (s *MemoryStore) AppendMutation(ctx context.Context, m Mutation) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	m.Key = s.seq
	s.mutations[m.Key] = m
	return m.Key, nil
}

func (s *MemoryStore) Mutations(ctx context.Context) ([]Mutation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mutations := make([]Mutation, 0, len(s.mutations))
	for _, m := range s.mutations {
		mutations = append(mutations, m)
	}
	sort.Slice(mutations, func(i, j int) bool { return mutations[i].Key < mutations[j].Key })
	return mutations, nil
}

func (s *MemoryStore) DeleteMutation(ctx context.Context, key uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mutations, key)
	return nil
}
