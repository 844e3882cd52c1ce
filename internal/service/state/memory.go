package state

import (
	"sync"
	"time"
)

// sweepInterval is how often the background sweep runs. Lookups are O(1),
// so the sweep only bounds memory, not lookup cost.
const sweepInterval = 30 * time.Minute

// MemoryStore stores state records in memory.
// Suitable for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a new in-memory state store and starts its
// background sweep.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*Record),
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Save stores a new state record.
func (s *MemoryStore) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Token] = rec
	return nil
}

// Consume retrieves and removes a record in one step. The mutex serializes
// concurrent callers, so at most one receives the record.
func (s *MemoryStore) Consume(token string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[token]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(s.records, token)
	return rec, nil
}

// SweepExpired removes all records past their expiry.
func (s *MemoryStore) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, token)
			removed++
		}
	}
	return removed
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close stops the background sweep.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Name returns the store type name.
func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.SweepExpired(time.Now())
		}
	}
}
