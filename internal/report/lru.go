package report

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recent records in memory and delegates to a
// backing Store on miss. Writes always go through to the backing store.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List // front is most recently used
	items map[string]*list.Element
}

// NewLRUStore creates a cache holding up to cap records in front of back.
// Capacities below 1 are raised to 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save caches the record and writes it through to the backing store.
func (s *LRUStore) Save(record *Record) error {
	s.mu.Lock()
	s.put(record)
	s.mu.Unlock()

	return s.back.Save(record)
}

// Load checks the cache first. On miss the record is read from the backing
// store and promoted.
func (s *LRUStore) Load(runID string) (*Record, error) {
	s.mu.Lock()
	if e, ok := s.items[runID]; ok {
		s.order.MoveToFront(e)
		r := e.Value.(*Record)
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	record, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.put(record)
	s.mu.Unlock()

	return record, nil
}

// Len returns the number of cached records.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// put inserts or refreshes record. Callers hold s.mu.
func (s *LRUStore) put(record *Record) {
	if e, ok := s.items[record.ID]; ok {
		e.Value = record
		s.order.MoveToFront(e)
		return
	}
	s.items[record.ID] = s.order.PushFront(record)
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*Record).ID)
	}
}
