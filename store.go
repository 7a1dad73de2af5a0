package possync

import (
	"context"
	"sync"
)

// --- Default Local Store Implementation ---

// nsKey identifies one (entityType, tenantID) snapshot namespace.
type nsKey struct {
	entityType string
	tenantID   string
}

// localStore implements Store using in-memory maps. It is the default store
// for single-process use and tests; durable deployments use a driver (e.g.
// drivers/store/sqlite).
type localStore struct {
	mu         sync.RWMutex
	namespaces map[nsKey]map[string][]byte // namespace -> record id -> JSON document
	order      map[nsKey][]string          // insertion order per namespace, for stable GetAll
	counters   map[string]int
	countersMu sync.Mutex
}

// NewLocalStore creates an empty in-memory Store.
func NewLocalStore() Store {
	return &localStore{
		namespaces: make(map[nsKey]map[string][]byte),
		order:      make(map[nsKey][]string),
		counters:   make(map[string]int),
	}
}

// DefaultLocalStore is a shared in-memory store instance, analogous to a
// per-process cache. Prefer NewLocalStore for isolated instances.
var DefaultLocalStore = NewLocalStore()

func (s *localStore) GetAll(ctx context.Context, entityType, tenantID string) ([]RawRecord, error) {
	s.incrCounter("GetAll")
	key := nsKey{entityType, tenantID}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.namespaces[key]
	if !ok {
		s.incrCounter("GetAllMiss")
		return []RawRecord{}, nil
	}
	records := make([]RawRecord, 0, len(ns))
	for _, id := range s.order[key] {
		data, ok := ns[id]
		if !ok {
			continue
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		records = append(records, RawRecord{ID: id, Data: cp})
	}
	s.incrCounter("GetAllHit")
	return records, nil
}

func (s *localStore) Put(ctx context.Context, entityType, tenantID string, record RawRecord) error {
	s.incrCounter("Put")
	key := nsKey{entityType, tenantID}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[key]
	if !ok {
		ns = make(map[string][]byte)
		s.namespaces[key] = ns
	}
	if _, exists := ns[record.ID]; !exists {
		s.order[key] = append(s.order[key], record.ID)
	}
	cp := make([]byte, len(record.Data))
	copy(cp, record.Data)
	ns[record.ID] = cp
	return nil
}

func (s *localStore) PutAll(ctx context.Context, entityType, tenantID string, records []RawRecord) error {
	s.incrCounter("PutAll")
	key := nsKey{entityType, tenantID}
	ns := make(map[string][]byte, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if _, exists := ns[r.ID]; !exists {
			ids = append(ids, r.ID)
		}
		cp := make([]byte, len(r.Data))
		copy(cp, r.Data)
		ns[r.ID] = cp
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Full snapshot replace, even when records is empty.
	s.namespaces[key] = ns
	s.order[key] = ids
	return nil
}

func (s *localStore) Delete(ctx context.Context, entityType, tenantID, id string) error {
	s.incrCounter("Delete")
	key := nsKey{entityType, tenantID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.namespaces[key]; ok {
		delete(ns, id)
	}
	return nil
}

func (s *localStore) ClearTenant(ctx context.Context, tenantID string) error {
	s.incrCounter("ClearTenant")
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.namespaces {
		if key.tenantID == tenantID {
			delete(s.namespaces, key)
			delete(s.order, key)
		}
	}
	return nil
}

func (s *localStore) incrCounter(name string) {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	s.counters[name]++
}

func (s *localStore) GetStoreStats(ctx context.Context) StoreStats {
	s.countersMu.Lock()
	defer s.countersMu.Unlock()
	cloned := make(map[string]int, len(s.counters))
	for k, v := range s.counters {
		cloned[k] = v
	}
	return StoreStats{Counters: cloned}
}
