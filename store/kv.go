// Package store persists the skill tree. The layout mirrors the browser
// local storage shape the format comes from: one key listing node ids, one
// key holding the edge list, and one key per node record, each holding
// versionless serialized JSON. There is no migration story; records that
// fail to parse are skipped.
package store

// KV is the minimal key/value surface the tree store needs. Implementations
// are synchronous; there is no batching or transaction surface because
// writes happen at interaction commit points, one record at a time.
type KV interface {
	// Get returns the stored value. ok is false when the key is absent.
	Get(key string) (val []byte, ok bool, err error)
	Set(key string, val []byte) error
	Delete(key string) error
	Close() error
}

// MemKV is a map-backed KV for tests and ephemeral runs.
type MemKV struct {
	m map[string][]byte
}

// NewMemKV returns an empty in-memory store.
func NewMemKV() *MemKV {
	return &MemKV{m: make(map[string][]byte)}
}

func (s *MemKV) Get(key string) ([]byte, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemKV) Set(key string, val []byte) error {
	cp := make([]byte, len(val))
	copy(cp, val)
	s.m[key] = cp
	return nil
}

func (s *MemKV) Delete(key string) error {
	delete(s.m, key)
	return nil
}

func (s *MemKV) Close() error {
	return nil
}

// Len reports the number of stored keys.
func (s *MemKV) Len() int {
	return len(s.m)
}
