package store

import (
	"sort"
	"sync"
)

// BatchedStore buffers catalog rows in memory so pipeline workers can record
// results without touching SQLite. CommitBatch writes the whole batch in one
// transaction.
//
// Thread safety: the mutex protects slice appends.
type BatchedStore struct {
	mu sync.Mutex

	Files      []File
	Entities   []Entity
	Bundles    []Bundle
	BundleRefs []BundleRef
	Metadata   map[string]string
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates an empty batch.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{Metadata: make(map[string]string)}
}

func (b *BatchedStore) InsertFile(f *File) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Files = append(b.Files, *f)
	return nil
}

func (b *BatchedStore) InsertEntity(e *Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Entities = append(b.Entities, *e)
	return nil
}

func (b *BatchedStore) InsertBundle(bn *Bundle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Bundles = append(b.Bundles, *bn)
	return nil
}

func (b *BatchedStore) InsertBundleRef(r *BundleRef) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.BundleRefs = append(b.BundleRefs, *r)
	return nil
}

// SetMetadata buffers a metadata pair.
func (b *BatchedStore) SetMetadata(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Metadata[key] = value
}

// order sorts buffered rows so that the committed catalog does not depend on
// worker scheduling.
func (b *BatchedStore) order() {
	b.mu.Lock()
	defer b.mu.Unlock()
	sort.SliceStable(b.Files, func(i, j int) bool { return b.Files[i].Role < b.Files[j].Role })
	sort.SliceStable(b.Entities, func(i, j int) bool {
		if b.Entities[i].FileRole != b.Entities[j].FileRole {
			return b.Entities[i].FileRole < b.Entities[j].FileRole
		}
		return b.Entities[i].StartLine < b.Entities[j].StartLine
	})
	sort.SliceStable(b.Bundles, func(i, j int) bool { return b.Bundles[i].QueryName < b.Bundles[j].QueryName })
	sort.SliceStable(b.BundleRefs, func(i, j int) bool {
		if b.BundleRefs[i].QueryName != b.BundleRefs[j].QueryName {
			return b.BundleRefs[i].QueryName < b.BundleRefs[j].QueryName
		}
		return b.BundleRefs[i].Ordinal < b.BundleRefs[j].Ordinal
	})
}
