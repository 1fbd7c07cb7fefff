package store

// DataStore is the write interface for catalog rows. Both Store (direct
// SQLite) and BatchedStore (in-memory buffering for parallel assembly)
// implement it.
type DataStore interface {
	InsertFile(f *File) error
	InsertEntity(e *Entity) error
	InsertBundle(b *Bundle) error
	InsertBundleRef(r *BundleRef) error
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
