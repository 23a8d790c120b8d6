// Package setapi defines the public contract shared by every concurrency
// variant of the ordered int-set (coarse-grained, optimistic per-node, and
// KCAS-based). Each variant package registers a constructor here at init()
// time so callers can pick a synchronization scheme once, at construction,
// without a class hierarchy — see pkg/tree/interface.go in the teacher
// repository for the pattern this mirrors.
package setapi

// Set is the contract every scheme implements. It holds int32 keys only:
// no mapped values, no iterator beyond the single-threaded Preorder used by
// tests.
type Set interface {
	// Insert adds k. Returns true iff k was not already present.
	Insert(k int32) bool

	// Remove deletes k. Returns true iff k was present.
	Remove(k int32) bool

	// Contains reports whether k is currently in the set.
	Contains(k int32) bool

	// Preorder returns a preorder snapshot of the tree. Single-threaded
	// only: callers must ensure quiescence (no concurrent mutation) before
	// calling it.
	Preorder() []int32
}

// StatsProvider is implemented by variants that track operation counters
// for tests and benchmarks. It is not part of the sequential-set contract.
type StatsProvider interface {
	Stats() OperationStats
}

// OperationStats is a point-in-time snapshot of counters a scheme may keep.
// Fields a given scheme does not track are left zero.
type OperationStats struct {
	Inserts   int64
	Removes   int64
	Contains  int64
	Retries   int64
	Rotations int64
}
