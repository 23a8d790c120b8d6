// Package reclaim provides epoch-based safe memory reclamation for
// lock-free data structures that physically unlink nodes. It is a
// generic adaptation of pkg/cowbtree's EpochManager in the teacher
// repository: readers "enter" an epoch before touching shared state and
// "leave" when done; a retired node is only handed back to the Go
// garbage collector once no reader could still be validating against
// it. pkg/lockfree is the only consumer — pkg/optimistic needs no such
// scheme, since its version-bump-on-change protocol already makes a
// losing reader retry instead of dereferencing freed state.
package reclaim

import (
	"sync"
	"sync/atomic"
)

// Manager tracks reader epochs for values of type T (in practice, a
// lock-free tree's node pointer type) so retired values are not reused
// or garbage-collected while a concurrent reader might still be
// validating against them.
type Manager[T any] struct {
	globalEpoch uint64

	readers sync.Map // readerID -> *readerState

	retiredMu sync.Mutex
	retired   map[uint64][]T

	nextReaderID uint64
}

type readerState struct {
	epoch  uint64
	active int32
}

// New returns a Manager with its epoch counter starting at 1 (0 is
// reserved to mean "no epoch recorded").
func New[T any]() *Manager[T] {
	return &Manager[T]{
		globalEpoch: 1,
		retired:     make(map[uint64][]T),
	}
}

// Guard represents an active reader session.
type Guard struct {
	leave func()
}

// Enter begins a read, recording the current epoch. The returned Guard
// must be released with Leave once the read completes.
func (m *Manager[T]) Enter() *Guard {
	readerID := atomic.AddUint64(&m.nextReaderID, 1)
	state := &readerState{epoch: atomic.LoadUint64(&m.globalEpoch)}
	atomic.StoreInt32(&state.active, 1)
	m.readers.Store(readerID, state)

	return &Guard{leave: func() {
		atomic.StoreInt32(&state.active, 0)
		m.readers.Delete(readerID)
	}}
}

// Leave ends the read this guard was protecting.
func (g *Guard) Leave() {
	if g == nil || g.leave == nil {
		return
	}
	g.leave()
}

// Advance increments the global epoch and returns the new value.
func (m *Manager[T]) Advance() uint64 {
	return atomic.AddUint64(&m.globalEpoch, 1)
}

// CurrentEpoch returns the current global epoch.
func (m *Manager[T]) CurrentEpoch() uint64 {
	return atomic.LoadUint64(&m.globalEpoch)
}

// Retire marks a value as unreachable from the live structure but not
// yet safe to drop every reference to.
func (m *Manager[T]) Retire(v T) {
	epoch := atomic.LoadUint64(&m.globalEpoch)
	m.retiredMu.Lock()
	m.retired[epoch] = append(m.retired[epoch], v)
	m.retiredMu.Unlock()
}

// RetireAll retires a batch of values retired together (e.g. every node
// a single rotation detached).
func (m *Manager[T]) RetireAll(vs []T) {
	if len(vs) == 0 {
		return
	}
	epoch := atomic.LoadUint64(&m.globalEpoch)
	m.retiredMu.Lock()
	m.retired[epoch] = append(m.retired[epoch], vs...)
	m.retiredMu.Unlock()
}

// TryReclaim drops the last reference this manager holds to every
// retired value whose epoch predates every currently active reader,
// letting the Go garbage collector reclaim them. Returns how many
// values were dropped.
func (m *Manager[T]) TryReclaim() int {
	minEpoch := m.findMinActiveEpoch()

	m.retiredMu.Lock()
	defer m.retiredMu.Unlock()

	reclaimed := 0
	for epoch, vs := range m.retired {
		if epoch < minEpoch {
			reclaimed += len(vs)
			delete(m.retired, epoch)
		}
	}
	return reclaimed
}

func (m *Manager[T]) findMinActiveEpoch() uint64 {
	minEpoch := atomic.LoadUint64(&m.globalEpoch)
	m.readers.Range(func(_, value any) bool {
		state := value.(*readerState)
		if atomic.LoadInt32(&state.active) == 1 && state.epoch < minEpoch {
			minEpoch = state.epoch
		}
		return true
	})
	return minEpoch
}

// PendingCount returns the number of retired values not yet reclaimed.
func (m *Manager[T]) PendingCount() int {
	m.retiredMu.Lock()
	defer m.retiredMu.Unlock()
	count := 0
	for _, vs := range m.retired {
		count += len(vs)
	}
	return count
}

// ActiveReaderCount returns the number of readers currently inside a
// guarded section.
func (m *Manager[T]) ActiveReaderCount() int {
	count := 0
	m.readers.Range(func(_, value any) bool {
		if atomic.LoadInt32(&value.(*readerState).active) == 1 {
			count++
		}
		return true
	})
	return count
}
