package kcasutil

import (
	"sort"
	"sync/atomic"
	"unsafe"
)

const (
	stateUndecided int32 = iota
	stateSucceeded
	stateFailed
)

type entry struct {
	addr   *uint64
	oldVal uint64
	newVal uint64
}

// Entry is a read-only view of one transaction entry, exposed so an
// Attempter can drive its own fast path over the same set of words.
type Entry struct {
	Addr   *uint64
	OldVal uint64
	NewVal uint64
}

// Descriptor is one KCAS transaction: a set of (address, old, new)
// triples that all commit or all fail together. Build one with Start,
// add entries with AddPtr/AddVal, then call Commit.
type Descriptor struct {
	entries []entry
	state   int32 // atomic: stateUndecided/stateSucceeded/stateFailed
}

// Start begins a new KCAS transaction.
func Start() *Descriptor {
	return &Descriptor{}
}

// AddPtr adds an entry expecting w to currently hold oldPtr, to be
// replaced with newPtr on commit.
func (d *Descriptor) AddPtr(w *Word, oldPtr, newPtr unsafe.Pointer) {
	d.entries = append(d.entries, entry{addr: addrOf(w), oldVal: packPtr(oldPtr), newVal: packPtr(newPtr)})
}

// AddVal adds an entry expecting w to currently hold oldVal, to be
// replaced with newVal on commit.
func (d *Descriptor) AddVal(w *Word, oldVal, newVal int32) {
	d.entries = append(d.entries, entry{addr: addrOf(w), oldVal: packVal(oldVal), newVal: packVal(newVal)})
}

// Len reports how many entries are in the transaction so far.
func (d *Descriptor) Len() int { return len(d.entries) }

func kcasTag(d *Descriptor) uint64 {
	return uint64(uintptr(unsafe.Pointer(d))) | tagKCAS
}

func kcasPtr(tagged uint64) *Descriptor {
	return (*Descriptor)(unsafe.Pointer(uintptr(tagged &^ tagMask)))
}

// Commit attempts to install every entry atomically, trying htm first if
// it attempts the transaction at all, and otherwise falling back to the
// RDCSS-based descriptor protocol. It returns whether every entry's old
// value still matched at commit time.
func (d *Descriptor) Commit(htm Attempter) bool {
	sort.Slice(d.entries, func(i, j int) bool {
		return uintptr(unsafe.Pointer(d.entries[i].addr)) < uintptr(unsafe.Pointer(d.entries[j].addr))
	})

	if htm != nil {
		view := make([]Entry, len(d.entries))
		for i, e := range d.entries {
			view[i] = Entry{Addr: e.addr, OldVal: e.oldVal, NewVal: e.newVal}
		}
		if succeeded, attempted := htm.TryCommit(view); attempted {
			return succeeded
		}
	}

	tagged := kcasTag(d)
	return help(tagged, d)
}

// help runs the two-phase KCAS protocol, whether called by the owner of
// d or by another goroutine that found d's tag while reading one of its
// words. Phase 1 "locks" every entry's address via RDCSS; phase 2 writes
// the decided value to each. An entry whose address already carries this
// same tag (because a helper got there first) is treated as already
// locked and skipped over without being redone.
func help(tagged uint64, d *Descriptor) bool {
	if atomic.LoadInt32(&d.state) == stateUndecided {
		newState := int32(stateSucceeded)
	entryLoop:
		for i := 0; i < len(d.entries); i++ {
			e := d.entries[i]
			r := &rdcssDescriptor{owner: d, addr: e.addr, oldVal: e.oldVal, newVal: tagged}
			val := rdcss(r)

			switch {
			case isKCAS(val):
				if val != tagged {
					helpOther(val)
					i--
					continue entryLoop
				}
			case val != e.oldVal:
				newState = stateFailed
				break entryLoop
			}
		}
		atomic.CompareAndSwapInt32(&d.state, stateUndecided, newState)
	}

	succeeded := atomic.LoadInt32(&d.state) == stateSucceeded
	for _, e := range d.entries {
		final := e.oldVal
		if succeeded {
			final = e.newVal
		}
		atomic.CompareAndSwapUint64(e.addr, tagged, final)
	}
	return succeeded
}

func helpOther(tagged uint64) bool {
	return help(tagged, kcasPtr(tagged))
}
