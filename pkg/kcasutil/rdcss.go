package kcasutil

import (
	"sync/atomic"
	"unsafe"
)

// rdcssDescriptor is a restricted double-compare single-swap: it installs
// new2 at addr2 only if addr2 still holds old2 AND the owning KCAS
// descriptor is still undecided. This is what lets phase 1 of a KCAS
// "lock" several unrelated words for one transaction without blocking.
//
// The reference source's RDCSS descriptors live in a fixed slab and carry
// a sequence number so a helper can tell a reused slot from the
// descriptor it originally helped; this package heap-allocates a fresh
// rdcssDescriptor per entry instead; since it is never reused, there is no
// slot to misidentify, and the owning Commit call keeps it reachable for
// as long as any tagged word could still point to it.
type rdcssDescriptor struct {
	owner  *Descriptor
	addr   *uint64
	oldVal uint64
	newVal uint64
}

func rdcssTag(d *rdcssDescriptor) uint64 {
	return uint64(uintptr(unsafe.Pointer(d))) | tagRDCSS
}

func rdcssPtr(tagged uint64) *rdcssDescriptor {
	return (*rdcssDescriptor)(unsafe.Pointer(uintptr(tagged &^ tagMask)))
}

// rdcssHelp finishes an in-flight RDCSS by deciding, from the owning
// KCAS descriptor's state, whether to advance addr to the KCAS tag (the
// word is now considered locked for phase 2) or revert it to oldVal.
func rdcssHelp(d *rdcssDescriptor) {
	tagged := rdcssTag(d)
	if atomic.LoadInt32(&d.owner.state) == stateUndecided {
		atomic.CompareAndSwapUint64(d.addr, tagged, d.newVal)
	} else {
		atomic.CompareAndSwapUint64(d.addr, tagged, d.oldVal)
	}
}

func rdcssHelpOther(tagged uint64) {
	rdcssHelp(rdcssPtr(tagged))
}

// rdcss attempts to install d.newVal (a KCAS tag) at d.addr, and returns
// the value that was at d.addr just before the attempt. Any RDCSS it
// finds in the way belongs to some other transaction and is helped to
// completion first.
func rdcss(d *rdcssDescriptor) uint64 {
	tagged := rdcssTag(d)
	for {
		cur := atomic.LoadUint64(d.addr)
		if isRDCSS(cur) {
			rdcssHelpOther(cur)
			continue
		}
		if cur != d.oldVal {
			return cur
		}
		if atomic.CompareAndSwapUint64(d.addr, cur, tagged) {
			rdcssHelp(d)
			return cur
		}
	}
}

// rdcssRead reads addr, helping along any RDCSS it finds there before
// returning. A KCAS tag is returned as-is: helping a KCAS descriptor is
// the caller's responsibility (readWord in word.go does that).
func rdcssRead(addr *uint64) uint64 {
	for {
		r := atomic.LoadUint64(addr)
		if isRDCSS(r) {
			rdcssHelpOther(r)
			continue
		}
		return r
	}
}
