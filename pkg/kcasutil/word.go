// Package kcasutil implements a multi-word compare-and-swap (KCAS)
// primitive built on RDCSS (restricted double-compare single-swap), the
// scheme pkg/lockfree uses to apply several pointer/value updates as one
// atomic step. It is grounded on kcasfull.h and
// kcas_reuse_htm_impl.cpp in the reference sources: the casword<T> tagged
// word, the two-phase RDCSS-then-KCAS descriptor protocol, and the
// HTM-attempt-before-descriptor-path structure, translated from the
// original's slab-allocated, sequence-number-protected descriptors into
// plain heap-allocated Go descriptors (see the doc comment on
// rdcssDescriptor in rdcss.go for why that simplification is safe here).
package kcasutil

import (
	"unsafe"
)

// Word is a KCAS-managed memory location. Every Word reserves its bottom
// two bits to tag the location as owned by an in-flight RDCSS or KCAS
// descriptor; the payload — a pointer or a 32-bit value — occupies the
// remaining bits, exactly as kcasfull.h's casword<T> does (pointers are
// stored unshifted, relying on natural alignment to keep the low bits
// free; non-pointer values are shifted left by two to make room for the
// tag).
type Word uint64

const (
	tagNone  uint64 = 0x0
	tagRDCSS uint64 = 0x1
	tagKCAS  uint64 = 0x2
	tagMask  uint64 = 0x3

	valueShift = 2
)

func isRDCSS(w uint64) bool { return w&tagMask == tagRDCSS }
func isKCAS(w uint64) bool  { return w&tagMask == tagKCAS }

func addrOf(w *Word) *uint64 { return (*uint64)(unsafe.Pointer(w)) }

func packPtr(p unsafe.Pointer) uint64 { return uint64(uintptr(p)) }
func unpackPtr(w uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(w &^ tagMask))
}

func packVal(v int32) uint64 { return uint64(uint32(v)) << valueShift }
func unpackVal(w uint64) int32 {
	return int32(uint32(w >> valueShift))
}

// InitPtr sets w's initial value outside of any transaction. Callers must
// only use this before w is published to another goroutine.
func InitPtr(w *Word, p unsafe.Pointer) {
	*addrOf(w) = packPtr(p)
}

// InitVal sets w's initial value outside of any transaction.
func InitVal(w *Word, v int32) {
	*addrOf(w) = packVal(v)
}

// LoadPtr reads w, helping along any in-flight RDCSS/KCAS transaction
// that currently owns it.
func (w *Word) LoadPtr() unsafe.Pointer {
	return unpackPtr(readWord(addrOf(w)))
}

// LoadVal reads w, helping along any in-flight transaction.
func (w *Word) LoadVal() int32 {
	return unpackVal(readWord(addrOf(w)))
}

// readWord is kcas::readPtr from the reference source: read the raw
// word, and if it is tagged as owned by a KCAS descriptor, help that
// descriptor to completion before retrying the read. A word tagged RDCSS
// is helped one level down, inside rdcssRead.
func readWord(addr *uint64) uint64 {
	for {
		r := rdcssRead(addr)
		if isKCAS(r) {
			helpOther(r)
			continue
		}
		return r
	}
}
