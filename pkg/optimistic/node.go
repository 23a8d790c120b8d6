package optimistic

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"avlset/internal/bstcore"
)

// Version-word bit layout, after Bronson et al.'s optimistic AVL design
// (see finegrainedBronson.h/.cpp in the reference sources this package is
// grounded on). The word packs an unlinked flag, two change bits
// (growing, shrinking), an 8-bit grow count at bits 3-10 and a shrink
// count from bit 11 up into a single uint64 so a reader can take
// one atomic snapshot of "has anything structural happened here" without
// a lock.
const (
	unlinked  uint64 = 0x1
	growing   uint64 = 0x2
	shrinking uint64 = 0x4

	growCountShift   = 3
	shrinkCountShift = 3 + 8

	growCountMask uint64 = 0xff << growCountShift
)

var (
	growCountIncr   = uint64(1) << growCountShift
	shrinkCountIncr = uint64(1) << shrinkCountShift
	// ignoreGrowMask clears the growing bit and the grow-count region: a
	// reader that observed GROWING may re-check once the lock is released
	// and compare against this masked snapshot rather than retrying
	// outright, since a grow that only bumped the grow count never
	// invalidated anything the reader used.
	ignoreGrowMask = ^(growing | growCountMask)
)

func isUnlinked(v uint64) bool  { return v&unlinked != 0 }
func isGrowing(v uint64) bool   { return v&growing != 0 }
func isShrinking(v uint64) bool { return v&shrinking != 0 }
func isChanging(v uint64) bool  { return v&(growing|shrinking) != 0 }

// node is a tree node. key and the tree-shape pointers are read without
// holding mu via the version word protocol. height is also loaded without
// mu in the same speculative way by nodeCondition, so it is stored
// atomically like the other unguarded-read fields; every write to it
// still happens only while mu is held, so the speculative read can never
// observe a torn value, only a possibly-stale one that a later re-check
// under the lock will catch.
type node struct {
	key int32

	// present is 0/1: whether this node currently represents a member of
	// the set. A node with two children whose key has been removed stays
	// present=0 but remains linked as a routing separator until a later
	// operation can physically unlink it (it may never need to, if it
	// keeps acquiring children).
	present int32

	version uint64 // atomic, see bit layout above

	height int32 // atomic; written only while mu is held (see comment above)

	parent unsafe.Pointer // *node, atomic
	left   unsafe.Pointer // *node, atomic
	right  unsafe.Pointer // *node, atomic

	mu sync.Mutex
}

func newNode(key int32, present bool, parent *node) *node {
	p := int32(0)
	if present {
		p = 1
	}
	n := &node{key: key, present: p, height: 1}
	atomic.StorePointer(&n.parent, unsafe.Pointer(parent))
	return n
}

func (n *node) isPresent() bool { return atomic.LoadInt32(&n.present) != 0 }
func (n *node) setPresent(v bool) {
	if v {
		atomic.StoreInt32(&n.present, 1)
	} else {
		atomic.StoreInt32(&n.present, 0)
	}
}

func (n *node) getVersion() uint64    { return atomic.LoadUint64(&n.version) }
func (n *node) setVersion(v uint64)   { atomic.StoreUint64(&n.version, v) }
func (n *node) getParent() *node      { return (*node)(atomic.LoadPointer(&n.parent)) }
func (n *node) setParent(p *node)     { atomic.StorePointer(&n.parent, unsafe.Pointer(p)) }
func (n *node) getHeight() int32      { return atomic.LoadInt32(&n.height) }
func (n *node) setHeight(h int32)     { atomic.StoreInt32(&n.height, h) }

func (n *node) child(dir bstcore.Dir) *node {
	if dir == bstcore.Left {
		return (*node)(atomic.LoadPointer(&n.left))
	}
	return (*node)(atomic.LoadPointer(&n.right))
}

func (n *node) setChild(dir bstcore.Dir, c *node) {
	if dir == bstcore.Left {
		atomic.StorePointer(&n.left, unsafe.Pointer(c))
	} else {
		atomic.StorePointer(&n.right, unsafe.Pointer(c))
	}
}

func childHeight(n *node) int32 {
	if n == nil {
		return 0
	}
	return n.getHeight()
}

// fixHeightLocal recomputes n's height from its current children. Caller
// must hold n.mu.
func fixHeightLocal(n *node) int32 {
	return bstcore.NewHeight(childHeight(n.child(bstcore.Left)), childHeight(n.child(bstcore.Right)))
}
