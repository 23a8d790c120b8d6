// Package lockfree implements the KCAS-based lock-free optimistic AVL
// scheme (C5b): every structural change — a child-pointer swing, a
// height repair, a rotation — commits as one multi-word transaction via
// pkg/kcasutil, so there is no lock a stalled goroutine could hold
// indefinitely. It is grounded on lockfree2.h/.cpp in the reference
// sources.
package lockfree

import (
	"unsafe"

	"avlset/internal/bstcore"
	"avlset/pkg/kcasutil"
)

// node is a tree node. Every field is a kcasutil.Word so it can
// participate in a multi-word transaction. This includes key: the
// reference source mutates a retired node's key field directly and
// unsynchronized during a two-child delete (eraseTwoChild splices the
// in-order successor out and overwrites the victim's key in place),
// which is fine under C++'s looser aliasing but is a plain data race
// under Go's memory model against concurrent searchHelper readers.
// Keeping key itself KCAS-managed lets that rename commit atomically
// with the version bump that invalidates in-flight readers, so nobody
// ever observes a key/version pair that didn't co-occur.
type node struct {
	key    kcasutil.Word // int32
	ver    kcasutil.Word // generation counter; low bit is the delete mark
	height kcasutil.Word
	left   kcasutil.Word // *node
	right  kcasutil.Word // *node
	parent kcasutil.Word // *node
}

func newNode(key int32) *node {
	n := &node{}
	kcasutil.InitVal(&n.key, key)
	kcasutil.InitVal(&n.ver, 0)
	kcasutil.InitVal(&n.height, 1)
	kcasutil.InitPtr(&n.left, nil)
	kcasutil.InitPtr(&n.right, nil)
	kcasutil.InitPtr(&n.parent, nil)
	return n
}

func (n *node) getKey() int32 { return n.key.LoadVal() }

func isMarked(ver int32) bool { return ver&1 == 1 }

func (n *node) child(dir bstcore.Dir) *node {
	var w *kcasutil.Word
	if dir == bstcore.Left {
		w = &n.left
	} else {
		w = &n.right
	}
	return (*node)(w.LoadPtr())
}

func (n *node) getParent() *node { return (*node)(n.parent.LoadPtr()) }
func (n *node) getVersion() int32 { return n.ver.LoadVal() }
func (n *node) getHeight() int32  { return n.height.LoadVal() }

func nodeHeight(n *node) int32 {
	if n == nil {
		return 0
	}
	return n.getHeight()
}

func asPtr(n *node) unsafe.Pointer { return unsafe.Pointer(n) }
