package lockfree

import (
	"math"

	"avlset/internal/bstcore"
	"avlset/internal/reclaim"
	"avlset/pkg/kcasutil"
)

// Tree is the KCAS-based lock-free AVL variant. Two sentinels bound the
// key space (math.MinInt32 and math.MaxInt32) so every real node always
// has a parent and a predecessor/successor path, eliminating root
// special-casing the way pkg/optimistic needs a root holder for.
type Tree struct {
	maxRoot *node
	minRoot *node
	htm     kcasutil.Attempter
	epoch   *reclaim.Manager[*node]
}

// New returns an empty lock-free tree using the default (always-decline)
// HTM attempter.
func New() *Tree {
	return NewWithAttempter(kcasutil.NoHTM)
}

// NewWithAttempter returns an empty lock-free tree that tries htm before
// falling back to the KCAS descriptor path on every commit.
func NewWithAttempter(htm kcasutil.Attempter) *Tree {
	maxNode := newNode(math.MaxInt32)
	minNode := newNode(math.MinInt32)
	kcasutil.InitPtr(&maxNode.left, asPtr(minNode))
	kcasutil.InitPtr(&minNode.parent, asPtr(maxNode))
	return &Tree{maxRoot: maxNode, minRoot: minNode, htm: htm, epoch: reclaim.New[*node]()}
}

type pathEntry struct {
	n   *node
	ver int32
}

// searchHelper walks from maxRoot down to a leaf looking for key,
// recording every node and version it passes through so the whole walk
// can be validated in one pass once it bottoms out. ancestor is the
// shallower of the predecessor/successor of key along the path; it, along
// with its last-observed version, is what insert/delete lock their KCAS
// transaction's "nothing moved above me" witness entry to.
func (t *Tree) searchHelper(key int32) (ancestor *node, ancestorVer int32, parent *node, parentVer int32, found bool) {
	for {
		var path []pathEntry
		path = append(path, pathEntry{t.maxRoot, t.maxRoot.getVersion()})
		n := t.maxRoot.child(bstcore.Left)

		predIx, succIx := -1, 0
		ok := true
		for {
			if n == nil {
				if !t.validatePath(path) {
					ok = false
				}
				break
			}
			path = append(path, pathEntry{n, n.getVersion()})
			currKey := n.getKey()
			idx := len(path) - 1
			switch {
			case key > currKey:
				predIx = idx
				n = n.child(bstcore.Right)
			case key < currKey:
				succIx = idx
				n = n.child(bstcore.Left)
			default:
				return path[idx].n, path[idx].ver, path[idx-1].n, path[idx-1].ver, true
			}
		}
		if !ok {
			continue
		}
		a := predIx
		if succIx < a {
			a = succIx
		}
		last := len(path) - 1
		return path[a].n, path[a].ver, path[last].n, path[last].ver, false
	}
}

func (t *Tree) validatePath(path []pathEntry) bool {
	for _, e := range path {
		if e.n.getVersion() != e.ver || isMarked(e.ver) {
			return false
		}
	}
	return true
}

// Contains reports whether k is currently in the set.
func (t *Tree) Contains(k int32) bool {
	guard := t.epoch.Enter()
	defer guard.Leave()
	_, _, _, _, found := t.searchHelper(k)
	return found
}

// Preorder returns a preorder key snapshot, excluding the min/max
// sentinels' own keys (the keys below them are included). Single-threaded only: callers must ensure no concurrent
// mutator is running.
func (t *Tree) Preorder() []int32 {
	var out []int32
	var walk func(*node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		if n != t.minRoot && n != t.maxRoot {
			out = append(out, n.getKey())
		}
		walk(n.child(bstcore.Left))
		walk(n.child(bstcore.Right))
	}
	walk(t.maxRoot.child(bstcore.Left))
	return out
}
