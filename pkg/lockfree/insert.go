package lockfree

import (
	"avlset/internal/bstcore"
	"avlset/pkg/kcasutil"
)

// Insert adds k, returning true iff it was not already present.
func (t *Tree) Insert(k int32) bool {
	guard := t.epoch.Enter()
	defer guard.Leave()

	for {
		ancestor, ancestorVer, parent, parentVer, found := t.searchHelper(k)
		if found {
			return false
		}

		dir, equal := bstcore.DirOf(k, parent.getKey())
		if equal {
			continue
		}

		n := newNode(k)
		kcasutil.InitPtr(&n.parent, asPtr(parent))
		d := kcasutil.Start()
		var childWord *kcasutil.Word
		if dir == bstcore.Right {
			childWord = &parent.right
		} else {
			childWord = &parent.left
		}
		d.AddPtr(childWord, nil, asPtr(n))
		d.AddVal(&ancestor.ver, ancestorVer, ancestorVer)
		d.AddVal(&parent.ver, parentVer, parentVer+2)

		if d.Commit(t.htm) {
			t.rebalance(parent)
			return true
		}
	}
}
