package lockfree

import (
	"avlset/internal/bstcore"
	"avlset/pkg/kcasutil"
)

// Remove deletes k, returning true iff it was present.
func (t *Tree) Remove(k int32) bool {
	guard := t.epoch.Enter()
	defer guard.Leave()

	for {
		n, nVer, p, pVer, found := t.searchHelper(k)
		if !found {
			return false
		}
		if isMarked(nVer) {
			continue
		}

		left, right := n.child(bstcore.Left), n.child(bstcore.Right)
		var ok bool
		if left == nil || right == nil {
			ok = t.eraseSimple(n, nVer, p, pVer, left, right)
		} else {
			ok = t.eraseTwoChild(n, nVer)
		}
		if ok {
			return true
		}
	}
}

// eraseSimple retires n, which has at most one child, splicing that
// child (if any) directly into n's place under p.
func (t *Tree) eraseSimple(n *node, nVer int32, p *node, pVer int32, left, right *node) bool {
	r := left
	if r == nil {
		r = right
	}

	d := kcasutil.Start()
	if r != nil {
		rVer := r.getVersion()
		if isMarked(rVer) {
			return false
		}
		d.AddVal(&r.ver, rVer, rVer+2)
		d.AddPtr(&r.parent, asPtr(n), asPtr(p))
	}

	d.AddPtr(parentChildWord(p, n), asPtr(n), asPtr(r))
	d.AddVal(&p.ver, pVer, pVer+2)
	d.AddVal(&n.ver, nVer, nVer+1) // odd: tombstoned

	if !d.Commit(t.htm) {
		return false
	}
	t.epoch.Retire(n)
	t.epoch.Advance()
	t.epoch.TryReclaim()
	t.rebalance(p)
	return true
}

// eraseTwoChild removes n's key, where n has two children, by splicing
// out its in-order successor s and renaming s's key onto n; n stays in
// the tree and s is the node retired. s is unlinked from its parent sp (s never has a left child, so only its
// right child sr needs relinking).
func (t *Tree) eraseTwoChild(n *node, nVer int32) bool {
	s, sVer, sp, spVer := getSuccessor(n)
	if isMarked(sVer) || isMarked(spVer) {
		return false
	}

	sr := s.child(bstcore.Right)
	d := kcasutil.Start()
	if sr != nil {
		srVer := sr.getVersion()
		d.AddVal(&sr.ver, srVer, srVer+2)
		d.AddPtr(&sr.parent, asPtr(s), asPtr(sp))
	}

	if sp == n {
		// s is n's direct right child: splicing s out of sp's right
		// link and renaming n both touch n.ver, so fold them into a
		// single KCAS entry rather than adding &n.ver twice.
		d.AddPtr(&sp.right, asPtr(s), asPtr(sr))
		d.AddVal(&n.key, n.key.LoadVal(), s.getKey())
		d.AddVal(&n.ver, nVer, nVer+2)
	} else {
		d.AddPtr(&sp.left, asPtr(s), asPtr(sr))
		d.AddVal(&sp.ver, spVer, spVer+2)
		d.AddVal(&n.key, n.key.LoadVal(), s.getKey())
		d.AddVal(&n.ver, nVer, nVer+2)
	}
	d.AddVal(&s.ver, sVer, sVer+1) // odd: tombstoned

	if !d.Commit(t.htm) {
		return false
	}
	t.epoch.Retire(s)
	t.epoch.Advance()
	t.epoch.TryReclaim()
	if sp == n {
		t.rebalance(n)
	} else {
		t.rebalance(sp)
	}
	return true
}

// getSuccessor finds the in-order successor of n (the leftmost node of
// n's right subtree) together with that successor's immediate parent.
// n is assumed to have a right child. This is a pure lock-free read: no
// lock is ever taken, so there is nothing for a stalled reader to leak.
func getSuccessor(n *node) (succ *node, succVer int32, parent *node, parentVer int32) {
	parent = n
	parentVer = n.getVersion()
	succ = n.child(bstcore.Right)
	for {
		l := succ.child(bstcore.Left)
		if l == nil {
			break
		}
		parent = succ
		parentVer = succ.getVersion()
		succ = l
	}
	succVer = succ.getVersion()
	return succ, succVer, parent, parentVer
}
