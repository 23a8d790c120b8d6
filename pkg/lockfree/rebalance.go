package lockfree

import (
	"avlset/internal/bstcore"
	"avlset/pkg/kcasutil"
)

// rebalance walks from n up toward the root, repairing height and AVL
// balance one node at a time until it reaches the sentinel super-root
// (maxRoot, recognizable as the node with no parent). Grounded on
// rebalance/fixHeight in the reference source, with two deliberate
// changes: the loop's termination condition there is "until n reaches
// minRoot". minRoot is the permanent leftmost node but not always a
// leaf: once it has a right subtree, a walk up from that subtree passes
// through minRoot, and stopping there would leave the ancestors above it
// unrepaired. This walks until n.getParent() == nil instead, i.e. up to
// the super-root. It also skips the reference's
// extra recursive rebalance calls on the rotated subtree's children
// after each rotation; those are a belt-and-suspenders eager recheck,
// and re-examining the new subtree top on the next loop iteration
// before climbing further gets the same end state, since every
// insert/delete already calls rebalance from the bottom on every
// mutation.
func (t *Tree) rebalance(n *node) {
	for n != nil && n.getParent() != nil {
		nVer := n.getVersion()
		if isMarked(nVer) {
			n = n.getParent()
			continue
		}
		p := n.getParent()
		pVer := p.getVersion()
		if isMarked(pVer) {
			continue
		}

		l := n.child(bstcore.Left)
		r := n.child(bstcore.Right)
		bal := bstcore.BalanceFactor(nodeHeight(l), nodeHeight(r))

		if bal > 1 || bal < -1 {
			var rotated bool
			var newTop *node
			if bal > 1 {
				lVer := l.getVersion()
				if isMarked(lVer) {
					continue
				}
				childBal := bstcore.BalanceFactor(nodeHeight(l.child(bstcore.Left)), nodeHeight(l.child(bstcore.Right)))
				if bstcore.ChooseRotation(bal, childBal) == bstcore.SingleRight {
					rotated, newTop = t.rotateRight(p, pVer, n, nVer, l, lVer)
				} else {
					rotated, newTop = t.rotateLeftRight(p, pVer, n, nVer, l, lVer)
				}
			} else {
				rVer := r.getVersion()
				if isMarked(rVer) {
					continue
				}
				childBal := bstcore.BalanceFactor(nodeHeight(r.child(bstcore.Left)), nodeHeight(r.child(bstcore.Right)))
				if bstcore.ChooseRotation(bal, childBal) == bstcore.SingleLeft {
					rotated, newTop = t.rotateLeft(p, pVer, n, nVer, r, rVer)
				} else {
					rotated, newTop = t.rotateRightLeft(p, pVer, n, nVer, r, rVer)
				}
			}
			if !rotated {
				continue
			}
			n = newTop
			continue
		}

		if !t.fixHeight(n, nVer) {
			continue
		}
		n = p
	}
}

func (t *Tree) fixHeight(n *node, nVer int32) bool {
	newH := bstcore.NewHeight(nodeHeight(n.child(bstcore.Left)), nodeHeight(n.child(bstcore.Right)))
	oldH := n.getHeight()
	if newH == oldH {
		return true
	}
	d := kcasutil.Start()
	d.AddVal(&n.height, oldH, newH)
	d.AddVal(&n.ver, nVer, nVer+2)
	return d.Commit(t.htm)
}

func parentChildWord(p, n *node) *kcasutil.Word {
	dir, _ := bstcore.DirOf(n.getKey(), p.getKey())
	if dir == bstcore.Right {
		return &p.right
	}
	return &p.left
}

// rotateRight performs a single right rotation at n, promoting n's left
// child l. Returns the new subtree top on success.
func (t *Tree) rotateRight(p *node, pVer int32, n *node, nVer int32, l *node, lVer int32) (bool, *node) {
	lr := l.child(bstcore.Right)

	d := kcasutil.Start()
	d.AddPtr(parentChildWord(p, n), asPtr(n), asPtr(l))
	d.AddVal(&p.ver, pVer, pVer+2)

	d.AddPtr(&l.right, asPtr(lr), asPtr(n))
	d.AddPtr(&l.parent, asPtr(n), asPtr(p))

	d.AddPtr(&n.left, asPtr(l), asPtr(lr))
	d.AddPtr(&n.parent, asPtr(p), asPtr(l))

	if lr != nil {
		lrVer := lr.getVersion()
		d.AddVal(&lr.ver, lrVer, lrVer+2)
		d.AddPtr(&lr.parent, asPtr(l), asPtr(n))
	}

	nNewHeight := bstcore.NewHeight(nodeHeight(lr), nodeHeight(n.child(bstcore.Right)))
	lNewHeight := bstcore.NewHeight(nodeHeight(l.child(bstcore.Left)), nNewHeight)
	d.AddVal(&n.height, n.getHeight(), nNewHeight)
	d.AddVal(&l.height, l.getHeight(), lNewHeight)

	d.AddVal(&n.ver, nVer, nVer+2)
	d.AddVal(&l.ver, lVer, lVer+2)

	if !d.Commit(t.htm) {
		return false, nil
	}
	return true, l
}

// rotateLeft performs a single left rotation at n, promoting n's right
// child r. Returns the new subtree top on success.
func (t *Tree) rotateLeft(p *node, pVer int32, n *node, nVer int32, r *node, rVer int32) (bool, *node) {
	rl := r.child(bstcore.Left)

	d := kcasutil.Start()
	d.AddPtr(parentChildWord(p, n), asPtr(n), asPtr(r))
	d.AddVal(&p.ver, pVer, pVer+2)

	d.AddPtr(&r.left, asPtr(rl), asPtr(n))
	d.AddPtr(&r.parent, asPtr(n), asPtr(p))

	d.AddPtr(&n.right, asPtr(r), asPtr(rl))
	d.AddPtr(&n.parent, asPtr(p), asPtr(r))

	if rl != nil {
		rlVer := rl.getVersion()
		d.AddVal(&rl.ver, rlVer, rlVer+2)
		d.AddPtr(&rl.parent, asPtr(r), asPtr(n))
	}

	nNewHeight := bstcore.NewHeight(nodeHeight(n.child(bstcore.Left)), nodeHeight(rl))
	rNewHeight := bstcore.NewHeight(nNewHeight, nodeHeight(r.child(bstcore.Right)))
	d.AddVal(&n.height, n.getHeight(), nNewHeight)
	d.AddVal(&r.height, r.getHeight(), rNewHeight)

	d.AddVal(&n.ver, nVer, nVer+2)
	d.AddVal(&r.ver, rVer, rVer+2)

	if !d.Commit(t.htm) {
		return false, nil
	}
	return true, r
}

// rotateLeftRight performs the double rotation for the case where n is
// left-heavy but l is right-heavy: l's right child lr becomes the new
// subtree top.
func (t *Tree) rotateLeftRight(p *node, pVer int32, n *node, nVer int32, l *node, lVer int32) (bool, *node) {
	lr := l.child(bstcore.Right)
	if lr == nil {
		return false, nil
	}
	lrVer := lr.getVersion()
	if isMarked(lrVer) {
		return false, nil
	}
	lrl := lr.child(bstcore.Left)
	lrr := lr.child(bstcore.Right)

	d := kcasutil.Start()
	d.AddPtr(parentChildWord(p, n), asPtr(n), asPtr(lr))
	d.AddVal(&p.ver, pVer, pVer+2)

	d.AddPtr(&lr.left, asPtr(lrl), asPtr(l))
	d.AddPtr(&lr.right, asPtr(lrr), asPtr(n))
	d.AddPtr(&lr.parent, asPtr(l), asPtr(p))

	d.AddPtr(&l.right, asPtr(lr), asPtr(lrl))
	d.AddPtr(&l.parent, asPtr(n), asPtr(lr))

	d.AddPtr(&n.left, asPtr(l), asPtr(lrr))
	d.AddPtr(&n.parent, asPtr(p), asPtr(lr))

	if lrl != nil {
		lrlVer := lrl.getVersion()
		d.AddVal(&lrl.ver, lrlVer, lrlVer+2)
		d.AddPtr(&lrl.parent, asPtr(lr), asPtr(l))
	}
	if lrr != nil {
		lrrVer := lrr.getVersion()
		d.AddVal(&lrr.ver, lrrVer, lrrVer+2)
		d.AddPtr(&lrr.parent, asPtr(lr), asPtr(n))
	}

	lNewHeight := bstcore.NewHeight(nodeHeight(l.child(bstcore.Left)), nodeHeight(lrl))
	nNewHeight := bstcore.NewHeight(nodeHeight(lrr), nodeHeight(n.child(bstcore.Right)))
	lrNewHeight := bstcore.NewHeight(lNewHeight, nNewHeight)

	d.AddVal(&l.height, l.getHeight(), lNewHeight)
	d.AddVal(&n.height, n.getHeight(), nNewHeight)
	d.AddVal(&lr.height, lr.getHeight(), lrNewHeight)

	d.AddVal(&l.ver, lVer, lVer+2)
	d.AddVal(&n.ver, nVer, nVer+2)
	d.AddVal(&lr.ver, lrVer, lrVer+2)

	if !d.Commit(t.htm) {
		return false, nil
	}
	return true, lr
}

// rotateRightLeft performs the double rotation for the case where n is
// right-heavy but r is left-heavy: r's left child rl becomes the new
// subtree top.
func (t *Tree) rotateRightLeft(p *node, pVer int32, n *node, nVer int32, r *node, rVer int32) (bool, *node) {
	rl := r.child(bstcore.Left)
	if rl == nil {
		return false, nil
	}
	rlVer := rl.getVersion()
	if isMarked(rlVer) {
		return false, nil
	}
	rll := rl.child(bstcore.Left)
	rlr := rl.child(bstcore.Right)

	d := kcasutil.Start()
	d.AddPtr(parentChildWord(p, n), asPtr(n), asPtr(rl))
	d.AddVal(&p.ver, pVer, pVer+2)

	d.AddPtr(&rl.left, asPtr(rll), asPtr(n))
	d.AddPtr(&rl.right, asPtr(rlr), asPtr(r))
	d.AddPtr(&rl.parent, asPtr(r), asPtr(p))

	d.AddPtr(&r.left, asPtr(rl), asPtr(rlr))
	d.AddPtr(&r.parent, asPtr(n), asPtr(rl))

	d.AddPtr(&n.right, asPtr(r), asPtr(rll))
	d.AddPtr(&n.parent, asPtr(p), asPtr(rl))

	if rll != nil {
		rllVer := rll.getVersion()
		d.AddVal(&rll.ver, rllVer, rllVer+2)
		d.AddPtr(&rll.parent, asPtr(rl), asPtr(n))
	}
	if rlr != nil {
		rlrVer := rlr.getVersion()
		d.AddVal(&rlr.ver, rlrVer, rlrVer+2)
		d.AddPtr(&rlr.parent, asPtr(rl), asPtr(r))
	}

	nNewHeight := bstcore.NewHeight(nodeHeight(n.child(bstcore.Left)), nodeHeight(rll))
	rNewHeight := bstcore.NewHeight(nodeHeight(rlr), nodeHeight(r.child(bstcore.Right)))
	rlNewHeight := bstcore.NewHeight(nNewHeight, rNewHeight)

	d.AddVal(&n.height, n.getHeight(), nNewHeight)
	d.AddVal(&r.height, r.getHeight(), rNewHeight)
	d.AddVal(&rl.height, rl.getHeight(), rlNewHeight)

	d.AddVal(&n.ver, nVer, nVer+2)
	d.AddVal(&r.ver, rVer, rVer+2)
	d.AddVal(&rl.ver, rlVer, rlVer+2)

	if !d.Commit(t.htm) {
		return false, nil
	}
	return true, rl
}
