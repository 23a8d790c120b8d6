package optimistic

import "avlset/internal/bstcore"

// This file translates the rebalancing half of the Bronson et al.
// optimistic AVL algorithm (finegrainedBronson.cpp in the reference
// sources this package is grounded on): the iterative, non-recursive
// parent walk that repairs height and applies rotations after a
// structural change, without ever blocking a concurrent reader.
//
// The walk locks a node and its parent, plus transiently the node's
// taller child and, while deciding between a single and a double
// rotation, that child's inner child (four locks at most), and every
// lock a helper takes here is released
// by that same helper before it returns — nothing is handed off across a
// return boundary, which is what keeps this version honest about which
// mutex is held at every point.

type conditionKind int

const (
	conditionNothingRequired conditionKind = iota
	conditionUnlinkRequired
	conditionRebalanceRequired
	conditionFixHeight
)

type condition struct {
	kind   conditionKind
	height int32 // valid only when kind == conditionFixHeight
}

func canUnlink(n *node) bool {
	return n.child(bstcore.Left) == nil || n.child(bstcore.Right) == nil
}

// nodeCondition classifies what, if anything, n needs done to it.
func nodeCondition(n *node) condition {
	left := n.child(bstcore.Left)
	right := n.child(bstcore.Right)

	if canUnlink(n) && !n.isPresent() {
		return condition{kind: conditionUnlinkRequired}
	}

	hLeft := childHeight(left)
	hRight := childHeight(right)
	balance := bstcore.BalanceFactor(hLeft, hRight)
	if balance > 1 || balance < -1 {
		return condition{kind: conditionRebalanceRequired}
	}

	repaired := bstcore.NewHeight(hLeft, hRight)
	if n.getHeight() == repaired {
		return condition{kind: conditionNothingRequired}
	}
	return condition{kind: conditionFixHeight, height: repaired}
}

// fixHeightNoLock assumes n.mu is held. It returns the node the walk
// should continue from: nil if nothing changed, n.getParent() after
// repairing n's height, or n itself if n actually needs a rotation or
// unlink (the caller's loop will notice and take the heavier path).
func fixHeightNoLock(n *node) *node {
	cond := nodeCondition(n)
	switch cond.kind {
	case conditionRebalanceRequired, conditionUnlinkRequired:
		return n
	case conditionNothingRequired:
		return nil
	default:
		n.setHeight(cond.height)
		return n.getParent()
	}
}

// rebalanceNoLock assumes parent.mu and node.mu are both held. It returns
// the node the walk should continue from.
func rebalanceNoLock(parent, node *node) *node {
	if canUnlink(node) && !node.isPresent() {
		if attemptUnlinkNoLock(parent, node) {
			return fixHeightNoLock(parent)
		}
		return node
	}

	hLeft := childHeight(node.child(bstcore.Left))
	hRight := childHeight(node.child(bstcore.Right))
	repaired := bstcore.NewHeight(hLeft, hRight)
	balance := bstcore.BalanceFactor(hLeft, hRight)

	switch {
	case balance > 1:
		return rebalanceToRight(parent, node, hRight)
	case balance < -1:
		return rebalanceToLeft(parent, node, hLeft)
	case node.getHeight() != repaired:
		node.setHeight(repaired)
		return fixHeightNoLock(parent)
	default:
		return nil
	}
}

// rebalanceToRight handles a left-heavy node. parent and node are locked
// by the caller.
func rebalanceToRight(parent, node *node, hR0 int32) *node {
	nL := node.child(bstcore.Left)
	nL.mu.Lock()
	hL := nL.getHeight()
	if hL-hR0 <= 1 {
		nL.mu.Unlock()
		return node
	}

	nLR := nL.child(bstcore.Right)
	hLL0 := childHeight(nL.child(bstcore.Left))
	hLR0 := childHeight(nLR)
	if hLL0 >= hLR0 {
		next := rotateRight(parent, node, nL, hR0, hLL0, nLR, hLR0)
		nL.mu.Unlock()
		return next
	}

	nLR.mu.Lock()
	hLR := nLR.getHeight()
	if hLL0 >= hLR {
		next := rotateRight(parent, node, nL, hR0, hLL0, nLR, hLR)
		nLR.mu.Unlock()
		nL.mu.Unlock()
		return next
	}

	hLRL := childHeight(nLR.child(bstcore.Left))
	b := hLL0 - hLRL
	if b >= -1 && b <= 1 && !((hLL0 == 0 || hLRL == 0) && !nL.isPresent()) {
		next := rotateRightOverLeft(parent, node, nL, hR0, hLL0, nLR, hLRL)
		nLR.mu.Unlock()
		nL.mu.Unlock()
		return next
	}
	nLR.mu.Unlock()
	next := rebalanceToLeft(node, nL, hLL0)
	nL.mu.Unlock()
	return next
}

// rebalanceToLeft handles a right-heavy node. parent and node are locked
// by the caller.
func rebalanceToLeft(parent, node *node, hL0 int32) *node {
	nR := node.child(bstcore.Right)
	nR.mu.Lock()
	hR := nR.getHeight()
	if hL0-hR >= -1 {
		nR.mu.Unlock()
		return node
	}

	nRL := nR.child(bstcore.Left)
	hRL0 := childHeight(nRL)
	hRR0 := childHeight(nR.child(bstcore.Right))
	if hRR0 >= hRL0 {
		next := rotateLeft(parent, node, nR, hL0, hRR0, nRL, hRL0)
		nR.mu.Unlock()
		return next
	}

	nRL.mu.Lock()
	hRL := nRL.getHeight()
	if hRR0 >= hRL {
		next := rotateLeft(parent, node, nR, hL0, hRR0, nRL, hRL)
		nRL.mu.Unlock()
		nR.mu.Unlock()
		return next
	}

	hRLR := childHeight(nRL.child(bstcore.Right))
	b := hRR0 - hRLR
	if b >= -1 && b <= 1 && !((hRR0 == 0 || hRLR == 0) && !nR.isPresent()) {
		next := rotateLeftOverRight(parent, node, nR, hL0, hRR0, nRL, hRLR)
		nRL.mu.Unlock()
		nR.mu.Unlock()
		return next
	}
	nRL.mu.Unlock()
	next := rebalanceToRight(node, nR, hRR0)
	nR.mu.Unlock()
	return next
}

// setChildOf swings the link from parent to old over to repl, preserving
// whichever side old was on.
func setChildOf(parent, old, repl *node) {
	if parent.child(bstcore.Left) == old {
		parent.setChild(bstcore.Left, repl)
	} else {
		parent.setChild(bstcore.Right, repl)
	}
}

// rotateRight performs a single right rotation of node, whose left child
// is nL. parent, node, and nL are all locked by the caller.
func rotateRight(parent, node, nL *node, hR, hLL int32, nLR *node, hLRv int32) *node {
	v := node.getVersion()
	node.setVersion(v | shrinking)
	nL.setVersion(nL.getVersion() | growing)

	node.setChild(bstcore.Left, nLR)
	nL.setChild(bstcore.Right, node)
	setChildOf(parent, node, nL)
	nL.setParent(parent)
	node.setParent(nL)
	if nLR != nil {
		nLR.setParent(node)
	}

	repaired := bstcore.Max(hLRv, hR) + 1
	node.setHeight(repaired)
	nL.setHeight(bstcore.Max(hLL, repaired) + 1)

	nL.setVersion((nL.getVersion() &^ growing) + growCountIncr)
	node.setVersion((node.getVersion() &^ shrinking) + shrinkCountIncr)

	if bal := hLRv - hR; bal < -1 || bal > 1 {
		return node
	}
	if bal := hLL - repaired; bal < -1 || bal > 1 {
		return nL
	}
	return fixHeightNoLock(parent)
}

// rotateLeft is the mirror image of rotateRight.
func rotateLeft(parent, node, nR *node, hL, hRR int32, nRL *node, hRLv int32) *node {
	node.setVersion(node.getVersion() | shrinking)
	nR.setVersion(nR.getVersion() | growing)

	node.setChild(bstcore.Right, nRL)
	nR.setChild(bstcore.Left, node)
	setChildOf(parent, node, nR)
	nR.setParent(parent)
	node.setParent(nR)
	if nRL != nil {
		nRL.setParent(node)
	}

	repaired := bstcore.Max(hL, hRLv) + 1
	node.setHeight(repaired)
	nR.setHeight(bstcore.Max(hRR, repaired) + 1)

	nR.setVersion((nR.getVersion() &^ growing) + growCountIncr)
	node.setVersion((node.getVersion() &^ shrinking) + shrinkCountIncr)

	if bal := hRLv - hL; bal < -1 || bal > 1 {
		return node
	}
	if bal := hRR - repaired; bal < -1 || bal > 1 {
		return nR
	}
	return fixHeightNoLock(parent)
}

// rotateRightOverLeft performs a double (left-then-right) rotation when
// node is left-heavy and its left child is itself right-heavy.
func rotateRightOverLeft(parent, node, nL *node, hR, hLL int32, nLR *node, hLRLv int32) *node {
	node.setVersion(node.getVersion() | shrinking)
	nL.setVersion(nL.getVersion() | growing)

	nLRL := nLR.child(bstcore.Left)
	nLRR := nLR.child(bstcore.Right)
	hLRR := childHeight(nLRR)

	node.setChild(bstcore.Left, nLRR)
	if nLRR != nil {
		nLRR.setParent(node)
	}

	nL.setChild(bstcore.Right, nLRL)
	if nLRL != nil {
		nLRL.setParent(nL)
	}

	nLR.setChild(bstcore.Left, nL)
	nL.setParent(nLR)
	nLR.setChild(bstcore.Right, node)
	node.setParent(nLR)

	setChildOf(parent, node, nLR)
	nLR.setParent(parent)

	repaired := bstcore.Max(hLRR, hR) + 1
	node.setHeight(repaired)
	leftRepaired := bstcore.Max(hLL, hLRLv) + 1
	nL.setHeight(leftRepaired)
	nLR.setHeight(1 + bstcore.Max(repaired, leftRepaired))

	nL.setVersion((nL.getVersion() &^ growing) + growCountIncr)
	node.setVersion((node.getVersion() &^ shrinking) + shrinkCountIncr)

	if bal := hLRR - hR; bal < -1 || bal > 1 {
		return node
	}
	if bal := leftRepaired - repaired; bal < -1 || bal > 1 {
		return nLR
	}
	return fixHeightNoLock(parent)
}

// rotateLeftOverRight is the mirror image of rotateRightOverLeft.
func rotateLeftOverRight(parent, node, nR *node, hL, hRR int32, nRL *node, hRLRv int32) *node {
	node.setVersion(node.getVersion() | shrinking)
	nR.setVersion(nR.getVersion() | growing)

	nRLL := nRL.child(bstcore.Left)
	nRLR := nRL.child(bstcore.Right)
	hRLL := childHeight(nRLL)

	node.setChild(bstcore.Right, nRLL)
	if nRLL != nil {
		nRLL.setParent(node)
	}

	nR.setChild(bstcore.Left, nRLR)
	if nRLR != nil {
		nRLR.setParent(nR)
	}

	nRL.setChild(bstcore.Right, nR)
	nR.setParent(nRL)
	nRL.setChild(bstcore.Left, node)
	node.setParent(nRL)

	setChildOf(parent, node, nRL)
	nRL.setParent(parent)

	repaired := bstcore.Max(hL, hRLL) + 1
	node.setHeight(repaired)
	rightRepaired := bstcore.Max(hRLRv, hRR) + 1
	nR.setHeight(rightRepaired)
	nRL.setHeight(bstcore.Max(rightRepaired, repaired) + 1)

	nR.setVersion((nR.getVersion() &^ growing) + growCountIncr)
	node.setVersion((node.getVersion() &^ shrinking) + shrinkCountIncr)

	if bal := hRLL - hL; bal < -1 || bal > 1 {
		return node
	}
	if bal := rightRepaired - repaired; bal < -1 || bal > 1 {
		return nRL
	}
	return fixHeightNoLock(parent)
}

// fixHeightAndRebalance is the iterative parent walk that runs after an
// insert or delete touches node. It stops at the root holder (whose
// parent is nil) or as soon as a node is found to need nothing further.
func fixHeightAndRebalance(n *node) {
	for n != nil && n.getParent() != nil {
		v := n.getVersion()
		if v == unlinked {
			return
		}
		cond := nodeCondition(n)
		if cond.kind == conditionNothingRequired {
			return
		}

		if cond.kind == conditionFixHeight {
			n.mu.Lock()
			next := fixHeightNoLock(n)
			n.mu.Unlock()
			n = next
			continue
		}

		parent := n.getParent()
		parent.mu.Lock()
		if parent.getVersion() == unlinked || n.getParent() != parent {
			parent.mu.Unlock()
			continue
		}
		n.mu.Lock()
		next := rebalanceNoLock(parent, n)
		n.mu.Unlock()
		parent.mu.Unlock()
		n = next
	}
}
