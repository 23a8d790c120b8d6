package bstcore

// Max returns the larger of two heights. Absent children are height 0.
func Max(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// NewHeight computes the repaired height of a node given its children's
// heights.
func NewHeight(heightLeft, heightRight int32) int32 {
	return 1 + Max(heightLeft, heightRight)
}

// BalanceFactor is h(left) - h(right). A strictly balanced AVL node has
// balance in [-1, 1]; the concurrent schemes tolerate transient excursions
// beyond that range and repair them asynchronously (relaxed balance).
func BalanceFactor(heightLeft, heightRight int32) int32 {
	return heightLeft - heightRight
}

// RotationKind names which of the four rotation templates applies.
type RotationKind int

const (
	NoRotation RotationKind = iota
	SingleLeft
	SingleRight
	DoubleLeftRight
	DoubleRightLeft
)

// ChooseRotation implements the decision table: given the balance factor at
// the node that violates the AVL invariant and the balance factor of its
// taller child, pick which rotation template restores it. This is the one
// place the rotation decision is made; C4 and C5 both call it instead of
// re-deriving the table, so they cannot silently diverge.
func ChooseRotation(balance, tallerChildBalance int32) RotationKind {
	switch {
	case balance > 1 && tallerChildBalance >= 0:
		return SingleRight
	case balance > 1:
		return DoubleLeftRight
	case balance < -1 && tallerChildBalance <= 0:
		return SingleLeft
	case balance < -1:
		return DoubleRightLeft
	default:
		return NoRotation
	}
}
