package bstcore

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func Compare(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// DirOf returns the direction a search for key must descend from a node
// holding nodeKey, along with whether key equals nodeKey.
func DirOf(key, nodeKey int32) (dir Dir, equal bool) {
	switch Compare(key, nodeKey) {
	case 0:
		return Left, true
	case -1:
		return Left, false
	default:
		return Right, false
	}
}
