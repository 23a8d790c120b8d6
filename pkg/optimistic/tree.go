// Package optimistic implements the per-node hand-over-hand optimistic
// concurrency scheme (C4): Bronson et al.'s relaxed-balance AVL tree.
// Readers never take a lock; writers lock a node and its parent (plus,
// transiently, a child and a grandchild of the node while rotating), validating
// against a per-node version word rather than blocking each other out.
package optimistic

import (
	"sync/atomic"

	"avlset/internal/bstcore"
	"avlset/pkg/setapi"
)

const spinCount = 100

// Tree is the optimistic per-node AVL variant. The zero value is not
// usable; construct with New.
type Tree struct {
	rootHolder *node
	stats      setapi.OperationStats
}

// New returns an empty optimistic tree. rootHolder has no key of its own;
// its right child is the real root, which keeps every mutable node's
// parent pointer non-nil.
func New() *Tree {
	holder := newNode(0, false, nil)
	return &Tree{rootHolder: holder}
}

func (t *Tree) root() *node {
	return t.rootHolder.child(bstcore.Right)
}

// waitUntilNotChanging spins briefly and then, if the change is still in
// progress, blocks on the node's own lock — which cannot be held while
// the node is mid-rotation for longer than the mutation itself takes.
func waitUntilNotChanging(n *node) {
	v := n.getVersion()
	if !isChanging(v) {
		return
	}
	for i := 0; i < spinCount; i++ {
		if n.getVersion() != v {
			return
		}
	}
	n.mu.Lock()
	n.mu.Unlock()
}

// Contains reports whether k is currently in the set.
func (t *Tree) Contains(k int32) bool {
	atomic.AddInt64(&t.stats.Contains, 1)
	for {
		result, retry := attemptSearchRoot(t.rootHolder, k)
		if !retry {
			return result
		}
		atomic.AddInt64(&t.stats.Retries, 1)
	}
}

func attemptSearchRoot(holder *node, k int32) (found, retry bool) {
	root := holder.child(bstcore.Right)
	if root == nil {
		return false, false
	}
	dir, equal := bstcore.DirOf(k, root.key)
	if equal {
		return root.isPresent(), false
	}
	v := root.getVersion()
	if isShrinking(v) || v == unlinked {
		waitUntilNotChanging(root)
		return false, true
	}
	if root != holder.child(bstcore.Right) {
		return false, true
	}
	return attemptSearch(root, k, dir, v)
}

// attemptSearch walks from node in direction dir looking for k. nodeV is
// the version of node observed by the caller just before recursing into
// it; a growing-insensitive mismatch means the caller's read of node's
// child set is stale and the whole search must restart from the root.
func attemptSearch(n *node, k int32, dir bstcore.Dir, nodeV uint64) (found, retry bool) {
	for {
		child := n.child(dir)
		if (n.getVersion()^nodeV)&ignoreGrowMask != 0 {
			return false, true
		}
		if child == nil {
			return false, false
		}
		childDir, equal := bstcore.DirOf(k, child.key)
		if equal {
			return child.isPresent(), false
		}
		childV := child.getVersion()
		if isShrinking(childV) {
			waitUntilNotChanging(child)
			continue
		}
		if childV != unlinked && child == n.child(dir) {
			if (n.getVersion()^nodeV)&ignoreGrowMask != 0 {
				return false, true
			}
			found, retry := attemptSearch(child, k, childDir, childV)
			if !retry {
				return found, false
			}
		}
	}
}

// Insert adds k, returning true iff it was not already present.
func (t *Tree) Insert(k int32) bool {
	atomic.AddInt64(&t.stats.Inserts, 1)
	for {
		root := t.rootHolder.child(bstcore.Right)
		if root == nil {
			t.rootHolder.mu.Lock()
			if t.rootHolder.child(bstcore.Right) != nil {
				// Someone else got here first; fall through and retry
				// the general path.
				t.rootHolder.mu.Unlock()
				continue
			}
			t.rootHolder.setChild(bstcore.Right, newNode(k, true, t.rootHolder))
			t.rootHolder.setHeight(2)
			t.rootHolder.mu.Unlock()
			return true
		}

		dir, equal := bstcore.DirOf(k, root.key)
		if equal {
			result, retry := attemptInsert(k, t.rootHolder, bstcore.Right, t.rootHolder.getVersion())
			if !retry {
				return result
			}
			continue
		}
		v := root.getVersion()
		if isShrinking(v) || v == unlinked {
			waitUntilNotChanging(root)
			continue
		}
		if root != t.rootHolder.child(bstcore.Right) {
			continue
		}
		result, retry := attemptInsert(k, root, dir, v)
		if !retry {
			return result
		}
		atomic.AddInt64(&t.stats.Retries, 1)
	}
}

func attemptInsert(k int32, n *node, dir bstcore.Dir, nodeV uint64) (inserted, retry bool) {
	for {
		child := n.child(dir)
		if (n.getVersion()^nodeV)&ignoreGrowMask != 0 {
			return false, true
		}
		if child == nil {
			return attemptInsertLeaf(k, n, dir, nodeV)
		}
		childDir, equal := bstcore.DirOf(k, child.key)
		if equal {
			// A routing node holding k becomes a member again.
			child.mu.Lock()
			gone := child.getVersion() == unlinked
			revived := !gone && !child.isPresent()
			if revived {
				child.setPresent(true)
			}
			child.mu.Unlock()
			return revived, gone
		}
		childV := child.getVersion()
		if isShrinking(childV) {
			waitUntilNotChanging(child)
			continue
		}
		if childV != unlinked && child == n.child(dir) {
			if (n.getVersion()^nodeV)&ignoreGrowMask != 0 {
				return false, true
			}
			return attemptInsert(k, child, childDir, childV)
		}
	}
}

// attemptInsertLeaf locks n (the future parent of the new leaf) and
// publishes the new node, provided nothing has changed since the caller
// last observed n's version and n's child on dir is still empty.
func attemptInsertLeaf(k int32, n *node, dir bstcore.Dir, nodeV uint64) (inserted, retry bool) {
	n.mu.Lock()
	if (n.getVersion()^nodeV)&ignoreGrowMask != 0 || n.child(dir) != nil {
		n.mu.Unlock()
		return false, true
	}
	n.setChild(dir, newNode(k, true, n))
	n.mu.Unlock()

	fixHeightAndRebalance(n)
	return true, false
}

// Remove deletes k, returning true iff it was present.
func (t *Tree) Remove(k int32) bool {
	atomic.AddInt64(&t.stats.Removes, 1)
	for {
		root := t.rootHolder.child(bstcore.Right)
		if root == nil {
			return false
		}
		dir, equal := bstcore.DirOf(k, root.key)
		if equal {
			result, retry := attemptRemoveNode(t.rootHolder, root)
			if !retry {
				return result
			}
			atomic.AddInt64(&t.stats.Retries, 1)
			continue
		}
		v := root.getVersion()
		if isShrinking(v) || v == unlinked {
			waitUntilNotChanging(root)
			continue
		}
		if root != t.rootHolder.child(bstcore.Right) {
			continue
		}
		result, retry := attemptDelete(k, root, dir, v)
		if !retry {
			return result
		}
		atomic.AddInt64(&t.stats.Retries, 1)
	}
}

func attemptDelete(k int32, n *node, dir bstcore.Dir, nodeV uint64) (removed, retry bool) {
	for {
		child := n.child(dir)
		if (n.getVersion()^nodeV)&ignoreGrowMask != 0 {
			return false, true
		}
		if child == nil {
			return false, false
		}
		childDir, equal := bstcore.DirOf(k, child.key)
		if equal {
			return attemptRemoveNode(n, child)
		}
		childV := child.getVersion()
		if isShrinking(childV) {
			waitUntilNotChanging(child)
			continue
		}
		if childV != unlinked && child == n.child(dir) {
			if (n.getVersion()^nodeV)&ignoreGrowMask != 0 {
				return false, true
			}
			return attemptDelete(k, child, childDir, childV)
		}
	}
}

// attemptUnlinkNoLock physically removes node from the tree, replacing it
// at parent with its sole child (if any). parent and node are both
// locked by the caller.
func attemptUnlinkNoLock(parent, node *node) bool {
	if (parent.child(bstcore.Left) != node && parent.child(bstcore.Right) != node) || node.getParent() != parent {
		return false
	}
	child := node.child(bstcore.Left)
	if child == nil {
		child = node.child(bstcore.Right)
	}
	if parent.child(bstcore.Left) == node {
		parent.setChild(bstcore.Left, child)
	} else {
		parent.setChild(bstcore.Right, child)
	}
	if child != nil {
		child.setParent(parent)
	}
	node.setVersion(unlinked)
	node.setPresent(false)
	return true
}

// attemptRemoveNode marks node absent from the set and, if possible,
// unlinks it from the tree immediately; a node with two children stays
// linked as a routing separator until a later operation reduces it to at
// most one child.
func attemptRemoveNode(parent, n *node) (removed, retry bool) {
	if !n.isPresent() {
		return false, false
	}

	if !canUnlink(n) {
		n.mu.Lock()
		if n.getVersion() == unlinked || canUnlink(n) {
			n.mu.Unlock()
			return false, true
		}
		n.setPresent(false)
		n.mu.Unlock()
	} else {
		parent.mu.Lock()
		if parent.getVersion() == unlinked || n.getParent() != parent || n.getVersion() == unlinked {
			parent.mu.Unlock()
			return false, true
		}
		n.mu.Lock()
		n.setPresent(false)
		if canUnlink(n) {
			attemptUnlinkNoLock(parent, n)
		}
		n.mu.Unlock()
		parent.mu.Unlock()
	}
	fixHeightAndRebalance(parent)
	return true, false
}

// Preorder returns a preorder key snapshot of members currently present.
// Single-threaded only: callers must ensure no concurrent mutator is
// running.
func (t *Tree) Preorder() []int32 {
	var out []int32
	var walk func(*node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		if n.isPresent() {
			out = append(out, n.key)
		}
		walk(n.child(bstcore.Left))
		walk(n.child(bstcore.Right))
	}
	walk(t.root())
	return out
}

// Stats returns a snapshot of this tree's operation counters.
func (t *Tree) Stats() setapi.OperationStats {
	return setapi.OperationStats{
		Inserts:  atomic.LoadInt64(&t.stats.Inserts),
		Removes:  atomic.LoadInt64(&t.stats.Removes),
		Contains: atomic.LoadInt64(&t.stats.Contains),
		Retries:  atomic.LoadInt64(&t.stats.Retries),
	}
}
