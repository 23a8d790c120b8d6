package lockfree

import (
	"math/rand"
	"sort"
	"sync"
	"testing"

	"avlset/internal/bstcore"
)

func TestTreeInsertContains(t *testing.T) {
	tr := New()

	if tr.Contains(5) {
		t.Fatalf("empty tree contains 5")
	}
	if !tr.Insert(5) {
		t.Fatalf("first insert of 5 returned false")
	}
	if tr.Insert(5) {
		t.Fatalf("duplicate insert of 5 returned true")
	}
	if !tr.Contains(5) {
		t.Fatalf("tree does not contain 5 after insert")
	}
}

func TestTreeRemove(t *testing.T) {
	tr := New()
	for _, k := range []int32{10, 5, 15, 2, 7, 12, 20} {
		tr.Insert(k)
	}

	if !tr.Remove(7) {
		t.Fatalf("remove of present key 7 returned false")
	}
	if tr.Remove(7) {
		t.Fatalf("second remove of 7 returned true")
	}
	if tr.Contains(7) {
		t.Fatalf("tree still contains 7 after removal")
	}
	for _, k := range []int32{10, 5, 15, 2, 12, 20} {
		if !tr.Contains(k) {
			t.Fatalf("missing key %d after unrelated removal", k)
		}
	}
}

func TestTreeRemoveTwoChildrenRenamesSuccessor(t *testing.T) {
	tr := New()
	for _, k := range []int32{10, 5, 15, 3, 7, 12, 20} {
		tr.Insert(k)
	}

	if !tr.Remove(10) {
		t.Fatalf("remove of root with two children returned false")
	}
	if tr.Contains(10) {
		t.Fatalf("key still present after removal")
	}

	want := []int32{3, 5, 7, 12, 15, 20}
	got := tr.Preorder()
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != len(want) {
		t.Fatalf("preorder length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("sorted preorder[%d] = %d, want %d", i, got[i], k)
		}
	}
}

// countBalanced walks the real tree hanging off maxRoot, skipping the
// minRoot sentinel itself out of the returned key count (it never holds
// an application key) while still walking through it structurally, and
// fails the test at the first AVL-invariant violation it finds.
func countBalanced(t *testing.T, tr *Tree, n *node) (count int, height int32) {
	t.Helper()
	if n == nil {
		return 0, 0
	}
	lc, lh := countBalanced(t, tr, n.child(bstcore.Left))
	rc, rh := countBalanced(t, tr, n.child(bstcore.Right))
	if d := lh - rh; d > 1 || d < -1 {
		t.Fatalf("AVL balance violated at key %d: left height %d, right height %d", n.getKey(), lh, rh)
	}
	if got, want := n.getHeight(), 1+bstcore.Max(lh, rh); got != want {
		t.Fatalf("stale height at key %d: stored %d, computed %d", n.getKey(), got, want)
	}
	c := lc + rc
	if n != tr.minRoot {
		c++
	}
	h := lh
	if rh > h {
		h = rh
	}
	return c, h + 1
}

func TestTreeSequentialStaysBalanced(t *testing.T) {
	tr := New()
	r := rand.New(rand.NewSource(11))
	present := map[int32]bool{}
	for i := 0; i < 3000; i++ {
		k := int32(r.Intn(400)) + 1 // keep clear of the math.MinInt32 sentinel
		if r.Intn(3) == 0 && present[k] {
			tr.Remove(k)
			present[k] = false
		} else {
			tr.Insert(k)
			present[k] = true
		}
	}

	count, _ := countBalanced(t, tr, tr.maxRoot.child(bstcore.Left))

	var want int
	for _, v := range present {
		if v {
			want++
		}
	}
	if count != want {
		t.Fatalf("present node count = %d, want %d", count, want)
	}
}

func TestTreeConcurrentInsertRemoveContains(t *testing.T) {
	tr := New()
	const workers = 8
	const perWorker = 150

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			base := int32(w*perWorker) + 1
			for i := int32(0); i < perWorker; i++ {
				tr.Insert(base + i)
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		base := int32(w*perWorker) + 1
		for i := int32(0); i < perWorker; i++ {
			if !tr.Contains(base + i) {
				t.Fatalf("missing key %d after concurrent inserts", base+i)
			}
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			base := int32(w*perWorker) + 1
			for i := int32(0); i < perWorker; i += 2 {
				tr.Remove(base + i)
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		base := int32(w*perWorker) + 1
		for i := int32(0); i < perWorker; i++ {
			want := i%2 != 0
			if got := tr.Contains(base + i); got != want {
				t.Fatalf("key %d present=%v, want %v", base+i, got, want)
			}
		}
	}
}
