package coarse

import (
	"math/rand"
	"sort"
	"sync"
	"testing"
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

func TestTreeRemoveTwoChildren(t *testing.T) {
	tr := New()
	for _, k := range []int32{10, 5, 15, 3, 7, 12, 20} {
		tr.Insert(k)
	}

	if !tr.Remove(10) {
		t.Fatalf("remove of root with two children returned false")
	}
	if tr.Contains(10) {
		t.Fatalf("root key still present after removal")
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

func TestTreeStaysBalanced(t *testing.T) {
	tr := New()
	r := rand.New(rand.NewSource(1))
	present := map[int32]bool{}
	for i := 0; i < 2000; i++ {
		k := int32(r.Intn(500))
		if r.Intn(3) == 0 && present[k] {
			tr.Remove(k)
			present[k] = false
		} else {
			tr.Insert(k)
			present[k] = true
		}
	}

	var countHeight func(*node) (count int, height int32)
	countHeight = func(n *node) (int, int32) {
		if n == nil {
			return 0, 0
		}
		lc, lh := countHeight(n.left)
		rc, rh := countHeight(n.right)
		if d := lh - rh; d > 1 || d < -1 {
			t.Fatalf("AVL balance violated at key %d: left height %d, right height %d", n.key, lh, rh)
		}
		return lc + rc + 1, 1 + maxInt32(lh, rh)
	}
	count, _ := countHeight(tr.root)

	var want int
	for _, v := range present {
		if v {
			want++
		}
	}
	if count != want {
		t.Fatalf("node count = %d, want %d", count, want)
	}
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func TestTreeConcurrentInsertsAreLinearizable(t *testing.T) {
	tr := New()
	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			base := int32(w * perWorker)
			for i := int32(0); i < perWorker; i++ {
				tr.Insert(base + i)
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		base := int32(w * perWorker)
		for i := int32(0); i < perWorker; i++ {
			if !tr.Contains(base + i) {
				t.Fatalf("missing key %d after concurrent inserts", base+i)
			}
		}
	}
	if got := len(tr.Preorder()); got != workers*perWorker {
		t.Fatalf("preorder length = %d, want %d", got, workers*perWorker)
	}
}
