package kcasutil

import (
	"sync"
	"testing"
	"unsafe"
)

func TestValRoundTrip(t *testing.T) {
	var w Word
	InitVal(&w, 42)
	if got := w.LoadVal(); got != 42 {
		t.Fatalf("LoadVal() = %d, want 42", got)
	}
}

func TestPtrRoundTrip(t *testing.T) {
	var w Word
	x := 7
	InitPtr(&w, unsafe.Pointer(&x))
	got := (*int)(w.LoadPtr())
	if got != &x {
		t.Fatalf("LoadPtr() = %p, want %p", got, &x)
	}
}

func TestCommitTwoWordsSucceeds(t *testing.T) {
	var a, b Word
	InitVal(&a, 1)
	InitVal(&b, 2)

	d := Start()
	d.AddVal(&a, 1, 10)
	d.AddVal(&b, 2, 20)
	if !d.Commit(NoHTM) {
		t.Fatalf("Commit() = false, want true")
	}
	if a.LoadVal() != 10 || b.LoadVal() != 20 {
		t.Fatalf("got a=%d b=%d, want a=10 b=20", a.LoadVal(), b.LoadVal())
	}
}

func TestCommitFailsOnStaleOldValue(t *testing.T) {
	var a Word
	InitVal(&a, 1)

	d := Start()
	d.AddVal(&a, 999, 10) // wrong expected old value
	if d.Commit(NoHTM) {
		t.Fatalf("Commit() = true, want false")
	}
	if got := a.LoadVal(); got != 1 {
		t.Fatalf("a = %d after failed commit, want unchanged 1", got)
	}
}

func TestCommitIsAllOrNothingUnderContention(t *testing.T) {
	const words = 4
	var locs [words]Word
	for i := range locs {
		InitVal(&locs[i], 0)
	}

	const workers = 16
	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(workers)
	successes := make([]int32, workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				old := [words]int32{}
				for i := range locs {
					old[i] = locs[i].LoadVal()
				}
				d := Start()
				for i := range locs {
					d.AddVal(&locs[i], old[i], old[i]+1)
				}
				if d.Commit(NoHTM) {
					successes[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	var total int32
	for _, s := range successes {
		total += s
	}
	for i := range locs {
		if got := locs[i].LoadVal(); got != total {
			t.Fatalf("word %d = %d, want %d (sum of successful commits)", i, got, total)
		}
	}
}
