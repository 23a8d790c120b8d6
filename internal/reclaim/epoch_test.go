package reclaim

import "testing"

func TestManagerReaderBlocksReclamation(t *testing.T) {
	m := New[int]()

	guard := m.Enter()
	m.Retire(1)
	m.Advance()
	m.Retire(2)

	if got := m.TryReclaim(); got != 0 {
		t.Fatalf("TryReclaim() = %d while a reader from the first epoch is active, want 0", got)
	}

	guard.Leave()
	m.Advance()
	if got := m.TryReclaim(); got != 2 {
		t.Fatalf("TryReclaim() = %d after the reader left, want 2", got)
	}
	if got := m.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() = %d after reclamation, want 0", got)
	}
}

func TestManagerActiveReaderCount(t *testing.T) {
	m := New[string]()
	if got := m.ActiveReaderCount(); got != 0 {
		t.Fatalf("ActiveReaderCount() = %d on a fresh manager, want 0", got)
	}

	g1 := m.Enter()
	g2 := m.Enter()
	if got := m.ActiveReaderCount(); got != 2 {
		t.Fatalf("ActiveReaderCount() = %d with two guards held, want 2", got)
	}

	g1.Leave()
	if got := m.ActiveReaderCount(); got != 1 {
		t.Fatalf("ActiveReaderCount() = %d after one Leave, want 1", got)
	}
	g2.Leave()
	if got := m.ActiveReaderCount(); got != 0 {
		t.Fatalf("ActiveReaderCount() = %d after both Leave, want 0", got)
	}
}

func TestManagerRetireAllBatchesUnderOneEpoch(t *testing.T) {
	m := New[int]()
	m.RetireAll([]int{1, 2, 3})
	if got := m.PendingCount(); got != 3 {
		t.Fatalf("PendingCount() = %d, want 3", got)
	}

	m.Advance()
	if got := m.TryReclaim(); got != 3 {
		t.Fatalf("TryReclaim() = %d, want 3", got)
	}
}
