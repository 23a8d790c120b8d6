package bstcore

import "testing"

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b int32
		want int
	}{
		{1, 2, -1},
		{2, 1, 1},
		{5, 5, 0},
		{-3, 3, -1},
	}
	for _, c := range cases {
		if got := Compare(c.a, c.b); got != c.want {
			t.Errorf("Compare(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestDirOf(t *testing.T) {
	if dir, equal := DirOf(5, 5); !equal || dir != Left {
		t.Fatalf("DirOf(5, 5) = (%v, %v), want (Left, true)", dir, equal)
	}
	if dir, equal := DirOf(3, 5); equal || dir != Left {
		t.Fatalf("DirOf(3, 5) = (%v, %v), want (Left, false)", dir, equal)
	}
	if dir, equal := DirOf(7, 5); equal || dir != Right {
		t.Fatalf("DirOf(7, 5) = (%v, %v), want (Right, false)", dir, equal)
	}
}

func TestDirOther(t *testing.T) {
	if Left.Other() != Right {
		t.Fatalf("Left.Other() = %v, want Right", Left.Other())
	}
	if Right.Other() != Left {
		t.Fatalf("Right.Other() = %v, want Left", Right.Other())
	}
}

func TestDirString(t *testing.T) {
	if Left.String() != "left" || Right.String() != "right" {
		t.Fatalf("Dir.String() mismatch: left=%q right=%q", Left.String(), Right.String())
	}
}

func TestNewHeightAndBalanceFactor(t *testing.T) {
	if h := NewHeight(0, 0); h != 1 {
		t.Fatalf("NewHeight(0, 0) = %d, want 1", h)
	}
	if h := NewHeight(2, 5); h != 6 {
		t.Fatalf("NewHeight(2, 5) = %d, want 6", h)
	}
	if bf := BalanceFactor(3, 1); bf != 2 {
		t.Fatalf("BalanceFactor(3, 1) = %d, want 2", bf)
	}
	if bf := BalanceFactor(1, 3); bf != -2 {
		t.Fatalf("BalanceFactor(1, 3) = %d, want -2", bf)
	}
}

func TestChooseRotation(t *testing.T) {
	cases := []struct {
		name               string
		balance, childBal  int32
		want               RotationKind
	}{
		{"balanced", 0, 0, NoRotation},
		{"left-heavy, left-heavy child -> single right", 2, 1, SingleRight},
		{"left-heavy, balanced child -> single right", 2, 0, SingleRight},
		{"left-heavy, right-heavy child -> double left-right", 2, -1, DoubleLeftRight},
		{"right-heavy, right-heavy child -> single left", -2, -1, SingleLeft},
		{"right-heavy, balanced child -> single left", -2, 0, SingleLeft},
		{"right-heavy, left-heavy child -> double right-left", -2, 1, DoubleRightLeft},
	}
	for _, c := range cases {
		if got := ChooseRotation(c.balance, c.childBal); got != c.want {
			t.Errorf("%s: ChooseRotation(%d, %d) = %v, want %v", c.name, c.balance, c.childBal, got, c.want)
		}
	}
}
