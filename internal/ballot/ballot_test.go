package ballot

import "testing"

func TestZeroIsLowest(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero should report IsZero")
	}
	n := Number{Round: 1, ProposerID: 1}
	if !Zero.Less(n) {
		t.Fatal("Zero should be less than any real ballot")
	}
}

func TestRoundOrdersFirst(t *testing.T) {
	a := Number{Round: 1, ProposerID: 9}
	b := Number{Round: 2, ProposerID: 1}
	if !a.Less(b) {
		t.Fatal("lower round must sort first regardless of proposer id")
	}
}

func TestProposerIdTiebreaks(t *testing.T) {
	a := Number{Round: 3, ProposerID: 1}
	b := Number{Round: 3, ProposerID: 2}
	if !a.Less(b) {
		t.Fatal("equal round should tiebreak on proposer id")
	}
	if b.Less(a) == a.Less(b) {
		t.Fatal("ordering must be asymmetric")
	}
}

func TestNextStrictlyIncreases(t *testing.T) {
	n1 := Next(0, 5)
	n2 := Next(n1.Round, 5)
	if !n1.Less(n2) {
		t.Fatalf("Next should strictly increase: %v -> %v", n1, n2)
	}
}

func TestEqual(t *testing.T) {
	a := Number{Round: 4, ProposerID: 2}
	b := Number{Round: 4, ProposerID: 2}
	if !a.Equal(b) {
		t.Fatal("identical ballots should be equal")
	}
	if a.Less(b) || b.Less(a) {
		t.Fatal("equal ballots must not be less than each other")
	}
}
