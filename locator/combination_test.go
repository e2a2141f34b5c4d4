package locator

import (
	"strings"
	"testing"
)

func TestCombinations_Order(t *testing.T) {
	var got []string
	var sizes []int
	for c := range Combinations([]string{"a", "b", "c"}) {
		got = append(got, strings.Join(c.Items, ""))
		sizes = append(sizes, c.Size)
	}

	want := []string{"abc", "ab", "ac", "bc", "a", "b", "c", ""}
	if len(got) != len(want) {
		t.Fatalf("combinations: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("combination[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
	for i := 1; i < len(sizes); i++ {
		if sizes[i] > sizes[i-1] {
			t.Fatalf("sizes not descending: %v", sizes)
		}
	}
}

func TestCombinations_TierQueries(t *testing.T) {
	type seen struct {
		first, last bool
		count, iter int
	}
	var all []seen
	for c := range Combinations([]int{1, 2, 3, 4}) {
		all = append(all, seen{c.FirstOfSize(), c.LastOfSize(), c.CountForSize(), c.Iteration})
	}
	if len(all) != 16 {
		t.Fatalf("count: got %d, want 16", len(all))
	}

	// Tier boundaries for N=4: sizes 4,3,3,3,3,2x6,1x4,0.
	firsts := map[int]bool{0: true, 1: true, 5: true, 11: true, 15: true}
	lasts := map[int]bool{0: true, 4: true, 10: true, 14: true, 15: true}
	counts := []int{1, 4, 4, 4, 4, 6, 6, 6, 6, 6, 6, 4, 4, 4, 4, 1}
	for i, s := range all {
		if s.iter != i {
			t.Errorf("[%d] iteration: got %d", i, s.iter)
		}
		if s.first != firsts[i] {
			t.Errorf("[%d] FirstOfSize: got %v, want %v", i, s.first, firsts[i])
		}
		if s.last != lasts[i] {
			t.Errorf("[%d] LastOfSize: got %v, want %v", i, s.last, lasts[i])
		}
		if s.count != counts[i] {
			t.Errorf("[%d] CountForSize: got %d, want %d", i, s.count, counts[i])
		}
	}
}

func TestCombinations_Empty(t *testing.T) {
	n := 0
	for c := range Combinations[string](nil) {
		if c.Size != 0 || len(c.Items) != 0 {
			t.Errorf("empty input: got size %d", c.Size)
		}
		if !c.FirstOfSize() || !c.LastOfSize() {
			t.Error("empty input: the only combination is first and last of its size")
		}
		n++
	}
	if n != 1 {
		t.Fatalf("empty input: got %d combinations, want 1", n)
	}
}

func TestCombinations_EarlyStop(t *testing.T) {
	n := 0
	for range Combinations([]int{1, 2, 3, 4, 5}) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("early stop: got %d iterations", n)
	}
}

func TestBinomial(t *testing.T) {
	cases := []struct{ n, k, want int }{
		{0, 0, 1},
		{5, 0, 1},
		{5, 5, 1},
		{5, 2, 10},
		{7, 3, 35},
		{10, 5, 252},
		{3, 4, 0},
		{3, -1, 0},
	}
	for _, c := range cases {
		if got := Binomial(c.n, c.k); got != c.want {
			t.Errorf("Binomial(%d, %d): got %d, want %d", c.n, c.k, got, c.want)
		}
	}
}
