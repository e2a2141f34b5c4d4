package locator

import "iter"

// Combination is one subset of the candidate list yielded by Combinations.
type Combination[T any] struct {
	Items     []T
	Size      int
	Iteration int // position in the whole sequence, 0 first
	Index     int // position within its size tier
	total     int
}

// FirstOfSize reports whether this is the first subset of its size.
func (c Combination[T]) FirstOfSize() bool { return c.Index == 0 }

// LastOfSize reports whether this is the last subset of its size.
func (c Combination[T]) LastOfSize() bool { return c.Index == c.CountForSize()-1 }

// CountForSize returns C(N, Size), the number of subsets in this tier.
func (c Combination[T]) CountForSize() int { return Binomial(c.total, c.Size) }

// Combinations lazily yields every subset of items, largest first (N down
// to 0). Within a size, subsets come in lexicographic order of their
// indices, so earlier items are kept longest.
func Combinations[T any](items []T) iter.Seq[Combination[T]] {
	n := len(items)
	return func(yield func(Combination[T]) bool) {
		iteration := 0
		for size := n; size >= 0; size-- {
			idx := make([]int, size)
			for i := range idx {
				idx[i] = i
			}
			for index := 0; ; index++ {
				picked := make([]T, size)
				for i, j := range idx {
					picked[i] = items[j]
				}
				c := Combination[T]{
					Items:     picked,
					Size:      size,
					Iteration: iteration,
					Index:     index,
					total:     n,
				}
				if !yield(c) {
					return
				}
				iteration++
				if !nextIndices(idx, n) {
					break
				}
			}
		}
	}
}

// nextIndices advances idx to the next k-subset of [0, n) in lexicographic
// order. It returns false when idx was the last one.
func nextIndices(idx []int, n int) bool {
	k := len(idx)
	i := k - 1
	for i >= 0 && idx[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	idx[i]++
	for j := i + 1; j < k; j++ {
		idx[j] = idx[j-1] + 1
	}
	return true
}

// Binomial returns C(n, k), 0 when k is out of range.
func Binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	r := 1
	for i := 1; i <= k; i++ {
		r = r * (n - k + i) / i
	}
	return r
}
