package review

import (
	"math/rand/v2"

	"github.com/conorfennell/memodeck/internal/domain"
)

// nextSequential picks the row after current in index order. Indices are
// sparse once rows move between pools: an exact match on current+1 wins,
// then the smallest larger index, then the smallest index overall.
func nextSequential(pool []domain.Row, current int) domain.Row {
	next := current + 1
	best, lowest := -1, 0
	for i, r := range pool {
		if r.Index == next {
			return r
		}
		if r.Index > next && (best < 0 || r.Index < pool[best].Index) {
			best = i
		}
		if r.Index < pool[lowest].Index {
			lowest = i
		}
	}
	if best >= 0 {
		return pool[best]
	}
	return pool[lowest]
}

func nextRandom(pool []domain.Row, rng *rand.Rand) domain.Row {
	return pool[rng.IntN(len(pool))]
}

// selectNext applies the policy to a non-empty pool. A nil current row
// starts the sequence at the lowest index.
func selectNext(pool []domain.Row, policy domain.Policy, current *domain.Row, rng *rand.Rand) domain.Row {
	if policy == domain.Random {
		return nextRandom(pool, rng)
	}
	idx := -1
	if current != nil {
		idx = current.Index
	}
	return nextSequential(pool, idx)
}
