package assignment

import (
	"errors"
	"math/rand/v2"
)

// ErrInsufficientMembers is returned when fewer than two members can take part.
var ErrInsufficientMembers = errors.New("at least two members are required")

// Pair is one giver/receiver pairing.
type Pair struct {
	GiverID    int64
	ReceiverID int64
}

// Source supplies uniform integers in [0, n). *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Default draws from the runtime-seeded math/rand/v2 generator.
var Default Source = globalSource{}

// Generate shuffles members and links them into a single cycle: each member
// gives to the next one in shuffled order and the last gives to the first.
// The input slice is not modified.
func Generate(memberIDs []int64, src Source) ([]Pair, error) {
	n := len(memberIDs)
	if n < 2 {
		return nil, ErrInsufficientMembers
	}
	if src == nil {
		src = Default
	}

	order := make([]int64, n)
	copy(order, memberIDs)
	Shuffle(order, src)

	pairs := make([]Pair, n)
	for i, giver := range order {
		pairs[i] = Pair{GiverID: giver, ReceiverID: order[(i+1)%n]}
	}
	return pairs, nil
}

// Shuffle permutes ids in place with Fisher-Yates.
func Shuffle(ids []int64, src Source) {
	for i := len(ids) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}
