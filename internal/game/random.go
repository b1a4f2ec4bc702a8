package game

import "math/rand/v2"

// Random is the source of randomness for shuffles and turn draws.
type Random interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
}

type defaultRandom struct{}

func (defaultRandom) IntN(n int) int { return rand.IntN(n) }

// NewRandom returns a Random backed by the process-wide generator. It is safe
// for concurrent use.
func NewRandom() Random {
	return defaultRandom{}
}

// Shuffle permutes refs in place with an unbiased Fisher-Yates shuffle.
func Shuffle(refs []CardRef, rng Random) {
	for i := len(refs) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		refs[i], refs[j] = refs[j], refs[i]
	}
}

// DeckSlot is a saved deck entry: a catalog card and how many copies are included.
type DeckSlot struct {
	CardRef
	Count int `json:"count"`
}

// FlattenDeck expands slots into one reference per copy, in slot order.
func FlattenDeck(slots []DeckSlot) []CardRef {
	total := 0
	for _, s := range slots {
		if s.Count > 0 {
			total += s.Count
		}
	}
	refs := make([]CardRef, 0, total)
	for _, s := range slots {
		for i := 0; i < s.Count; i++ {
			refs = append(refs, s.CardRef)
		}
	}
	return refs
}
