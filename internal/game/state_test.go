package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneIsIndependent(t *testing.T) {
	h := newHarness(t)
	h.place("alice", 2, 2)
	h.give("alice", CardKindSpell, cardFireball)

	clone := h.state.Clone()
	c, _ := clone.Player("alice")
	c.Health = 1
	c.Board[0].CurrentHealth = 99
	c.Hand = c.Hand[:0]
	c.Deck[0].CardID = 42
	clone.TurnNumber = 7

	orig := h.player("alice")
	assert.Equal(t, StartingHealth, orig.Health)
	assert.Equal(t, 2, orig.Board[0].CurrentHealth)
	assert.Len(t, orig.Hand, 1)
	assert.Equal(t, cardFootman, orig.Deck[0].CardID)
	assert.Equal(t, 1, h.state.TurnNumber)
}

func TestCloneNil(t *testing.T) {
	var s *GameState
	assert.Nil(t, s.Clone())
}

func TestOpponent(t *testing.T) {
	h := newHarness(t)
	opp, ok := h.state.Opponent("alice")
	assert.True(t, ok)
	assert.Equal(t, "bob", opp.PlayerID)

	_, ok = h.state.Opponent("mallory")
	assert.False(t, ok)
}

func TestIsHeroTarget(t *testing.T) {
	assert.True(t, IsHeroTarget("hero"))
	assert.True(t, IsHeroTarget("Hero"))
	assert.False(t, IsHeroTarget("heroes"))
	assert.False(t, IsHeroTarget(""))
}

func TestChecksumDeterministic(t *testing.T) {
	h := newHarness(t)
	h.place("bob", 1, 1)

	sum := h.state.Checksum()
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, h.state.Clone().Checksum())

	h.player("bob").Board[0].CurrentHealth = 0
	assert.NotEqual(t, sum, h.state.Checksum())
}
