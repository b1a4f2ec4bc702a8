package game

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"
)

// stubRandom replays queued values and otherwise returns n-1, which leaves a
// Fisher-Yates shuffle as the identity permutation and draws the maximum.
type stubRandom struct {
	next []int
}

func (r *stubRandom) IntN(n int) int {
	if len(r.next) > 0 {
		v := r.next[0]
		r.next = r.next[1:]
		return v % n
	}
	return n - 1
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("inst-%d", n)
	}
}

const (
	cardFootman      int64 = 1
	cardShieldbearer int64 = 2
	cardKnight       int64 = 3
	cardRaider       int64 = 4
	cardFireball     int64 = 10
	cardIntellect    int64 = 11
	cardFrostbolt    int64 = 12
)

func testCatalog() *StaticCatalog {
	return NewStaticCatalog(
		[]MinionCard{
			{ID: cardFootman, Name: "Footman", ManaCost: 3, Attack: 3, Health: 3},
			{ID: cardShieldbearer, Name: "Shieldbearer", ManaCost: 1, Attack: 0, Health: 4, Taunt: true},
			{ID: cardKnight, Name: "Knight", ManaCost: 2, Attack: 2, Health: 2, DivineShield: true},
			{ID: cardRaider, Name: "Raider", ManaCost: 3, Attack: 3, Health: 1, Charge: true},
		},
		[]SpellCard{
			{ID: cardFireball, Name: "Fireball", ManaCost: 4, Damage: 6},
			{ID: cardIntellect, Name: "Arcane Intellect", ManaCost: 3},
			{ID: cardFrostbolt, Name: "Frostbolt", ManaCost: 2, Damage: 3},
		},
	)
}

type testHarness struct {
	t      *testing.T
	ctx    context.Context
	rng    *stubRandom
	engine *Engine
	state  *GameState
}

func newHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()
	rng := &stubRandom{}
	base := []Option{WithRandom(rng), WithIDGenerator(sequentialIDs())}
	h := &testHarness{
		t:      t,
		ctx:    context.Background(),
		rng:    rng,
		engine: NewEngine(testCatalog(), zaptest.NewLogger(t), append(base, opts...)...),
	}
	h.state = &GameState{
		Players: []*PlayerState{
			{PlayerID: "alice", Health: StartingHealth, Mana: MaxMana, MaxMana: MaxMana, Deck: minionDeck(5)},
			{PlayerID: "bob", Health: StartingHealth, Mana: 0, MaxMana: 0, Deck: minionDeck(5)},
		},
		TurnNumber:          1,
		CurrentTurnPlayerID: "alice",
	}
	return h
}

func minionDeck(n int) []CardRef {
	deck := make([]CardRef, n)
	for i := range deck {
		deck[i] = CardRef{Kind: CardKindMinion, CardID: cardFootman}
	}
	return deck
}

func (h *testHarness) player(id string) *PlayerState {
	h.t.Helper()
	p, ok := h.state.Player(id)
	if !ok {
		h.t.Fatalf("player %s not in state", id)
	}
	return p
}

// give puts a card into the player's hand and returns its instance id.
func (h *testHarness) give(playerID string, kind CardKind, cardID int64) string {
	p := h.player(playerID)
	id := fmt.Sprintf("%s-hand-%d", playerID, len(p.Hand))
	p.Hand = append(p.Hand, CardInHand{InstanceID: id, CardRef: CardRef{Kind: kind, CardID: cardID}})
	return id
}

// place puts a ready minion on the player's board and returns its instance id.
func (h *testHarness) place(playerID string, attack, health int, mods ...func(*BoardMinion)) string {
	p := h.player(playerID)
	m := BoardMinion{
		InstanceID:    fmt.Sprintf("%s-board-%d", playerID, len(p.Board)),
		CardID:        cardFootman,
		Attack:        attack,
		CurrentHealth: health,
		MaxHealth:     health,
		CanAttack:     true,
	}
	for _, mod := range mods {
		mod(&m)
	}
	p.Board = append(p.Board, m)
	return m.InstanceID
}

func withTaunt(m *BoardMinion) { m.Taunt = true }

func withDivineShield(m *BoardMinion) { m.DivineShield = true }

func spent(m *BoardMinion) {
	m.CanAttack = false
	m.Exhausted = true
}

func intPtr(v int) *int { return &v }
