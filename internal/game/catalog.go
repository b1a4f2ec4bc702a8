package game

import (
	"context"
	"sync"

	"github.com/lotusgame/duel-server-go/internal/errors"
)

// Effect describes a battlecry or deathrattle as stored in the catalog.
// The engine never interprets it; an EffectResolver may.
type Effect struct {
	Type         string `json:"type"`
	Value        int    `json:"value,omitempty"`
	Target       string `json:"target,omitempty"`
	SummonCardID int64  `json:"summonCardId,omitempty"`
}

// MinionCard holds the catalog stats of a minion.
type MinionCard struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	ManaCost     int     `json:"manaCost"`
	Attack       int     `json:"attack"`
	Health       int     `json:"health"`
	Taunt        bool    `json:"taunt"`
	Charge       bool    `json:"charge"`
	DivineShield bool    `json:"divineShield"`
	Battlecry    *Effect `json:"battlecry,omitempty"`
	Deathrattle  *Effect `json:"deathrattle,omitempty"`
}

// SpellCard holds the catalog stats of a spell.
type SpellCard struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ManaCost int    `json:"manaCost"`
	Damage   int    `json:"damage"`
}

// Catalog resolves card references to their stats. Implementations return an
// errors.ErrNotFound error for unknown ids.
type Catalog interface {
	Minion(ctx context.Context, id int64) (MinionCard, error)
	Spell(ctx context.Context, id int64) (SpellCard, error)
}

// StaticCatalog is an in-memory Catalog.
type StaticCatalog struct {
	mu      sync.RWMutex
	minions map[int64]MinionCard
	spells  map[int64]SpellCard
}

// NewStaticCatalog creates a catalog holding the given cards.
func NewStaticCatalog(minions []MinionCard, spells []SpellCard) *StaticCatalog {
	c := &StaticCatalog{
		minions: make(map[int64]MinionCard, len(minions)),
		spells:  make(map[int64]SpellCard, len(spells)),
	}
	for _, m := range minions {
		c.minions[m.ID] = m
	}
	for _, s := range spells {
		c.spells[s.ID] = s
	}
	return c
}

// PutMinion adds or replaces a minion card.
func (c *StaticCatalog) PutMinion(card MinionCard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minions[card.ID] = card
}

// PutSpell adds or replaces a spell card.
func (c *StaticCatalog) PutSpell(card SpellCard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spells[card.ID] = card
}

func (c *StaticCatalog) Minion(_ context.Context, id int64) (MinionCard, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	card, ok := c.minions[id]
	if !ok {
		return MinionCard{}, errors.NewNotFoundError(errors.KindCardNotFound, "minion not found", errors.Details{"card_id": id})
	}
	return card, nil
}

func (c *StaticCatalog) Spell(_ context.Context, id int64) (SpellCard, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	card, ok := c.spells[id]
	if !ok {
		return SpellCard{}, errors.NewNotFoundError(errors.KindCardNotFound, "spell not found", errors.Details{"card_id": id})
	}
	return card, nil
}
