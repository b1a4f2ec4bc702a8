package game

import "strings"

// Rule constants shared by every match.
const (
	StartingHealth = 30
	MaxMana        = 10
	MaxBoardSize   = 7
	MaxHandSize    = 10

	// Opening hands. The second player draws one extra card.
	FirstPlayerOpeningHand  = 3
	SecondPlayerOpeningHand = 4

	// Cards drawn at the start of a turn are chosen uniformly in [MinTurnDraw, MaxTurnDraw].
	MinTurnDraw = 1
	MaxTurnDraw = 3

	// HeroTarget addresses the opposing hero instead of a minion. Compared case-insensitively.
	HeroTarget = "hero"
)

// IsHeroTarget reports whether target addresses the opposing hero.
func IsHeroTarget(target string) bool {
	return strings.EqualFold(target, HeroTarget)
}

// CardKind tags a card reference.
type CardKind string

const (
	CardKindMinion CardKind = "MINION"
	CardKindSpell  CardKind = "SPELL"
)

// Valid reports whether k is a known card kind.
func (k CardKind) Valid() bool {
	return k == CardKindMinion || k == CardKindSpell
}

// CardRef points at a catalog card of the given kind.
type CardRef struct {
	Kind   CardKind `json:"cardType"`
	CardID int64    `json:"cardId"`
}

// CardInHand is a drawn card with its match-unique instance id.
type CardInHand struct {
	InstanceID string `json:"instanceId"`
	CardRef
}

// BoardMinion is a summoned minion. Stats are copied from the catalog at summon time.
type BoardMinion struct {
	InstanceID    string `json:"instanceId"`
	CardID        int64  `json:"cardId"`
	Attack        int    `json:"attack"`
	CurrentHealth int    `json:"currentHealth"`
	MaxHealth     int    `json:"maxHealth"`
	CanAttack     bool   `json:"canAttack"`
	Exhausted     bool   `json:"exhausted"`
	Taunt         bool   `json:"taunt"`
	DivineShield  bool   `json:"divineShield"`
}

// PlayerState is one side of a match.
type PlayerState struct {
	PlayerID       string        `json:"playerId"`
	Health         int           `json:"health"`
	Mana           int           `json:"mana"`
	MaxMana        int           `json:"maxMana"`
	FatigueCounter int           `json:"fatigueCounter"`
	Deck           []CardRef     `json:"deck"`
	Hand           []CardInHand  `json:"hand"`
	Board          []BoardMinion `json:"board"`
}

// GameState is the complete battle state of a match in progress.
// Players holds exactly two entries, the match creator first.
type GameState struct {
	Players             []*PlayerState `json:"players"`
	TurnNumber          int            `json:"turnNumber"`
	CurrentTurnPlayerID string         `json:"currentTurnPlayerId"`
}

// Player returns the state owned by playerID.
func (s *GameState) Player(playerID string) (*PlayerState, bool) {
	for _, p := range s.Players {
		if p.PlayerID == playerID {
			return p, true
		}
	}
	return nil, false
}

// Opponent returns the state of the player that is not playerID.
func (s *GameState) Opponent(playerID string) (*PlayerState, bool) {
	if _, ok := s.Player(playerID); !ok {
		return nil, false
	}
	for _, p := range s.Players {
		if p.PlayerID != playerID {
			return p, true
		}
	}
	return nil, false
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := &GameState{
		Players:             make([]*PlayerState, len(s.Players)),
		TurnNumber:          s.TurnNumber,
		CurrentTurnPlayerID: s.CurrentTurnPlayerID,
	}
	for i, p := range s.Players {
		out.Players[i] = p.Clone()
	}
	return out
}

// Clone returns a deep copy of p.
func (p *PlayerState) Clone() *PlayerState {
	if p == nil {
		return nil
	}
	out := *p
	out.Deck = append([]CardRef(nil), p.Deck...)
	out.Hand = append([]CardInHand(nil), p.Hand...)
	out.Board = append([]BoardMinion(nil), p.Board...)
	return &out
}

// HandIndex returns the position of the instance in the hand or -1.
func (p *PlayerState) HandIndex(instanceID string) int {
	for i, c := range p.Hand {
		if c.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

// BoardIndex returns the position of the minion on the board or -1.
func (p *PlayerState) BoardIndex(instanceID string) int {
	for i, m := range p.Board {
		if m.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

// HasTaunt reports whether any minion on the board has taunt.
func (p *PlayerState) HasTaunt() bool {
	for _, m := range p.Board {
		if m.Taunt {
			return true
		}
	}
	return false
}

// CanAfford reports whether the player has at least cost mana available.
func (p *PlayerState) CanAfford(cost int) bool {
	return p.Mana >= cost
}

// Ramp grows the mana crystal count by one up to MaxMana and refills the pool.
func (p *PlayerState) Ramp() {
	p.MaxMana = min(p.MaxMana+1, MaxMana)
	p.Mana = p.MaxMana
}

// Untap readies every minion on the board.
func (p *PlayerState) Untap() {
	for i := range p.Board {
		p.Board[i].CanAttack = true
		p.Board[i].Exhausted = false
	}
}

func (p *PlayerState) removeHand(i int) CardInHand {
	card := p.Hand[i]
	p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
	return card
}

func (p *PlayerState) removeBoard(i int) BoardMinion {
	m := p.Board[i]
	p.Board = append(p.Board[:i], p.Board[i+1:]...)
	return m
}

// takeDamage applies damage to a minion, consuming divine shield first.
// It reports whether the shield absorbed the hit.
func (m *BoardMinion) takeDamage(amount int) bool {
	if amount <= 0 {
		return false
	}
	if m.DivineShield {
		m.DivineShield = false
		return true
	}
	m.CurrentHealth -= amount
	return false
}

func (m *BoardMinion) dead() bool {
	return m.CurrentHealth <= 0
}

func (m *BoardMinion) spend() {
	m.CanAttack = false
	m.Exhausted = true
}
