package game

import (
	"context"
	"fmt"
)

// EventType indicates what happened during an action.
type EventType string

const (
	EventCardDrawn      EventType = "CARD_DRAWN"
	EventFatigue        EventType = "FATIGUE"
	EventSpellCast      EventType = "SPELL_CAST"
	EventMinionSummoned EventType = "MINION_SUMMONED"
	EventShieldPopped   EventType = "SHIELD_POPPED"
	EventMinionDamaged  EventType = "MINION_DAMAGED"
	EventMinionDied     EventType = "MINION_DIED"
	EventHeroDamaged    EventType = "HERO_DAMAGED"
	EventAttack         EventType = "ATTACK"
	EventTurnStarted    EventType = "TURN_STARTED"
	EventGameOver       EventType = "GAME_OVER"
)

// Event is a single observable consequence of an action.
type Event struct {
	Type     EventType `json:"type"`
	PlayerID string    `json:"playerId,omitempty"`
	SourceID string    `json:"sourceId,omitempty"`
	TargetID string    `json:"targetId,omitempty"`
	Amount   int       `json:"amount,omitempty"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s player=%s source=%s target=%s amount=%d", e.Type, e.PlayerID, e.SourceID, e.TargetID, e.Amount)
}

// Result reports the outcome of an accepted action.
type Result struct {
	// Description is the human readable replay text for the action.
	Description string
	// Finished is set when the action ended the match.
	Finished bool
	// WinnerID is the winning player. Empty with Finished set means a draw.
	WinnerID string
	Events   []Event
}

func (r *Result) emit(e Event) {
	r.Events = append(r.Events, e)
}

func (r *Result) finish(winnerID string) {
	r.Finished = true
	r.WinnerID = winnerID
	r.emit(Event{Type: EventGameOver, PlayerID: winnerID})
}

// EffectResolver runs card text when a minion enters or leaves the board.
// Hooks may mutate state; they run inside the action that triggered them.
type EffectResolver interface {
	OnSummon(ctx context.Context, state *GameState, ownerID string, minion *BoardMinion, card MinionCard) error
	OnDeath(ctx context.Context, state *GameState, ownerID string, minion BoardMinion) error
}

// NoEffects is the EffectResolver used when cards carry no executable text.
type NoEffects struct{}

func (NoEffects) OnSummon(context.Context, *GameState, string, *BoardMinion, MinionCard) error {
	return nil
}

func (NoEffects) OnDeath(context.Context, *GameState, string, BoardMinion) error {
	return nil
}
