// Package replay records the ordered history of a match and exports finished
// histories to long-term storage.
package replay

import (
	"fmt"
	"time"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/game"
)

// Action tags a replay step.
type Action string

const (
	ActionInit    Action = "INIT"
	ActionPlay    Action = "PLAY"
	ActionAttack  Action = "ATTACK"
	ActionEndTurn Action = "END_TURN"
)

// InitDescription is the description of the first step of every match.
const InitDescription = "Match started"

// Step is one recorded action and the state it produced. Steps are never
// modified after they are recorded.
type Step struct {
	Index       int             `json:"stepIndex"`
	TurnNumber  int             `json:"turnNumber"`
	Action      Action          `json:"actionType"`
	PlayerID    string          `json:"playerId,omitempty"`
	Description string          `json:"description"`
	State       *game.GameState `json:"gameState"`
	Checksum    string          `json:"checksum"`
	RecordedAt  time.Time       `json:"recordedAt"`
}

// Recorder appends steps to replay logs.
type Recorder struct {
	now func() time.Time
}

// NewRecorder creates a Recorder stamping steps with the given clock.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Record returns a new log consisting of steps followed by a step for the
// given action. The state is deep-copied and steps is left untouched.
func (r *Recorder) Record(steps []Step, action Action, playerID, description string, state *game.GameState) []Step {
	snapshot := state.Clone()
	out := make([]Step, len(steps), len(steps)+1)
	copy(out, steps)
	return append(out, Step{
		Index:       len(steps),
		TurnNumber:  snapshot.TurnNumber,
		Action:      action,
		PlayerID:    playerID,
		Description: description,
		State:       snapshot,
		Checksum:    snapshot.Checksum(),
		RecordedAt:  r.now().UTC(),
	})
}

// Verify checks that indices are contiguous from zero and that every snapshot
// still matches its checksum.
func Verify(steps []Step) error {
	for i, s := range steps {
		if s.Index != i {
			return errors.NewInvalidStateError(errors.KindStorage, fmt.Sprintf("step %d has index %d", i, s.Index), nil)
		}
		if s.State == nil {
			return errors.NewInvalidStateError(errors.KindStorage, fmt.Sprintf("step %d has no state", i), nil)
		}
		if got := s.State.Checksum(); got != s.Checksum {
			return errors.NewInvalidStateError(errors.KindStorage, fmt.Sprintf("step %d checksum mismatch", i),
				errors.Details{"want": s.Checksum, "got": got})
		}
	}
	return nil
}
