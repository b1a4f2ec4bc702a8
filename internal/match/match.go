// Package match pairs players into matches and runs every in-match action
// inside a single transaction.
package match

import (
	"strings"
	"time"

	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

// Mode is the queue a match was created in.
type Mode string

const (
	ModeRanked Mode = "RANKED"
	ModeCasual Mode = "CASUAL"
)

// ParseMode validates a mode name, ignoring case and surrounding space. An
// empty name selects ModeRanked.
func ParseMode(s string) (Mode, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ModeRanked, true
	}
	switch Mode(s) {
	case ModeRanked, ModeCasual:
		return Mode(s), true
	default:
		return "", false
	}
}

// Status is the lifecycle phase of a match. Status only ever moves forward.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
)

// Match is the persisted record of a match. Player2 fields are empty while
// the match is waiting for an opponent.
type Match struct {
	ID                  string
	Player1ID           string
	Player2ID           string
	Deck1ID             string
	Deck2ID             string
	Player1Rating       int
	Player2Rating       int
	Mode                Mode
	Status              Status
	WinnerID            string
	CurrentTurnPlayerID string
	CreatedAt           time.Time
	State               *game.GameState
	Replay              []replay.Step

	// Version is bumped on every write and guards conditional updates.
	Version    int64
	ArchivedAt *time.Time
}

// IsParticipant reports whether playerID plays in the match.
func (m *Match) IsParticipant(playerID string) bool {
	return playerID != "" && (m.Player1ID == playerID || m.Player2ID == playerID)
}

// Clone returns a deep copy. Replay steps are shared since they never change.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	out := *m
	out.State = m.State.Clone()
	out.Replay = append([]replay.Step(nil), m.Replay...)
	if m.ArchivedAt != nil {
		at := *m.ArchivedAt
		out.ArchivedAt = &at
	}
	return &out
}

// View is the client facing shape of a match.
type View struct {
	ID                  string          `json:"id"`
	Player1ID           string          `json:"player1Id"`
	Player2ID           string          `json:"player2Id,omitempty"`
	Deck1ID             string          `json:"deck1Id"`
	Deck2ID             string          `json:"deck2Id,omitempty"`
	Player1Rating       int             `json:"player1Rating"`
	Player2Rating       *int            `json:"player2Rating,omitempty"`
	Mode                Mode            `json:"mode"`
	Status              Status          `json:"status"`
	WinnerID            string          `json:"winnerId,omitempty"`
	CurrentTurnPlayerID string          `json:"currentTurnPlayerId,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	GameState           *game.GameState `json:"gameState,omitempty"`
	ReplaySteps         []replay.Step   `json:"replaySteps"`
}

// View returns a copy of the match safe to hand to other goroutines.
func (m *Match) View() View {
	v := View{
		ID:                  m.ID,
		Player1ID:           m.Player1ID,
		Player2ID:           m.Player2ID,
		Deck1ID:             m.Deck1ID,
		Deck2ID:             m.Deck2ID,
		Player1Rating:       m.Player1Rating,
		Mode:                m.Mode,
		Status:              m.Status,
		WinnerID:            m.WinnerID,
		CurrentTurnPlayerID: m.CurrentTurnPlayerID,
		CreatedAt:           m.CreatedAt,
		GameState:           m.State.Clone(),
		ReplaySteps:         append([]replay.Step{}, m.Replay...),
	}
	if m.Player2ID != "" {
		r := m.Player2Rating
		v.Player2Rating = &r
	}
	return v
}

// FinishedAt is the time of the last recorded step, or the creation time of a
// match without steps.
func (m *Match) FinishedAt() time.Time {
	if n := len(m.Replay); n > 0 {
		return m.Replay[n-1].RecordedAt
	}
	return m.CreatedAt
}

// Archive converts a finished match into its exported replay.
func (m *Match) Archive() replay.Archive {
	return replay.Archive{
		MatchID:    m.ID,
		Player1ID:  m.Player1ID,
		Player2ID:  m.Player2ID,
		WinnerID:   m.WinnerID,
		FinishedAt: m.FinishedAt(),
		Steps:      m.Replay,
	}
}

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Username string `json:"username,omitempty"`
	Rating   int    `json:"rating"`
	RankName string `json:"rankName"`
}

// Record counts the finished matches of a player.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// PlayerStats summarizes a player.
type PlayerStats struct {
	PlayerID string `json:"playerId"`
	Rating   int    `json:"rating"`
	RankName string `json:"rankName"`
	Record
}
