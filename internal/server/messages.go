package server

import (
	"github.com/lotusgame/duel-server-go/internal/match"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

type FindMatchRequest struct {
	DeckID string `json:"deckId"`
	Mode   string `json:"mode"`
}

type MatchRequest struct {
	MatchID string `json:"matchId"`
}

type PlayCardRequest struct {
	MatchID        string `json:"matchId"`
	InstanceID     string `json:"instanceId"`
	TargetPosition *int   `json:"targetPosition,omitempty"`
	TargetID       string `json:"targetId,omitempty"`
}

type AttackRequest struct {
	MatchID    string `json:"matchId"`
	AttackerID string `json:"attackerId"`
	TargetID   string `json:"targetId"`
}

type ListMatchesRequest struct{}

type LeaderboardRequest struct {
	Limit int `json:"limit,omitempty"`
}

// PlayerStatsRequest asks for the stats of PlayerID, or of the caller when
// PlayerID is empty.
type PlayerStatsRequest struct {
	PlayerID string `json:"playerId,omitempty"`
}

type MatchResponse struct {
	Match match.View `json:"match"`
}

type ReplayResponse struct {
	Steps []replay.Step `json:"steps"`
}

type MatchListResponse struct {
	Matches []match.View `json:"matches"`
}

type LeaderboardResponse struct {
	Entries []match.LeaderboardEntry `json:"entries"`
}

type PlayerStatsResponse struct {
	Stats match.PlayerStats `json:"stats"`
}
