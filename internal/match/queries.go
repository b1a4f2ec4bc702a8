package match

import (
	"context"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/rating"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

// GetMatch returns a match visible to one of its participants.
func (s *Service) GetMatch(ctx context.Context, matchID, playerID string) (View, error) {
	m, err := s.participantMatch(ctx, matchID, playerID)
	if err != nil {
		return View{}, err
	}
	return m.View(), nil
}

// GetReplay returns the recorded steps of a match, oldest first.
func (s *Service) GetReplay(ctx context.Context, matchID, playerID string) ([]replay.Step, error) {
	m, err := s.participantMatch(ctx, matchID, playerID)
	if err != nil {
		return nil, err
	}
	return append([]replay.Step{}, m.Replay...), nil
}

func (s *Service) participantMatch(ctx context.Context, matchID, playerID string) (*Match, error) {
	m, err := s.store.Match(ctx, matchID)
	if err != nil {
		return nil, errors.Wrap(err, "load match", errors.Details{"match_id": matchID})
	}
	if !m.IsParticipant(playerID) {
		return nil, errors.NewForbiddenError(errors.KindNotParticipant, "not a participant of this match",
			errors.Details{"match_id": matchID})
	}
	return m, nil
}

// ListMatches returns the matches of a player, newest first.
func (s *Service) ListMatches(ctx context.Context, playerID string) ([]View, error) {
	matches, err := s.store.MatchesByPlayer(ctx, playerID)
	if err != nil {
		return nil, errors.Wrap(err, "list matches", errors.Details{"player_id": playerID})
	}
	views := make([]View, 0, len(matches))
	for _, m := range matches {
		views = append(views, m.View())
	}
	return views, nil
}

// Leaderboard returns the highest rated players. Non-positive limits fall
// back to DefaultLeaderboardSize.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLeaderboardSize
	case limit > MaxLeaderboardSize:
		limit = MaxLeaderboardSize
	}
	entries, err := s.store.TopRatings(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "load leaderboard", nil)
	}
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].RankName = rating.RankName(entries[i].Rating)
	}
	return entries, nil
}

// PlayerStats returns the rating and win/loss/draw record of a player.
func (s *Service) PlayerStats(ctx context.Context, playerID string) (PlayerStats, error) {
	r, err := s.ratingOf(ctx, s.store, playerID)
	if err != nil {
		return PlayerStats{}, err
	}
	record, err := s.store.PlayerRecord(ctx, playerID)
	if err != nil {
		return PlayerStats{}, errors.Wrap(err, "load record", errors.Details{"player_id": playerID})
	}
	return PlayerStats{
		PlayerID: playerID,
		Rating:   r,
		RankName: rating.RankName(r),
		Record:   record,
	}, nil
}
