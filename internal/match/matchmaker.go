package match

import (
	"context"

	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

// FindOrCreateMatch pairs the player with a random compatible waiting match,
// or opens a new waiting match when none can be claimed.
func (s *Service) FindOrCreateMatch(ctx context.Context, playerID, deckID string, mode Mode) (View, error) {
	parsed, ok := ParseMode(string(mode))
	if !ok {
		return View{}, errors.NewBadRequestError(errors.KindUnknownMode, "unknown match mode", errors.Details{"mode": string(mode)})
	}
	mode = parsed
	deck, err := s.decks.Deck(ctx, deckID)
	if err != nil {
		return View{}, errors.Wrap(err, "load deck", errors.Details{"deck_id": deckID})
	}
	if deck.OwnerID != playerID {
		return View{}, errors.NewForbiddenError(errors.KindDeckNotOwned, "deck belongs to another player", errors.Details{"deck_id": deckID})
	}

	var view View
	var paired *Match
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := s.ratingOf(ctx, tx, playerID)
		if err != nil {
			return err
		}
		candidates, err := tx.WaitingMatches(ctx, s.waitingQuery(playerID, r, mode))
		if err != nil {
			return errors.Wrap(err, "find waiting matches", nil)
		}

		for attempt := 0; attempt < s.cfg.MaxClaimAttempts && len(candidates) > 0; attempt++ {
			i := s.rng.IntN(len(candidates))
			candidate := candidates[i]
			candidates = append(candidates[:i], candidates[i+1:]...)

			m, err := s.pair(ctx, candidate, playerID, deck, r)
			if err != nil {
				errors.Log(s.logger, errors.Wrap(err, "skip waiting match", errors.Details{"match_id": candidate.ID}))
				continue
			}
			ok, err := tx.ClaimWaitingMatch(ctx, m)
			if err != nil {
				return errors.Wrap(err, "claim waiting match", errors.Details{"match_id": m.ID})
			}
			if !ok {
				s.logger.Debug("waiting match claimed by another player",
					zap.String("match_id", m.ID),
					zap.String("player_id", playerID),
				)
				continue
			}
			paired = m
			view = m.View()
			return nil
		}

		m := &Match{
			ID:            s.newID(),
			Player1ID:     playerID,
			Deck1ID:       deckID,
			Player1Rating: r,
			Mode:          mode,
			Status:        StatusWaiting,
			CreatedAt:     s.now().UTC(),
			Replay:        []replay.Step{},
		}
		if err := tx.InsertMatch(ctx, m); err != nil {
			return errors.Wrap(err, "create waiting match", nil)
		}
		view = m.View()
		return nil
	})
	if err != nil {
		return View{}, errors.Wrap(err, "find or create match", errors.Details{"player_id": playerID})
	}

	if paired != nil {
		s.logger.Info("match started",
			zap.String("match_id", paired.ID),
			zap.String("player1_id", paired.Player1ID),
			zap.String("player2_id", paired.Player2ID),
			zap.String("mode", string(mode)),
		)
		unlock := s.locks.lock(paired.ID)
		s.publish(paired.View())
		unlock()
	} else {
		s.logger.Info("match waiting for opponent",
			zap.String("match_id", view.ID),
			zap.String("player_id", playerID),
			zap.String("mode", string(mode)),
		)
	}
	return view, nil
}

// waitingQuery builds the candidate filter. Only the joiner's window is
// checked; the creator's own window is not consulted.
func (s *Service) waitingQuery(playerID string, r int, mode Mode) WaitingQuery {
	q := WaitingQuery{
		Mode:            mode,
		ExcludePlayerID: playerID,
		DefaultRating:   s.cfg.DefaultRating,
	}
	if mode == ModeRanked {
		q.Bounded = true
		q.MinRating = max(0, r-s.cfg.RatingWindow)
		q.MaxRating = r + s.cfg.RatingWindow
	}
	return q
}

// pair builds the in-progress version of a waiting match joined by playerID.
func (s *Service) pair(ctx context.Context, waiting *Match, playerID string, deck Deck, r int) (*Match, error) {
	creatorDeck, err := s.decks.Deck(ctx, waiting.Deck1ID)
	if err != nil {
		return nil, errors.Wrap(err, "load creator deck", errors.Details{"deck_id": waiting.Deck1ID})
	}

	m := waiting.Clone()
	m.Player2ID = playerID
	m.Deck2ID = deck.ID
	m.Player2Rating = r
	m.Status = StatusInProgress
	m.State = s.engine.NewGameState(
		m.Player1ID, game.FlattenDeck(creatorDeck.Slots),
		playerID, game.FlattenDeck(deck.Slots),
	)
	m.CurrentTurnPlayerID = m.State.CurrentTurnPlayerID
	m.Replay = s.recorder.Record(nil, replay.ActionInit, "", replay.InitDescription, m.State)
	return m, nil
}
