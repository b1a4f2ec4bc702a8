package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/rating"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

// Config tunes matchmaking and broadcasting.
type Config struct {
	// RatingWindow is the maximum rating distance of ranked opponents.
	RatingWindow  int
	DefaultRating int
	// MaxClaimAttempts bounds how many waiting matches a joiner tries to claim
	// before opening a match of their own.
	MaxClaimAttempts int
	PublishTimeout   time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RatingWindow:     200,
		DefaultRating:    rating.Default,
		MaxClaimAttempts: 3,
		PublishTimeout:   5 * time.Second,
	}
}

// Service is the entry point for everything a player can do with a match.
type Service struct {
	store     Store
	decks     DeckLoader
	engine    *game.Engine
	publisher Publisher
	recorder  *replay.Recorder
	cfg       Config
	rng       game.Random
	newID     func() string
	now       func() time.Time
	locks     *lockMap
	feeds     *feedMap
	logger    *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMatchmakingRandom replaces the source used to pick among candidates.
func WithMatchmakingRandom(rng game.Random) ServiceOption {
	return func(s *Service) { s.rng = rng }
}

// WithClock replaces the clock used for timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithMatchIDs replaces the match id generator.
func WithMatchIDs(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a Service. A nil publisher disables broadcasting.
func NewService(store Store, decks DeckLoader, engine *game.Engine, publisher Publisher, cfg Config, logger *zap.Logger, opts ...ServiceOption) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	defaults := DefaultConfig()
	if cfg.MaxClaimAttempts <= 0 {
		cfg.MaxClaimAttempts = defaults.MaxClaimAttempts
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaults.PublishTimeout
	}
	s := &Service{
		store:     store,
		decks:     decks,
		engine:    engine,
		publisher: publisher,
		cfg:       cfg,
		rng:       game.NewRandom(),
		newID:     uuid.NewString,
		now:       time.Now,
		locks:     newLockMap(),
		feeds:     newFeedMap(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = replay.NewRecorder(s.now)
	return s
}

// PlayCard plays a card from the player's hand.
func (s *Service) PlayCard(ctx context.Context, matchID, playerID string, req game.PlayCardRequest) (View, error) {
	return s.act(ctx, matchID, playerID, replay.ActionPlay, func(ctx context.Context, state *game.GameState) (game.Result, error) {
		return s.engine.PlayCard(ctx, state, playerID, req)
	})
}

// Attack orders one of the player's minions to attack.
func (s *Service) Attack(ctx context.Context, matchID, playerID, attackerID, targetID string) (View, error) {
	return s.act(ctx, matchID, playerID, replay.ActionAttack, func(ctx context.Context, state *game.GameState) (game.Result, error) {
		return s.engine.Attack(ctx, state, playerID, attackerID, targetID)
	})
}

// EndTurn hands the turn to the opponent.
func (s *Service) EndTurn(ctx context.Context, matchID, playerID string) (View, error) {
	return s.act(ctx, matchID, playerID, replay.ActionEndTurn, func(ctx context.Context, state *game.GameState) (game.Result, error) {
		return s.engine.EndTurn(ctx, state, playerID)
	})
}

type applyFunc func(ctx context.Context, state *game.GameState) (game.Result, error)

// act runs one in-match action. The engine works on a copy of the stored state
// so a rejected action leaves the match untouched.
func (s *Service) act(ctx context.Context, matchID, playerID string, action replay.Action, apply applyFunc) (View, error) {
	unlock := s.locks.lock(matchID)
	defer unlock()

	var view, published View
	var result game.Result
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		m, err := tx.MatchForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if !m.IsParticipant(playerID) {
			return errors.NewForbiddenError(errors.KindNotParticipant, "not a participant of this match", nil)
		}
		if m.Status != StatusInProgress {
			return errors.NewInvalidStateError(errors.KindMatchNotInProgress, "match is not in progress",
				errors.Details{"status": string(m.Status)})
		}

		state := m.State.Clone()
		result, err = apply(ctx, state)
		if err != nil {
			return err
		}

		m.State = state
		m.CurrentTurnPlayerID = state.CurrentTurnPlayerID
		m.Replay = s.recorder.Record(m.Replay, action, playerID, result.Description, state)
		if result.Finished {
			m.Status = StatusFinished
			m.WinnerID = result.WinnerID
			if err := s.settleRatings(ctx, tx, m); err != nil {
				return err
			}
		}
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return err
		}
		view = m.View()
		published = m.View()
		return nil
	})
	if err != nil {
		return View{}, errors.Wrap(err, string(action), errors.Details{"match_id": matchID, "player_id": playerID})
	}

	s.logger.Debug("match action applied",
		zap.String("match_id", matchID),
		zap.String("player_id", playerID),
		zap.String("action", string(action)),
		zap.Int("events", len(result.Events)),
	)
	if result.Finished {
		s.logger.Info("match finished",
			zap.String("match_id", matchID),
			zap.String("winner_id", result.WinnerID),
		)
	}
	s.publish(published)
	return view, nil
}

// settleRatings applies the ELO update of a ranked match that just finished.
// Current ratings are read, not the snapshots taken at pairing.
func (s *Service) settleRatings(ctx context.Context, tx Tx, m *Match) error {
	if m.Mode != ModeRanked || m.Player1ID == "" || m.Player2ID == "" {
		return nil
	}
	r1, err := s.ratingOf(ctx, tx, m.Player1ID)
	if err != nil {
		return err
	}
	r2, err := s.ratingOf(ctx, tx, m.Player2ID)
	if err != nil {
		return err
	}

	outcome := rating.Draw
	switch m.WinnerID {
	case m.Player1ID:
		outcome = rating.Player1Won
	case m.Player2ID:
		outcome = rating.Player2Won
	}
	n1, n2 := rating.Update(r1, r2, outcome)
	if err := tx.SetRatings(ctx, map[string]int{m.Player1ID: n1, m.Player2ID: n2}); err != nil {
		return errors.Wrap(err, "set ratings", nil)
	}
	s.logger.Info("ratings updated",
		zap.String("match_id", m.ID),
		zap.String("player1_id", m.Player1ID),
		zap.Int("player1_rating", n1),
		zap.String("player2_id", m.Player2ID),
		zap.Int("player2_rating", n2),
	)
	return nil
}

type ratingReader interface {
	Rating(ctx context.Context, playerID string) (int, bool, error)
}

func (s *Service) ratingOf(ctx context.Context, store ratingReader, playerID string) (int, error) {
	r, ok, err := store.Rating(ctx, playerID)
	if err != nil {
		return 0, errors.Wrap(err, "load rating", errors.Details{"player_id": playerID})
	}
	if !ok {
		return s.cfg.DefaultRating, nil
	}
	return r, nil
}
