package match

import (
	"context"

	"github.com/lotusgame/duel-server-go/internal/game"
)

// Deck is a saved deck as stored by the deck service.
type Deck struct {
	ID      string
	OwnerID string
	Slots   []game.DeckSlot
}

// DeckLoader reads saved decks. Unknown decks yield an errors.ErrNotFound error.
type DeckLoader interface {
	Deck(ctx context.Context, deckID string) (Deck, error)
}

// RatingStore reads and writes player ratings. Rating reports false for
// players that have no rating yet.
type RatingStore interface {
	Rating(ctx context.Context, playerID string) (int, bool, error)
	SetRatings(ctx context.Context, ratings map[string]int) error
}

// WaitingQuery selects open matches a joiner may be paired with.
type WaitingQuery struct {
	Mode Mode
	// ExcludePlayerID drops matches created by the joiner.
	ExcludePlayerID string
	// Bounded restricts the creator rating to [MinRating, MaxRating]. Creators
	// without a rating count as DefaultRating.
	Bounded       bool
	MinRating     int
	MaxRating     int
	DefaultRating int
}

// Tx is the unit of work for one action. Every write made through a Tx is
// committed together or not at all.
type Tx interface {
	RatingStore

	// MatchForUpdate loads a match and locks it until the transaction ends.
	MatchForUpdate(ctx context.Context, id string) (*Match, error)
	WaitingMatches(ctx context.Context, q WaitingQuery) ([]*Match, error)
	InsertMatch(ctx context.Context, m *Match) error
	// ClaimWaitingMatch stores m only if the row is still WAITING at m.Version.
	// It reports false when another joiner got there first.
	ClaimWaitingMatch(ctx context.Context, m *Match) (bool, error)
	UpdateMatch(ctx context.Context, m *Match) error
}

// Store persists matches.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Match(ctx context.Context, id string) (*Match, error)
	// MatchesByPlayer returns the matches of a player, newest first.
	MatchesByPlayer(ctx context.Context, playerID string) ([]*Match, error)
	TopRatings(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	PlayerRecord(ctx context.Context, playerID string) (Record, error)
	Rating(ctx context.Context, playerID string) (int, bool, error)
}

// Publisher pushes match updates to connected clients.
type Publisher interface {
	Publish(ctx context.Context, matchID string, view View) error
}
