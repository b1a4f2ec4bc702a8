// Package matchtest provides in-memory implementations of the match
// collaborators for tests and local development.
package matchtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/match"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

type player struct {
	username string
	rating   int
}

type entry struct {
	seq   int
	match *match.Match
}

// Store is an in-memory match.Store, match.DeckLoader and replay.ArchiveSource.
// Transactions are serialized and staged until they commit.
type Store struct {
	txMu sync.Mutex

	mu         sync.RWMutex
	matches    map[string]entry
	players    map[string]player
	decks      map[string]match.Deck
	seq        int
	lostClaims int

	logger *zap.Logger
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		matches: make(map[string]entry),
		players: make(map[string]player),
		decks:   make(map[string]match.Deck),
		logger:  logger,
	}
}

// AddDeck registers a deck.
func (s *Store) AddDeck(deck match.Deck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[deck.ID] = deck
}

// AddPlayer registers a player with a rating.
func (s *Store) AddPlayer(playerID, username string, rating int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[playerID] = player{username: username, rating: rating}
}

// PutMatch stores a match as is, replacing any match with the same id.
func (s *Store) PutMatch(m *match.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(m.Clone())
}

// LoseNextClaims makes the next n claims report that another player won the race.
func (s *Store) LoseNextClaims(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lostClaims = n
}

func (s *Store) putLocked(m *match.Match) {
	e, ok := s.matches[m.ID]
	if !ok {
		s.seq++
		e.seq = s.seq
	}
	e.match = m
	s.matches[m.ID] = e
}

func (s *Store) Deck(_ context.Context, deckID string) (match.Deck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decks[deckID]
	if !ok {
		return match.Deck{}, errors.NewNotFoundError(errors.KindDeckNotFound, "deck not found", errors.Details{"deck_id": deckID})
	}
	return d, nil
}

func (s *Store) Match(_ context.Context, id string) (*match.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.matches[id]
	if !ok {
		return nil, matchNotFound(id)
	}
	return e.match.Clone(), nil
}

func (s *Store) MatchesByPlayer(_ context.Context, playerID string) ([]*match.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []entry
	for _, e := range s.matches {
		if e.match.IsParticipant(playerID) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.match.CreatedAt.Equal(b.match.CreatedAt) {
			return a.match.CreatedAt.After(b.match.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]*match.Match, len(entries))
	for i, e := range entries {
		out[i] = e.match.Clone()
	}
	return out, nil
}

func (s *Store) TopRatings(_ context.Context, limit int) ([]match.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]match.LeaderboardEntry, 0, len(s.players))
	for id, p := range s.players {
		out = append(out, match.LeaderboardEntry{PlayerID: id, Username: p.username, Rating: p.rating})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PlayerRecord(_ context.Context, playerID string) (match.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var r match.Record
	for _, e := range s.matches {
		m := e.match
		if m.Status != match.StatusFinished || !m.IsParticipant(playerID) {
			continue
		}
		switch m.WinnerID {
		case playerID:
			r.Wins++
		case "":
			r.Draws++
		default:
			r.Losses++
		}
	}
	return r, nil
}

func (s *Store) Rating(_ context.Context, playerID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	return p.rating, ok, nil
}

// PendingArchives returns finished matches that were not archived yet, oldest first.
func (s *Store) PendingArchives(_ context.Context, limit int) ([]replay.Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []entry
	for _, e := range s.matches {
		if e.match.Status == match.StatusFinished && e.match.ArchivedAt == nil {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]replay.Archive, len(entries))
	for i, e := range entries {
		out[i] = e.match.Archive()
	}
	return out, nil
}

func (s *Store) MarkArchived(_ context.Context, matchID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.matches[matchID]
	if !ok {
		return matchNotFound(matchID)
	}
	e.match.ArchivedAt = &at
	return nil
}

// WithinTx runs fn in a transaction. Writes become visible only if fn
// returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx match.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{
		store:   s,
		matches: make(map[string]*match.Match),
		ratings: make(map[string]int),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range tx.order {
		s.putLocked(tx.matches[id])
	}
	for id, r := range tx.ratings {
		p := s.players[id]
		p.rating = r
		s.players[id] = p
	}
	s.logger.Debug("transaction committed",
		zap.Int("matches", len(tx.order)),
		zap.Int("ratings", len(tx.ratings)),
	)
	return nil
}

type memTx struct {
	store   *Store
	matches map[string]*match.Match
	order   []string
	ratings map[string]int
}

func (tx *memTx) load(id string) (*match.Match, bool) {
	if m, ok := tx.matches[id]; ok {
		return m, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	e, ok := tx.store.matches[id]
	if !ok {
		return nil, false
	}
	return e.match, true
}

func (tx *memTx) stage(m *match.Match) {
	if _, ok := tx.matches[m.ID]; !ok {
		tx.order = append(tx.order, m.ID)
	}
	tx.matches[m.ID] = m.Clone()
}

func (tx *memTx) MatchForUpdate(_ context.Context, id string) (*match.Match, error) {
	m, ok := tx.load(id)
	if !ok {
		return nil, matchNotFound(id)
	}
	return m.Clone(), nil
}

func (tx *memTx) WaitingMatches(_ context.Context, q match.WaitingQuery) ([]*match.Match, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	var entries []entry
	for _, e := range tx.store.matches {
		m := e.match
		if staged, ok := tx.matches[m.ID]; ok {
			m = staged
		}
		if m.Status != match.StatusWaiting || m.Mode != q.Mode || m.Player1ID == q.ExcludePlayerID {
			continue
		}
		if q.Bounded && (m.Player1Rating < q.MinRating || m.Player1Rating > q.MaxRating) {
			continue
		}
		entries = append(entries, entry{seq: e.seq, match: m})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]*match.Match, len(entries))
	for i, e := range entries {
		out[i] = e.match.Clone()
	}
	return out, nil
}

func (tx *memTx) InsertMatch(_ context.Context, m *match.Match) error {
	if _, ok := tx.load(m.ID); ok {
		return errors.NewInternalErrorFromErr(nil, "duplicate match id", errors.Details{"match_id": m.ID})
	}
	m.Version = 1
	tx.stage(m)
	return nil
}

func (tx *memTx) ClaimWaitingMatch(_ context.Context, m *match.Match) (bool, error) {
	tx.store.mu.Lock()
	lost := tx.store.lostClaims > 0
	if lost {
		tx.store.lostClaims--
	}
	tx.store.mu.Unlock()
	if lost {
		return false, nil
	}

	current, ok := tx.load(m.ID)
	if !ok || current.Status != match.StatusWaiting || current.Version != m.Version {
		return false, nil
	}
	m.Version++
	tx.stage(m)
	return true, nil
}

func (tx *memTx) UpdateMatch(_ context.Context, m *match.Match) error {
	current, ok := tx.load(m.ID)
	if !ok {
		return matchNotFound(m.ID)
	}
	if current.Version != m.Version {
		return errors.NewInvalidStateError(errors.KindStorage, "match was modified concurrently", errors.Details{"match_id": m.ID})
	}
	m.Version++
	tx.stage(m)
	return nil
}

func (tx *memTx) Rating(ctx context.Context, playerID string) (int, bool, error) {
	if r, ok := tx.ratings[playerID]; ok {
		return r, true, nil
	}
	return tx.store.Rating(ctx, playerID)
}

func (tx *memTx) SetRatings(_ context.Context, ratings map[string]int) error {
	for id, r := range ratings {
		tx.ratings[id] = r
	}
	return nil
}

func matchNotFound(id string) error {
	return errors.NewNotFoundError(errors.KindMatchNotFound, "match not found", errors.Details{"match_id": id})
}
