package repository

import (
	"context"
	"encoding/json"
	nativeerrors "errors"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/gobuffalo/nulls"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/match"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

const (
	matchesTable = "matches"
	usersTable   = "users"
)

var matchColumns = []any{
	"id", "player1_id", "player2_id", "deck1_id", "deck2_id",
	"player1_rating", "player2_rating", "mode", "status", "winner_id",
	"current_turn_player_id", "created_at", "game_state", "replay",
	"version", "archived_at",
}

// matchRow is the column layout of the matches table.
type matchRow struct {
	ID                  string
	Player1ID           string
	Player2ID           nulls.String
	Deck1ID             string
	Deck2ID             nulls.String
	Player1Rating       nulls.Int
	Player2Rating       nulls.Int
	Mode                string
	Status              string
	WinnerID            nulls.String
	CurrentTurnPlayerID nulls.String
	CreatedAt           time.Time
	GameState           []byte
	Replay              []byte
	Version             int64
	ArchivedAt          nulls.Time
}

// dest returns the scan targets in matchColumns order.
func (r *matchRow) dest() []any {
	return []any{
		&r.ID, &r.Player1ID, &r.Player2ID, &r.Deck1ID, &r.Deck2ID,
		&r.Player1Rating, &r.Player2Rating, &r.Mode, &r.Status, &r.WinnerID,
		&r.CurrentTurnPlayerID, &r.CreatedAt, &r.GameState, &r.Replay,
		&r.Version, &r.ArchivedAt,
	}
}

func nullString(s string) nulls.String {
	if s == "" {
		return nulls.String{}
	}
	return nulls.NewString(s)
}

func newMatchRow(m *match.Match) (matchRow, error) {
	r := matchRow{
		ID:                  m.ID,
		Player1ID:           m.Player1ID,
		Player2ID:           nullString(m.Player2ID),
		Deck1ID:             m.Deck1ID,
		Deck2ID:             nullString(m.Deck2ID),
		Player1Rating:       nulls.NewInt(m.Player1Rating),
		Mode:                string(m.Mode),
		Status:              string(m.Status),
		WinnerID:            nullString(m.WinnerID),
		CurrentTurnPlayerID: nullString(m.CurrentTurnPlayerID),
		CreatedAt:           m.CreatedAt,
		Version:             m.Version,
	}
	if m.Player2ID != "" {
		r.Player2Rating = nulls.NewInt(m.Player2Rating)
	}
	if m.ArchivedAt != nil {
		r.ArchivedAt = nulls.NewTime(*m.ArchivedAt)
	}
	if m.State != nil {
		state, err := json.Marshal(m.State)
		if err != nil {
			return matchRow{}, errors.Error{Code: errors.ErrInternal, Kind: errors.KindEncodeJSON, Err: err,
				Message: "encode game state", Details: errors.Details{"match_id": m.ID}}
		}
		r.GameState = state
	}
	steps := m.Replay
	if steps == nil {
		steps = []replay.Step{}
	}
	encoded, err := json.Marshal(steps)
	if err != nil {
		return matchRow{}, errors.Error{Code: errors.ErrInternal, Kind: errors.KindEncodeJSON, Err: err,
			Message: "encode replay", Details: errors.Details{"match_id": m.ID}}
	}
	r.Replay = encoded
	return r, nil
}

func (r matchRow) toMatch() (*match.Match, error) {
	m := &match.Match{
		ID:                  r.ID,
		Player1ID:           r.Player1ID,
		Player2ID:           r.Player2ID.String,
		Deck1ID:             r.Deck1ID,
		Deck2ID:             r.Deck2ID.String,
		Player1Rating:       r.Player1Rating.Int,
		Player2Rating:       r.Player2Rating.Int,
		Mode:                match.Mode(r.Mode),
		Status:              match.Status(r.Status),
		WinnerID:            r.WinnerID.String,
		CurrentTurnPlayerID: r.CurrentTurnPlayerID.String,
		CreatedAt:           r.CreatedAt,
		Version:             r.Version,
	}
	if r.ArchivedAt.Valid {
		at := r.ArchivedAt.Time
		m.ArchivedAt = &at
	}
	if len(r.GameState) > 0 {
		var state game.GameState
		if err := json.Unmarshal(r.GameState, &state); err != nil {
			return nil, errors.Error{Code: errors.ErrInternal, Kind: errors.KindDecodeJSON, Err: err,
				Message: "decode game state", Details: errors.Details{"match_id": r.ID}}
		}
		m.State = &state
	}
	if len(r.Replay) > 0 {
		if err := json.Unmarshal(r.Replay, &m.Replay); err != nil {
			return nil, errors.Error{Code: errors.ErrInternal, Kind: errors.KindDecodeJSON, Err: err,
				Message: "decode replay", Details: errors.Details{"match_id": r.ID}}
		}
	}
	return m, nil
}

// record returns the writable columns of the row.
func (r matchRow) record() goqu.Record {
	var state any
	if r.GameState != nil {
		state = string(r.GameState)
	}
	return goqu.Record{
		"id":                     r.ID,
		"player1_id":             r.Player1ID,
		"player2_id":             r.Player2ID,
		"deck1_id":               r.Deck1ID,
		"deck2_id":               r.Deck2ID,
		"player1_rating":         r.Player1Rating,
		"player2_rating":         r.Player2Rating,
		"mode":                   r.Mode,
		"status":                 r.Status,
		"winner_id":              r.WinnerID,
		"current_turn_player_id": r.CurrentTurnPlayerID,
		"created_at":             r.CreatedAt,
		"game_state":             state,
		"replay":                 string(r.Replay),
		"version":                r.Version,
		"archived_at":            r.ArchivedAt,
	}
}

func selectMatchQuery(id string, forUpdate bool) (string, []any, error) {
	ds := dialect.From(matchesTable).Prepared(true).
		Select(matchColumns...).
		Where(goqu.C("id").Eq(id))
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}
	return ds.ToSQL()
}

// waitingMatchesQuery selects open matches oldest first. Creators without a
// rating count as q.DefaultRating.
func waitingMatchesQuery(q match.WaitingQuery) (string, []any, error) {
	where := []exp.Expression{
		goqu.C("status").Eq(string(match.StatusWaiting)),
		goqu.C("mode").Eq(string(q.Mode)),
		goqu.C("player1_id").Neq(q.ExcludePlayerID),
	}
	if q.Bounded {
		where = append(where, goqu.COALESCE(goqu.C("player1_rating"), q.DefaultRating).
			Between(goqu.Range(q.MinRating, q.MaxRating)))
	}
	return dialect.From(matchesTable).Prepared(true).
		Select(matchColumns...).
		Where(where...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		ToSQL()
}

func insertMatchQuery(r matchRow) (string, []any, error) {
	return dialect.Insert(matchesTable).Prepared(true).Rows(r.record()).ToSQL()
}

// claimMatchQuery overwrites a waiting match only if nobody changed it since
// it was read at expectedVersion.
func claimMatchQuery(r matchRow, expectedVersion int64) (string, []any, error) {
	return dialect.Update(matchesTable).Prepared(true).
		Set(r.record()).
		Where(
			goqu.C("id").Eq(r.ID),
			goqu.C("status").Eq(string(match.StatusWaiting)),
			goqu.C("version").Eq(expectedVersion),
		).ToSQL()
}

func updateMatchQuery(r matchRow, expectedVersion int64) (string, []any, error) {
	return dialect.Update(matchesTable).Prepared(true).
		Set(r.record()).
		Where(
			goqu.C("id").Eq(r.ID),
			goqu.C("version").Eq(expectedVersion),
		).ToSQL()
}

func matchesByPlayerQuery(playerID string) (string, []any, error) {
	return dialect.From(matchesTable).Prepared(true).
		Select(matchColumns...).
		Where(goqu.Or(
			goqu.C("player1_id").Eq(playerID),
			goqu.C("player2_id").Eq(playerID),
		)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		ToSQL()
}

func topRatingsQuery(limit int) (string, []any, error) {
	return dialect.From(usersTable).Prepared(true).
		Select("id", "username", "rating").
		Where(goqu.C("rating").IsNotNull()).
		Order(goqu.C("rating").Desc(), goqu.C("id").Asc()).
		Limit(uint(limit)).
		ToSQL()
}

func playerRecordQuery(playerID string) (string, []any, error) {
	return dialect.From(matchesTable).Prepared(true).
		Select(
			goqu.L("COUNT(*) FILTER (WHERE winner_id = ?)", playerID),
			goqu.L("COUNT(*) FILTER (WHERE winner_id <> ?)", playerID),
			goqu.L("COUNT(*) FILTER (WHERE winner_id IS NULL)"),
		).
		Where(
			goqu.C("status").Eq(string(match.StatusFinished)),
			goqu.Or(
				goqu.C("player1_id").Eq(playerID),
				goqu.C("player2_id").Eq(playerID),
			),
		).ToSQL()
}

func ratingQuery(playerID string) (string, []any, error) {
	return dialect.From(usersTable).Prepared(true).
		Select("rating").
		Where(goqu.C("id").Eq(playerID)).
		ToSQL()
}

// upsertRatingQuery sets the rating of a player. Players unknown to the users
// table are created with their id as username.
func upsertRatingQuery(playerID string, rating int) (string, []any, error) {
	return dialect.Insert(usersTable).Prepared(true).
		Rows(goqu.Record{"id": playerID, "username": playerID, "rating": rating}).
		OnConflict(goqu.DoUpdate("id", goqu.Record{"rating": goqu.L("EXCLUDED.rating")})).
		ToSQL()
}

func pendingArchivesQuery(limit int) (string, []any, error) {
	return dialect.From(matchesTable).Prepared(true).
		Select(matchColumns...).
		Where(
			goqu.C("status").Eq(string(match.StatusFinished)),
			goqu.C("archived_at").IsNull(),
		).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).
		ToSQL()
}

func markArchivedQuery(matchID string, at time.Time) (string, []any, error) {
	return dialect.Update(matchesTable).Prepared(true).
		Set(goqu.Record{"archived_at": at}).
		Where(goqu.C("id").Eq(matchID)).
		ToSQL()
}

// MatchStore is the PostgreSQL match.Store. It also serves finished matches to
// the replay archiver.
type MatchStore struct {
	db     *DB
	logger *zap.Logger
}

func NewMatchStore(db *DB, logger *zap.Logger) *MatchStore {
	return &MatchStore{db: db, logger: logger.Named("match-store")}
}

// WithinTx runs fn in a database transaction. Matches loaded through
// Tx.MatchForUpdate stay locked until the transaction ends.
func (s *MatchStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx match.Tx) error) error {
	return withTx(ctx, s.db.Pool, s.logger, func(tx pgx.Tx) error {
		return fn(ctx, &matchTx{tx: tx})
	})
}

func (s *MatchStore) Match(ctx context.Context, id string) (*match.Match, error) {
	return getMatch(ctx, s.db, id, false)
}

func (s *MatchStore) MatchesByPlayer(ctx context.Context, playerID string) ([]*match.Match, error) {
	q, args, err := matchesByPlayerQuery(playerID)
	if err != nil {
		return nil, errors.NewQueryToSQLError(err, errors.Details{"player_id": playerID})
	}
	return queryMatches(ctx, s.db, q, args)
}

func (s *MatchStore) TopRatings(ctx context.Context, limit int) ([]match.LeaderboardEntry, error) {
	q, args, err := topRatingsQuery(limit)
	if err != nil {
		return nil, errors.NewQueryToSQLError(err, errors.Details{"limit": limit})
	}
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.NewDBError(err, "query top ratings", q)
	}
	defer rows.Close()
	entries := make([]match.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e match.LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Username, &e.Rating); err != nil {
			return nil, errors.NewDBError(err, "scan top rating", q)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError(err, "iterate top ratings", q)
	}
	return entries, nil
}

func (s *MatchStore) PlayerRecord(ctx context.Context, playerID string) (match.Record, error) {
	q, args, err := playerRecordQuery(playerID)
	if err != nil {
		return match.Record{}, errors.NewQueryToSQLError(err, errors.Details{"player_id": playerID})
	}
	var r match.Record
	if err := s.db.QueryRow(ctx, q, args...).Scan(&r.Wins, &r.Losses, &r.Draws); err != nil {
		return match.Record{}, errors.NewDBError(err, "scan player record", q)
	}
	return r, nil
}

func (s *MatchStore) Rating(ctx context.Context, playerID string) (int, bool, error) {
	return getRating(ctx, s.db, playerID)
}

// PendingArchives returns finished matches that were not archived yet, oldest
// first.
func (s *MatchStore) PendingArchives(ctx context.Context, limit int) ([]replay.Archive, error) {
	q, args, err := pendingArchivesQuery(limit)
	if err != nil {
		return nil, errors.NewQueryToSQLError(err, errors.Details{"limit": limit})
	}
	matches, err := queryMatches(ctx, s.db, q, args)
	if err != nil {
		return nil, err
	}
	archives := make([]replay.Archive, len(matches))
	for i, m := range matches {
		archives[i] = m.Archive()
	}
	return archives, nil
}

func (s *MatchStore) MarkArchived(ctx context.Context, matchID string, at time.Time) error {
	q, args, err := markArchivedQuery(matchID, at)
	if err != nil {
		return errors.NewQueryToSQLError(err, errors.Details{"match_id": matchID})
	}
	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return errors.NewDBError(err, "mark archived", q)
	}
	if tag.RowsAffected() != 1 {
		return matchNotFound(matchID)
	}
	return nil
}

// matchTx implements match.Tx on a pgx transaction.
type matchTx struct {
	tx pgx.Tx
}

func (t *matchTx) MatchForUpdate(ctx context.Context, id string) (*match.Match, error) {
	return getMatch(ctx, t.tx, id, true)
}

func (t *matchTx) WaitingMatches(ctx context.Context, wq match.WaitingQuery) ([]*match.Match, error) {
	q, args, err := waitingMatchesQuery(wq)
	if err != nil {
		return nil, errors.NewQueryToSQLError(err, errors.Details{"mode": wq.Mode})
	}
	return queryMatches(ctx, t.tx, q, args)
}

func (t *matchTx) InsertMatch(ctx context.Context, m *match.Match) error {
	m.Version = 1
	r, err := newMatchRow(m)
	if err != nil {
		return err
	}
	q, args, err := insertMatchQuery(r)
	if err != nil {
		return errors.NewQueryToSQLError(err, errors.Details{"match_id": m.ID})
	}
	if _, err := t.tx.Exec(ctx, q, args...); err != nil {
		return errors.NewDBError(err, "insert match", q)
	}
	return nil
}

func (t *matchTx) ClaimWaitingMatch(ctx context.Context, m *match.Match) (bool, error) {
	r, err := newMatchRow(m)
	if err != nil {
		return false, err
	}
	r.Version = m.Version + 1
	q, args, err := claimMatchQuery(r, m.Version)
	if err != nil {
		return false, errors.NewQueryToSQLError(err, errors.Details{"match_id": m.ID})
	}
	tag, err := t.tx.Exec(ctx, q, args...)
	if err != nil {
		return false, errors.NewDBError(err, "claim match", q)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	m.Version = r.Version
	return true, nil
}

func (t *matchTx) UpdateMatch(ctx context.Context, m *match.Match) error {
	r, err := newMatchRow(m)
	if err != nil {
		return err
	}
	r.Version = m.Version + 1
	q, args, err := updateMatchQuery(r, m.Version)
	if err != nil {
		return errors.NewQueryToSQLError(err, errors.Details{"match_id": m.ID})
	}
	tag, err := t.tx.Exec(ctx, q, args...)
	if err != nil {
		return errors.NewDBError(err, "update match", q)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewInvalidStateError(errors.KindStorage, "match was modified concurrently",
			errors.Details{"match_id": m.ID, "version": m.Version})
	}
	m.Version = r.Version
	return nil
}

func (t *matchTx) Rating(ctx context.Context, playerID string) (int, bool, error) {
	return getRating(ctx, t.tx, playerID)
}

func (t *matchTx) SetRatings(ctx context.Context, ratings map[string]int) error {
	ids := make([]string, 0, len(ratings))
	for id := range ratings {
		ids = append(ids, id)
	}
	// User rows are always locked in id order.
	sort.Strings(ids)
	for _, id := range ids {
		q, args, err := upsertRatingQuery(id, ratings[id])
		if err != nil {
			return errors.NewQueryToSQLError(err, errors.Details{"player_id": id})
		}
		if _, err := t.tx.Exec(ctx, q, args...); err != nil {
			return errors.NewDBError(err, "set rating", q)
		}
	}
	return nil
}

func getMatch(ctx context.Context, db querier, id string, forUpdate bool) (*match.Match, error) {
	q, args, err := selectMatchQuery(id, forUpdate)
	if err != nil {
		return nil, errors.NewQueryToSQLError(err, errors.Details{"match_id": id})
	}
	var r matchRow
	if err := db.QueryRow(ctx, q, args...).Scan(r.dest()...); err != nil {
		if nativeerrors.Is(err, pgx.ErrNoRows) {
			return nil, matchNotFound(id)
		}
		return nil, errors.NewDBError(err, "select match", q)
	}
	return r.toMatch()
}

func queryMatches(ctx context.Context, db querier, q string, args []any) ([]*match.Match, error) {
	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.NewDBError(err, "query matches", q)
	}
	defer rows.Close()
	var matches []*match.Match
	for rows.Next() {
		var r matchRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, errors.NewDBError(err, "scan match", q)
		}
		m, err := r.toMatch()
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError(err, "iterate matches", q)
	}
	return matches, nil
}

func getRating(ctx context.Context, db querier, playerID string) (int, bool, error) {
	q, args, err := ratingQuery(playerID)
	if err != nil {
		return 0, false, errors.NewQueryToSQLError(err, errors.Details{"player_id": playerID})
	}
	var rating nulls.Int
	if err := db.QueryRow(ctx, q, args...).Scan(&rating); err != nil {
		if nativeerrors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, errors.NewDBError(err, "select rating", q)
	}
	return rating.Int, rating.Valid, nil
}

func matchNotFound(id string) error {
	return errors.NewNotFoundError(errors.KindMatchNotFound, "match not found", errors.Details{"match_id": id})
}
