package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/match"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

func sampleMatch(t *testing.T) *match.Match {
	t.Helper()
	catalog := game.NewStaticCatalog([]game.MinionCard{{ID: 1, Name: "Footman", ManaCost: 1, Attack: 1, Health: 2}}, nil)
	engine := game.NewEngine(catalog, zaptest.NewLogger(t))
	deck := game.FlattenDeck([]game.DeckSlot{{CardRef: game.CardRef{Kind: game.CardKindMinion, CardID: 1}, Count: 8}})
	state := engine.NewGameState("alice", deck, "bob", append([]game.CardRef(nil), deck...))

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	steps := replay.NewRecorder(func() time.Time { return created.Add(time.Minute) }).
		Record(nil, replay.ActionInit, "", replay.InitDescription, state)

	return &match.Match{
		ID:                  "m1",
		Player1ID:           "alice",
		Player2ID:           "bob",
		Deck1ID:             "deck-alice",
		Deck2ID:             "deck-bob",
		Player1Rating:       1010,
		Player2Rating:       990,
		Mode:                match.ModeRanked,
		Status:              match.StatusInProgress,
		CurrentTurnPlayerID: "alice",
		CreatedAt:           created,
		State:               state,
		Replay:              steps,
		Version:             2,
	}
}

func TestMatchRowRoundTrip(t *testing.T) {
	m := sampleMatch(t)

	r, err := newMatchRow(m)
	require.NoError(t, err)
	assert.True(t, r.Player2ID.Valid)
	assert.True(t, r.Player2Rating.Valid)
	assert.False(t, r.WinnerID.Valid)
	assert.False(t, r.ArchivedAt.Valid)

	got, err := r.toMatch()
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Player2ID, got.Player2ID)
	assert.Equal(t, m.Player2Rating, got.Player2Rating)
	assert.Equal(t, m.Status, got.Status)
	assert.Equal(t, "", got.WinnerID)
	assert.Equal(t, m.Version, got.Version)
	assert.Nil(t, got.ArchivedAt)
	require.NotNil(t, got.State)
	assert.Equal(t, m.State.Checksum(), got.State.Checksum())
	require.Len(t, got.Replay, 1)
	assert.NoError(t, replay.Verify(got.Replay))
}

func TestWaitingMatchRowHasNullColumns(t *testing.T) {
	m := &match.Match{
		ID:            "m2",
		Player1ID:     "alice",
		Deck1ID:       "deck-alice",
		Player1Rating: 1000,
		Mode:          match.ModeCasual,
		Status:        match.StatusWaiting,
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	r, err := newMatchRow(m)
	require.NoError(t, err)
	assert.False(t, r.Player2ID.Valid)
	assert.False(t, r.Deck2ID.Valid)
	assert.False(t, r.Player2Rating.Valid)
	assert.Nil(t, r.GameState)
	assert.JSONEq(t, "[]", string(r.Replay))
	assert.Nil(t, r.record()["game_state"])

	got, err := r.toMatch()
	require.NoError(t, err)
	assert.Nil(t, got.State)
	assert.Empty(t, got.Replay)
	assert.Equal(t, "", got.Player2ID)
}

func TestSelectMatchQuery(t *testing.T) {
	q, args, err := selectMatchQuery("m1", false)
	require.NoError(t, err)
	assert.Contains(t, q, `FROM "matches"`)
	assert.Contains(t, q, `"id" = $1`)
	assert.NotContains(t, q, "FOR UPDATE")
	assert.Equal(t, []any{"m1"}, args)

	q, _, err = selectMatchQuery("m1", true)
	require.NoError(t, err)
	assert.Contains(t, q, "FOR UPDATE")
}

func TestWaitingMatchesQuery(t *testing.T) {
	q, args, err := waitingMatchesQuery(match.WaitingQuery{
		Mode:            match.ModeRanked,
		ExcludePlayerID: "alice",
		Bounded:         true,
		MinRating:       800,
		MaxRating:       1200,
		DefaultRating:   1000,
	})
	require.NoError(t, err)
	assert.Contains(t, q, `COALESCE("player1_rating", $4)`)
	assert.Contains(t, q, "BETWEEN $5 AND $6")
	assert.Contains(t, q, `"player1_id" != $3`)
	assert.Contains(t, q, `ORDER BY "created_at" ASC`)
	require.Len(t, args, 6)
	assert.Equal(t, "WAITING", args[0])
	assert.Equal(t, "RANKED", args[1])
	assert.Equal(t, "alice", args[2])
	assert.EqualValues(t, 1000, args[3])
	assert.EqualValues(t, 800, args[4])
	assert.EqualValues(t, 1200, args[5])

	q, args, err = waitingMatchesQuery(match.WaitingQuery{Mode: match.ModeCasual, ExcludePlayerID: "alice"})
	require.NoError(t, err)
	assert.NotContains(t, q, "BETWEEN")
	assert.Len(t, args, 3)
}

func TestClaimMatchQueryIsConditional(t *testing.T) {
	r, err := newMatchRow(sampleMatch(t))
	require.NoError(t, err)
	r.Version = 3

	q, args, err := claimMatchQuery(r, 2)
	require.NoError(t, err)
	assert.Contains(t, q, `UPDATE "matches" SET`)
	assert.Contains(t, q, `"status" = $`)
	assert.Contains(t, q, `"version" = $`)
	require.GreaterOrEqual(t, len(args), 3)
	tail := args[len(args)-3:]
	assert.Equal(t, "m1", tail[0])
	assert.Equal(t, "WAITING", tail[1])
	assert.EqualValues(t, 2, tail[2])
}

func TestUpdateMatchQueryChecksVersion(t *testing.T) {
	r, err := newMatchRow(sampleMatch(t))
	require.NoError(t, err)

	q, args, err := updateMatchQuery(r, 2)
	require.NoError(t, err)
	assert.NotContains(t, q, `"status" = $`)
	assert.Contains(t, q, `"version" = $`)
	assert.EqualValues(t, 2, args[len(args)-1])
	assert.Equal(t, "m1", args[len(args)-2])
}

func TestPlayerRecordQuery(t *testing.T) {
	q, args, err := playerRecordQuery("alice")
	require.NoError(t, err)
	assert.Contains(t, q, "COUNT(*) FILTER (WHERE winner_id = $1)")
	assert.Contains(t, q, "COUNT(*) FILTER (WHERE winner_id IS NULL)")
	assert.Contains(t, q, `"status" = $3`)
	assert.Equal(t, []any{"alice", "alice", "FINISHED", "alice", "alice"}, args)
}

func TestTopRatingsQuery(t *testing.T) {
	q, args, err := topRatingsQuery(10)
	require.NoError(t, err)
	assert.Contains(t, q, `"rating" IS NOT NULL`)
	assert.Contains(t, q, `ORDER BY "rating" DESC, "id" ASC`)
	assert.Contains(t, q, "LIMIT $1")
	require.Len(t, args, 1)
	assert.EqualValues(t, 10, args[0])
}

func TestUpsertRatingQueryKeepsUsername(t *testing.T) {
	q, _, err := upsertRatingQuery("alice", 1016)
	require.NoError(t, err)
	assert.Contains(t, q, `ON CONFLICT (id) DO UPDATE SET "rating"=EXCLUDED.rating`)
	assert.NotContains(t, q, `"username"=`)
}

func TestPendingArchivesQuery(t *testing.T) {
	q, _, err := pendingArchivesQuery(25)
	require.NoError(t, err)
	assert.Contains(t, q, `"archived_at" IS NULL`)
	assert.Contains(t, q, `"status" = $1`)
}

func TestUpsertMinionQueryEncodesEffects(t *testing.T) {
	q, args, err := upsertMinionQuery(game.MinionCard{
		Name:      "Harvest Golem",
		ManaCost:  3,
		Attack:    2,
		Health:    3,
		Battlecry: &game.Effect{Type: "DAMAGE", Value: 1, Target: "ENEMY_HERO"},
	})
	require.NoError(t, err)
	assert.Contains(t, q, `ON CONFLICT (name) DO UPDATE`)
	assert.Contains(t, q, `RETURNING "id"`)
	assert.Contains(t, args, `{"type":"DAMAGE","value":1,"target":"ENEMY_HERO"}`)
}

func TestDecodeEffect(t *testing.T) {
	e, err := decodeEffect(nil)
	require.NoError(t, err)
	assert.Nil(t, e)

	e, err = decodeEffect([]byte(`{"type":"SUMMON","summonCardId":7}`))
	require.NoError(t, err)
	assert.Equal(t, &game.Effect{Type: "SUMMON", SummonCardID: 7}, e)

	_, err = decodeEffect([]byte(`{`))
	assert.Error(t, err)
}

func TestDeckSlotsQueryOrdersByPosition(t *testing.T) {
	q, args, err := deckSlotsQuery("deck-alice")
	require.NoError(t, err)
	assert.Contains(t, q, `ORDER BY "position" ASC`)
	assert.Equal(t, []any{"deck-alice"}, args)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "0001_init", migrations[0].version)
	assert.Contains(t, migrations[0].up, "CREATE TABLE IF NOT EXISTS matches")
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].version, migrations[i].version)
	}
}
