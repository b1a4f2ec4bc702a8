package server_test

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/lotusgame/duel-server-go/internal/config"
	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/match"
	"github.com/lotusgame/duel-server-go/internal/match/matchtest"
	"github.com/lotusgame/duel-server-go/internal/replay"
	"github.com/lotusgame/duel-server-go/internal/server"
)

type zeroRandom struct{}

func (zeroRandom) IntN(int) int { return 0 }

type harness struct {
	client *server.Client
	conn   *grpc.ClientConn
	store  *matchtest.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	catalog := game.NewStaticCatalog(
		[]game.MinionCard{{ID: 1, Name: "Footman", ManaCost: 1, Attack: 3, Health: 3}},
		[]game.SpellCard{{ID: 10, Name: "Bolt", ManaCost: 1, Damage: 3}},
	)
	store := matchtest.NewStore(logger)
	for _, p := range []string{"alice", "bob", "carol"} {
		store.AddDeck(match.Deck{
			ID:      "deck-" + p,
			OwnerID: p,
			Slots: []game.DeckSlot{
				{CardRef: game.CardRef{Kind: game.CardKindMinion, CardID: 1}, Count: 15},
				{CardRef: game.CardRef{Kind: game.CardKindSpell, CardID: 10}, Count: 15},
			},
		})
	}
	ids := 0
	engine := game.NewEngine(catalog, logger, game.WithRandom(zeroRandom{}))
	svc := match.NewService(store, store, engine, matchtest.NewPublisher(), match.DefaultConfig(), logger,
		match.WithMatchmakingRandom(zeroRandom{}),
		match.WithMatchIDs(func() string {
			ids++
			return fmt.Sprintf("match-%d", ids)
		}),
	)

	lis := bufconn.Listen(1 << 20)
	srv := server.NewGRPCServer(config.GRPCConfig{MaxConcurrentStreams: 16}, svc, logger)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{client: server.NewClient(conn), conn: conn, store: store}
}

func as(playerID string) context.Context {
	return server.WithPlayerID(context.Background(), playerID)
}

func (h *harness) pair(t *testing.T) match.View {
	t.Helper()
	_, err := h.client.FindMatch(as("alice"), &server.FindMatchRequest{DeckID: "deck-alice", Mode: "CASUAL"})
	require.NoError(t, err)
	resp, err := h.client.FindMatch(as("bob"), &server.FindMatchRequest{DeckID: "deck-bob", Mode: "CASUAL"})
	require.NoError(t, err)
	require.Equal(t, match.StatusInProgress, resp.Match.Status)
	return resp.Match
}

func TestFindMatchPairsTwoPlayers(t *testing.T) {
	h := newHarness(t)

	first, err := h.client.FindMatch(as("alice"), &server.FindMatchRequest{DeckID: "deck-alice", Mode: "CASUAL"})
	require.NoError(t, err)
	assert.Equal(t, match.StatusWaiting, first.Match.Status)
	assert.Equal(t, "alice", first.Match.Player1ID)

	second, err := h.client.FindMatch(as("bob"), &server.FindMatchRequest{DeckID: "deck-bob", Mode: "CASUAL"})
	require.NoError(t, err)
	assert.Equal(t, first.Match.ID, second.Match.ID)
	assert.Equal(t, match.StatusInProgress, second.Match.Status)
	require.NotNil(t, second.Match.GameState)
	assert.Len(t, second.Match.GameState.Players, 2)
}

func TestMissingIdentityIsUnauthenticated(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.GetMatch(context.Background(), &server.MatchRequest{MatchID: "match-1"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestErrorCodesMapToStatus(t *testing.T) {
	h := newHarness(t)
	v := h.pair(t)

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{
			name: "unknown match",
			call: func() error {
				_, err := h.client.GetMatch(as("alice"), &server.MatchRequest{MatchID: "nope"})
				return err
			},
			want: codes.NotFound,
		},
		{
			name: "outsider",
			call: func() error {
				_, err := h.client.GetMatch(as("carol"), &server.MatchRequest{MatchID: v.ID})
				return err
			},
			want: codes.PermissionDenied,
		},
		{
			name: "out of turn",
			call: func() error {
				other := "alice"
				if v.CurrentTurnPlayerID == "alice" {
					other = "bob"
				}
				_, err := h.client.EndTurn(as(other), &server.MatchRequest{MatchID: v.ID})
				return err
			},
			want: codes.FailedPrecondition,
		},
		{
			name: "unknown mode",
			call: func() error {
				_, err := h.client.FindMatch(as("carol"), &server.FindMatchRequest{DeckID: "deck-carol", Mode: "BLITZ"})
				return err
			},
			want: codes.InvalidArgument,
		},
		{
			name: "foreign deck",
			call: func() error {
				_, err := h.client.FindMatch(as("carol"), &server.FindMatchRequest{DeckID: "deck-alice", Mode: "CASUAL"})
				return err
			},
			want: codes.PermissionDenied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestEndTurnAndReplay(t *testing.T) {
	h := newHarness(t)
	v := h.pair(t)

	resp, err := h.client.EndTurn(as(v.CurrentTurnPlayerID), &server.MatchRequest{MatchID: v.ID})
	require.NoError(t, err)
	assert.NotEqual(t, v.CurrentTurnPlayerID, resp.Match.CurrentTurnPlayerID)

	replayResp, err := h.client.GetReplay(as("alice"), &server.MatchRequest{MatchID: v.ID})
	require.NoError(t, err)
	require.Len(t, replayResp.Steps, 2)
	assert.Equal(t, replay.ActionInit, replayResp.Steps[0].Action)
	assert.Equal(t, replay.ActionEndTurn, replayResp.Steps[1].Action)
	assert.Equal(t, 1, replayResp.Steps[1].Index)

	list, err := h.client.ListMatches(as("bob"), &server.ListMatchesRequest{})
	require.NoError(t, err)
	require.Len(t, list.Matches, 1)
	assert.Equal(t, v.ID, list.Matches[0].ID)
}

func TestLeaderboardAndStats(t *testing.T) {
	h := newHarness(t)
	h.store.AddPlayer("alice", "Alice", 1500)
	h.store.AddPlayer("bob", "Bob", 1100)

	board, err := h.client.Leaderboard(as("carol"), &server.LeaderboardRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "alice", board.Entries[0].PlayerID)
	assert.Equal(t, 1, board.Entries[0].Rank)

	stats, err := h.client.PlayerStats(as("bob"), &server.PlayerStatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, "bob", stats.Stats.PlayerID)
	assert.Equal(t, 1100, stats.Stats.Rating)
}

func TestHealthReportsServing(t *testing.T) {
	h := newHarness(t)

	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: server.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestHealthOverJSONCodec(t *testing.T) {
	h := newHarness(t)

	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: server.ServiceName},
		grpc.CallContentSubtype(server.CodecName))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	_, err = healthpb.NewHealthClient(h.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: "unknown.Service"},
		grpc.CallContentSubtype(server.CodecName))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestFindMatchModeIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)

	first, err := h.client.FindMatch(as("alice"), &server.FindMatchRequest{DeckID: "deck-alice", Mode: "ranked"})
	require.NoError(t, err)
	assert.Equal(t, match.ModeRanked, first.Match.Mode)

	second, err := h.client.FindMatch(as("bob"), &server.FindMatchRequest{DeckID: "deck-bob"})
	require.NoError(t, err)
	assert.Equal(t, first.Match.ID, second.Match.ID)
	assert.Equal(t, match.StatusInProgress, second.Match.Status)
}
