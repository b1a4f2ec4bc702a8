// Package server exposes the match service over gRPC.
package server

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/match"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "duel.v1.DuelService"

// Matches is the part of match.Service the transports use.
type Matches interface {
	FindOrCreateMatch(ctx context.Context, playerID, deckID string, mode match.Mode) (match.View, error)
	GetMatch(ctx context.Context, matchID, playerID string) (match.View, error)
	GetReplay(ctx context.Context, matchID, playerID string) ([]replay.Step, error)
	ListMatches(ctx context.Context, playerID string) ([]match.View, error)
	PlayCard(ctx context.Context, matchID, playerID string, req game.PlayCardRequest) (match.View, error)
	Attack(ctx context.Context, matchID, playerID, attackerID, targetID string) (match.View, error)
	EndTurn(ctx context.Context, matchID, playerID string) (match.View, error)
	Leaderboard(ctx context.Context, limit int) ([]match.LeaderboardEntry, error)
	PlayerStats(ctx context.Context, playerID string) (match.PlayerStats, error)
}

// DuelServiceServer is the server API of DuelService.
type DuelServiceServer interface {
	FindMatch(context.Context, *FindMatchRequest) (*MatchResponse, error)
	GetMatch(context.Context, *MatchRequest) (*MatchResponse, error)
	GetReplay(context.Context, *MatchRequest) (*ReplayResponse, error)
	ListMatches(context.Context, *ListMatchesRequest) (*MatchListResponse, error)
	PlayCard(context.Context, *PlayCardRequest) (*MatchResponse, error)
	Attack(context.Context, *AttackRequest) (*MatchResponse, error)
	EndTurn(context.Context, *MatchRequest) (*MatchResponse, error)
	Leaderboard(context.Context, *LeaderboardRequest) (*LeaderboardResponse, error)
	PlayerStats(context.Context, *PlayerStatsRequest) (*PlayerStatsResponse, error)
}

// duelServer implements DuelServiceServer on top of the match service.
type duelServer struct {
	matches Matches
	logger  *zap.Logger
}

// NewDuelServer creates the DuelService implementation.
func NewDuelServer(matches Matches, logger *zap.Logger) DuelServiceServer {
	return &duelServer{matches: matches, logger: logger.Named("grpc")}
}

// RegisterDuelServiceServer registers srv with s.
func RegisterDuelServiceServer(s grpc.ServiceRegistrar, srv DuelServiceServer) {
	s.RegisterService(&DuelServiceDesc, srv)
}

func callerID(ctx context.Context) (string, error) {
	playerID, ok := PlayerIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing player identity")
	}
	return playerID, nil
}

func (s *duelServer) FindMatch(ctx context.Context, req *FindMatchRequest) (*MatchResponse, error) {
	playerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.matches.FindOrCreateMatch(ctx, playerID, req.DeckID, match.Mode(req.Mode))
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return &MatchResponse{Match: view}, nil
}

func (s *duelServer) GetMatch(ctx context.Context, req *MatchRequest) (*MatchResponse, error) {
	playerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.matches.GetMatch(ctx, req.MatchID, playerID)
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return &MatchResponse{Match: view}, nil
}

func (s *duelServer) GetReplay(ctx context.Context, req *MatchRequest) (*ReplayResponse, error) {
	playerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	steps, err := s.matches.GetReplay(ctx, req.MatchID, playerID)
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return &ReplayResponse{Steps: steps}, nil
}

func (s *duelServer) ListMatches(ctx context.Context, _ *ListMatchesRequest) (*MatchListResponse, error) {
	playerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	views, err := s.matches.ListMatches(ctx, playerID)
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return &MatchListResponse{Matches: views}, nil
}

func (s *duelServer) PlayCard(ctx context.Context, req *PlayCardRequest) (*MatchResponse, error) {
	playerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.matches.PlayCard(ctx, req.MatchID, playerID, game.PlayCardRequest{
		InstanceID:     req.InstanceID,
		TargetPosition: req.TargetPosition,
		TargetID:       req.TargetID,
	})
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return &MatchResponse{Match: view}, nil
}

func (s *duelServer) Attack(ctx context.Context, req *AttackRequest) (*MatchResponse, error) {
	playerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.matches.Attack(ctx, req.MatchID, playerID, req.AttackerID, req.TargetID)
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return &MatchResponse{Match: view}, nil
}

func (s *duelServer) EndTurn(ctx context.Context, req *MatchRequest) (*MatchResponse, error) {
	playerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.matches.EndTurn(ctx, req.MatchID, playerID)
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return &MatchResponse{Match: view}, nil
}

func (s *duelServer) Leaderboard(ctx context.Context, req *LeaderboardRequest) (*LeaderboardResponse, error) {
	entries, err := s.matches.Leaderboard(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return &LeaderboardResponse{Entries: entries}, nil
}

func (s *duelServer) PlayerStats(ctx context.Context, req *PlayerStatsRequest) (*PlayerStatsResponse, error) {
	playerID := req.PlayerID
	if playerID == "" {
		var err error
		if playerID, err = callerID(ctx); err != nil {
			return nil, err
		}
	}
	stats, err := s.matches.PlayerStats(ctx, playerID)
	if err != nil {
		return nil, toStatus(s.logger, err)
	}
	return &PlayerStatsResponse{Stats: stats}, nil
}

// unaryHandler builds a grpc.MethodHandler that decodes Req and runs call
// through the server interceptors.
func unaryHandler[Req any](method string, call func(DuelServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DuelServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(DuelServiceServer), ctx, req.(*Req))
		})
	}
}

// DuelServiceDesc describes DuelService for grpc.Server.RegisterService.
var DuelServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DuelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FindMatch", Handler: unaryHandler("FindMatch",
			func(s DuelServiceServer, ctx context.Context, in *FindMatchRequest) (any, error) { return s.FindMatch(ctx, in) })},
		{MethodName: "GetMatch", Handler: unaryHandler("GetMatch",
			func(s DuelServiceServer, ctx context.Context, in *MatchRequest) (any, error) { return s.GetMatch(ctx, in) })},
		{MethodName: "GetReplay", Handler: unaryHandler("GetReplay",
			func(s DuelServiceServer, ctx context.Context, in *MatchRequest) (any, error) { return s.GetReplay(ctx, in) })},
		{MethodName: "ListMatches", Handler: unaryHandler("ListMatches",
			func(s DuelServiceServer, ctx context.Context, in *ListMatchesRequest) (any, error) { return s.ListMatches(ctx, in) })},
		{MethodName: "PlayCard", Handler: unaryHandler("PlayCard",
			func(s DuelServiceServer, ctx context.Context, in *PlayCardRequest) (any, error) { return s.PlayCard(ctx, in) })},
		{MethodName: "Attack", Handler: unaryHandler("Attack",
			func(s DuelServiceServer, ctx context.Context, in *AttackRequest) (any, error) { return s.Attack(ctx, in) })},
		{MethodName: "EndTurn", Handler: unaryHandler("EndTurn",
			func(s DuelServiceServer, ctx context.Context, in *MatchRequest) (any, error) { return s.EndTurn(ctx, in) })},
		{MethodName: "Leaderboard", Handler: unaryHandler("Leaderboard",
			func(s DuelServiceServer, ctx context.Context, in *LeaderboardRequest) (any, error) { return s.Leaderboard(ctx, in) })},
		{MethodName: "PlayerStats", Handler: unaryHandler("PlayerStats",
			func(s DuelServiceServer, ctx context.Context, in *PlayerStatsRequest) (any, error) { return s.PlayerStats(ctx, in) })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "duel/v1/duel.proto",
}
