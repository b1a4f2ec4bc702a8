package server

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls DuelService over a client connection using the JSON codec.
// The caller identity is attached to every call with WithPlayerID.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FindMatch(ctx context.Context, in *FindMatchRequest, opts ...grpc.CallOption) (*MatchResponse, error) {
	return invoke[MatchResponse](ctx, c, "FindMatch", in, opts...)
}

func (c *Client) GetMatch(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*MatchResponse, error) {
	return invoke[MatchResponse](ctx, c, "GetMatch", in, opts...)
}

func (c *Client) GetReplay(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*ReplayResponse, error) {
	return invoke[ReplayResponse](ctx, c, "GetReplay", in, opts...)
}

func (c *Client) ListMatches(ctx context.Context, in *ListMatchesRequest, opts ...grpc.CallOption) (*MatchListResponse, error) {
	return invoke[MatchListResponse](ctx, c, "ListMatches", in, opts...)
}

func (c *Client) PlayCard(ctx context.Context, in *PlayCardRequest, opts ...grpc.CallOption) (*MatchResponse, error) {
	return invoke[MatchResponse](ctx, c, "PlayCard", in, opts...)
}

func (c *Client) Attack(ctx context.Context, in *AttackRequest, opts ...grpc.CallOption) (*MatchResponse, error) {
	return invoke[MatchResponse](ctx, c, "Attack", in, opts...)
}

func (c *Client) EndTurn(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*MatchResponse, error) {
	return invoke[MatchResponse](ctx, c, "EndTurn", in, opts...)
}

func (c *Client) Leaderboard(ctx context.Context, in *LeaderboardRequest, opts ...grpc.CallOption) (*LeaderboardResponse, error) {
	return invoke[LeaderboardResponse](ctx, c, "Leaderboard", in, opts...)
}

func (c *Client) PlayerStats(ctx context.Context, in *PlayerStatsRequest, opts ...grpc.CallOption) (*PlayerStatsResponse, error) {
	return invoke[PlayerStatsResponse](ctx, c, "PlayerStats", in, opts...)
}
