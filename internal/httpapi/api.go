// Package httpapi serves the match API as JSON over HTTP.
package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/match"
	"github.com/lotusgame/duel-server-go/internal/replay"
)

// PlayerIDHeader carries the authenticated player id, set by the gateway.
const PlayerIDHeader = "X-Player-ID"

const playerIDLocal = "player_id"

// Matches is the part of match.Service served over HTTP.
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

// API holds the HTTP handlers.
type API struct {
	matches Matches
	logger  *zap.Logger
}

// New creates a fiber app with every route mounted.
func New(matches Matches, logger *zap.Logger) *fiber.App {
	api := &API{matches: matches, logger: logger.Named("http")}
	app := fiber.New(fiber.Config{
		AppName:               "duel-server",
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          api.handleError,
	})
	app.Use(recover.New())
	app.Use(api.logRequests)
	api.Routes(app)
	return app
}

// Routes mounts the API on router.
func (a *API) Routes(router fiber.Router) {
	router.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	public := router.Group("/api")
	public.Get("/leaderboard", a.leaderboard)
	public.Get("/players/:id/stats", a.playerStats)

	secured := router.Group("/api/matches", requirePlayer)
	secured.Post("/find", a.findMatch)
	secured.Get("/", a.listMatches)
	secured.Get("/:id", a.getMatch)
	secured.Get("/:id/replay", a.getReplay)
	secured.Post("/:id/play", a.playCard)
	secured.Post("/:id/attack", a.attack)
	secured.Post("/:id/end-turn", a.endTurn)
}

func requirePlayer(c *fiber.Ctx) error {
	playerID := strings.TrimSpace(c.Get(PlayerIDHeader))
	if playerID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing "+PlayerIDHeader+" header")
	}
	c.Locals(playerIDLocal, playerID)
	return c.Next()
}

func playerID(c *fiber.Ctx) string {
	id, _ := c.Locals(playerIDLocal).(string)
	return id
}

func (a *API) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	} else {
		fields = append(fields, zap.Int("status", c.Response().StatusCode()))
	}
	a.logger.Debug("http request", fields...)
	return err
}

type findMatchBody struct {
	DeckID string `json:"deckId"`
	Mode   string `json:"mode"`
}

type playCardBody struct {
	InstanceID     string `json:"instanceId"`
	TargetPosition *int   `json:"targetPosition"`
	TargetID       string `json:"targetId"`
}

type attackBody struct {
	AttackerID string `json:"attackerId"`
	TargetID   string `json:"targetId"`
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errors.NewBadRequestError(errors.KindDecodeJSON, "invalid request body", errors.Details{"error": err.Error()})
	}
	return nil
}

func (a *API) findMatch(c *fiber.Ctx) error {
	var body findMatchBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	view, err := a.matches.FindOrCreateMatch(c.UserContext(), playerID(c), body.DeckID, match.Mode(body.Mode))
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if view.Status == match.StatusWaiting {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(view)
}

func (a *API) getMatch(c *fiber.Ctx) error {
	view, err := a.matches.GetMatch(c.UserContext(), c.Params("id"), playerID(c))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (a *API) getReplay(c *fiber.Ctx) error {
	steps, err := a.matches.GetReplay(c.UserContext(), c.Params("id"), playerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"matchId": c.Params("id"), "steps": steps})
}

func (a *API) listMatches(c *fiber.Ctx) error {
	views, err := a.matches.ListMatches(c.UserContext(), playerID(c))
	if err != nil {
		return err
	}
	return c.JSON(views)
}

func (a *API) playCard(c *fiber.Ctx) error {
	var body playCardBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	view, err := a.matches.PlayCard(c.UserContext(), c.Params("id"), playerID(c), game.PlayCardRequest{
		InstanceID:     body.InstanceID,
		TargetPosition: body.TargetPosition,
		TargetID:       body.TargetID,
	})
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (a *API) attack(c *fiber.Ctx) error {
	var body attackBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	view, err := a.matches.Attack(c.UserContext(), c.Params("id"), playerID(c), body.AttackerID, body.TargetID)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (a *API) endTurn(c *fiber.Ctx) error {
	view, err := a.matches.EndTurn(c.UserContext(), c.Params("id"), playerID(c))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (a *API) leaderboard(c *fiber.Ctx) error {
	entries, err := a.matches.Leaderboard(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

func (a *API) playerStats(c *fiber.Ctx) error {
	stats, err := a.matches.PlayerStats(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
