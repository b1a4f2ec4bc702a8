// Package game implements the rules of a two-player card battle. The Engine
// mutates the GameState it is handed; callers that need to keep the previous
// state on failure pass a Clone.
package game

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
)

// Engine applies player actions to a GameState.
type Engine struct {
	catalog Catalog
	effects EffectResolver
	rng     Random
	newID   func() string
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom replaces the random source used for shuffles and turn draws.
func WithRandom(rng Random) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithEffects installs a resolver for battlecries and deathrattles.
func WithEffects(effects EffectResolver) Option {
	return func(e *Engine) { e.effects = effects }
}

// WithIDGenerator replaces the instance id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an engine reading card stats from catalog.
func NewEngine(catalog Catalog, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		effects: NoEffects{},
		rng:     NewRandom(),
		newID:   uuid.NewString,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlayCardRequest selects a card from the hand and where it goes.
type PlayCardRequest struct {
	InstanceID string
	// TargetPosition is the board slot for a minion. Nil appends to the right.
	TargetPosition *int
	// TargetID is a minion instance id or HeroTarget for damaging spells.
	TargetID string
}

// NewGameState shuffles both decks and deals opening hands. player1 moves
// first with one mana crystal. The given decks are not modified.
func (e *Engine) NewGameState(player1ID string, deck1 []CardRef, player2ID string, deck2 []CardRef) *GameState {
	p1 := e.newPlayer(player1ID, deck1)
	p2 := e.newPlayer(player2ID, deck2)
	p1.Mana, p1.MaxMana = 1, 1

	e.deal(p1, FirstPlayerOpeningHand)
	e.deal(p2, SecondPlayerOpeningHand)

	return &GameState{
		Players:             []*PlayerState{p1, p2},
		TurnNumber:          1,
		CurrentTurnPlayerID: player1ID,
	}
}

func (e *Engine) newPlayer(playerID string, deck []CardRef) *PlayerState {
	shuffled := append([]CardRef(nil), deck...)
	Shuffle(shuffled, e.rng)
	return &PlayerState{
		PlayerID: playerID,
		Health:   StartingHealth,
		Deck:     shuffled,
		Hand:     []CardInHand{},
		Board:    []BoardMinion{},
	}
}

// deal draws opening cards. Running out of cards here never causes fatigue.
func (e *Engine) deal(p *PlayerState, n int) {
	for i := 0; i < n && len(p.Hand) < MaxHandSize && len(p.Deck) > 0; i++ {
		e.drawOne(p)
	}
}

func (e *Engine) drawOne(p *PlayerState) CardInHand {
	card := CardInHand{InstanceID: e.newID(), CardRef: p.Deck[0]}
	p.Deck = p.Deck[1:]
	p.Hand = append(p.Hand, card)
	return card
}

// PlayCard plays a spell or summons a minion from the actor's hand.
func (e *Engine) PlayCard(ctx context.Context, state *GameState, actorID string, req PlayCardRequest) (Result, error) {
	actor, enemy, err := e.turnPlayers(state, actorID)
	if err != nil {
		return Result{}, err
	}
	idx := actor.HandIndex(req.InstanceID)
	if idx < 0 {
		return Result{}, errors.NewNotFoundError(errors.KindHandCardMissing, "card not in hand", errors.Details{"instance_id": req.InstanceID})
	}

	card := actor.Hand[idx]
	switch card.Kind {
	case CardKindSpell:
		return e.castSpell(ctx, state, actor, enemy, idx, req)
	case CardKindMinion:
		return e.summon(ctx, state, actor, enemy, idx, req)
	default:
		return Result{}, errors.NewInvalidStateError(errors.KindUnplayableCard, "unknown card kind", errors.Details{"kind": string(card.Kind)})
	}
}

func (e *Engine) castSpell(ctx context.Context, state *GameState, actor, enemy *PlayerState, idx int, req PlayCardRequest) (Result, error) {
	card := actor.Hand[idx]
	spell, err := e.catalog.Spell(ctx, card.CardID)
	if err != nil {
		return Result{}, errors.Wrap(err, "load spell", errors.Details{"card_id": card.CardID})
	}
	if !actor.CanAfford(spell.ManaCost) {
		return Result{}, notEnoughMana(actor, spell.ManaCost)
	}

	targetIdx := -1
	if spell.Damage > 0 {
		switch {
		case req.TargetID == "":
			return Result{}, errors.NewRulesViolationError(errors.KindTargetRequired, "spell requires a target", errors.Details{"card_id": spell.ID})
		case IsHeroTarget(req.TargetID):
			if enemy.HasTaunt() {
				return Result{}, tauntBlocks()
			}
		default:
			targetIdx = enemy.BoardIndex(req.TargetID)
			if targetIdx < 0 {
				return Result{}, minionNotFound(req.TargetID)
			}
		}
	}

	res := Result{Description: "Spell: " + spell.Name}
	actor.Mana -= spell.ManaCost
	actor.removeHand(idx)
	res.emit(Event{Type: EventSpellCast, PlayerID: actor.PlayerID, SourceID: card.InstanceID, TargetID: req.TargetID, Amount: spell.Damage})

	if spell.Damage > 0 {
		if targetIdx < 0 {
			enemy.Health -= spell.Damage
			res.emit(Event{Type: EventHeroDamaged, PlayerID: enemy.PlayerID, SourceID: card.InstanceID, Amount: spell.Damage})
		} else {
			e.hitMinion(&enemy.Board[targetIdx], spell.Damage, card.InstanceID, &res)
			if err := e.removeDead(ctx, state, enemy, &res); err != nil {
				return Result{}, err
			}
		}
	}

	checkHeroes(actor, enemy, &res)
	e.logger.Debug("spell cast",
		zap.String("player_id", actor.PlayerID),
		zap.Int64("card_id", spell.ID),
		zap.String("target", req.TargetID),
	)
	return res, nil
}

func (e *Engine) summon(ctx context.Context, state *GameState, actor, enemy *PlayerState, idx int, req PlayCardRequest) (Result, error) {
	card := actor.Hand[idx]
	minion, err := e.catalog.Minion(ctx, card.CardID)
	if err != nil {
		return Result{}, errors.Wrap(err, "load minion", errors.Details{"card_id": card.CardID})
	}
	if !actor.CanAfford(minion.ManaCost) {
		return Result{}, notEnoughMana(actor, minion.ManaCost)
	}
	if len(actor.Board) >= MaxBoardSize {
		return Result{}, errors.NewRulesViolationError(errors.KindBoardFull, "board is full", errors.Details{"board_size": len(actor.Board)})
	}
	pos := len(actor.Board)
	if req.TargetPosition != nil {
		pos = *req.TargetPosition
		if pos < 0 || pos > len(actor.Board) {
			return Result{}, errors.NewRulesViolationError(errors.KindInvalidPosition, "invalid board position",
				errors.Details{"position": pos, "board_size": len(actor.Board)})
		}
	}

	bm := BoardMinion{
		InstanceID:    e.newID(),
		CardID:        minion.ID,
		Attack:        minion.Attack,
		CurrentHealth: minion.Health,
		MaxHealth:     minion.Health,
		CanAttack:     minion.Charge,
		Exhausted:     !minion.Charge,
		Taunt:         minion.Taunt,
		DivineShield:  minion.DivineShield,
	}
	actor.Mana -= minion.ManaCost
	actor.removeHand(idx)
	actor.Board = append(actor.Board, BoardMinion{})
	copy(actor.Board[pos+1:], actor.Board[pos:])
	actor.Board[pos] = bm

	res := Result{Description: "Minion: " + minion.Name}
	res.emit(Event{Type: EventMinionSummoned, PlayerID: actor.PlayerID, SourceID: card.InstanceID, TargetID: bm.InstanceID})

	if err := e.effects.OnSummon(ctx, state, actor.PlayerID, &actor.Board[pos], minion); err != nil {
		return Result{}, errors.Wrap(err, "on summon", errors.Details{"card_id": minion.ID})
	}
	if err := e.removeDead(ctx, state, enemy, &res); err != nil {
		return Result{}, err
	}
	if err := e.removeDead(ctx, state, actor, &res); err != nil {
		return Result{}, err
	}

	checkHeroes(actor, enemy, &res)
	e.logger.Debug("minion summoned",
		zap.String("player_id", actor.PlayerID),
		zap.Int64("card_id", minion.ID),
		zap.Int("position", pos),
	)
	return res, nil
}

// Attack orders a minion of the actor to attack an enemy minion or the enemy hero.
func (e *Engine) Attack(ctx context.Context, state *GameState, actorID, attackerID, targetID string) (Result, error) {
	actor, enemy, err := e.turnPlayers(state, actorID)
	if err != nil {
		return Result{}, err
	}
	ai := actor.BoardIndex(attackerID)
	if ai < 0 {
		return Result{}, minionNotFound(attackerID)
	}
	attacker := &actor.Board[ai]
	if !attacker.CanAttack {
		return Result{}, errors.NewInvalidStateError(errors.KindAttackerNotReady, "minion cannot attack", errors.Details{"instance_id": attackerID})
	}

	res := Result{Description: fmt.Sprintf("Attack %s -> %s", attackerID, targetID)}
	if IsHeroTarget(targetID) {
		if enemy.HasTaunt() {
			return Result{}, tauntBlocks()
		}
		enemy.Health -= attacker.Attack
		attacker.spend()
		res.emit(Event{Type: EventAttack, PlayerID: actor.PlayerID, SourceID: attackerID, TargetID: HeroTarget})
		res.emit(Event{Type: EventHeroDamaged, PlayerID: enemy.PlayerID, SourceID: attackerID, Amount: attacker.Attack})
	} else {
		ti := enemy.BoardIndex(targetID)
		if ti < 0 {
			return Result{}, minionNotFound(targetID)
		}
		defender := &enemy.Board[ti]
		// Both sides deal damage based on attack values from before the exchange.
		attackerDamage, defenderDamage := attacker.Attack, defender.Attack
		res.emit(Event{Type: EventAttack, PlayerID: actor.PlayerID, SourceID: attackerID, TargetID: targetID})
		e.hitMinion(defender, attackerDamage, attackerID, &res)
		e.hitMinion(attacker, defenderDamage, targetID, &res)
		attacker.spend()

		if err := e.removeDead(ctx, state, enemy, &res); err != nil {
			return Result{}, err
		}
		if err := e.removeDead(ctx, state, actor, &res); err != nil {
			return Result{}, err
		}
	}

	checkHeroes(actor, enemy, &res)
	return res, nil
}

// EndTurn passes the turn to the opponent, who ramps mana, readies minions and
// draws. Drawing from an empty deck deals increasing fatigue damage, and a
// fatal fatigue draw stops the remaining draws.
func (e *Engine) EndTurn(ctx context.Context, state *GameState, actorID string) (Result, error) {
	actor, next, err := e.turnPlayers(state, actorID)
	if err != nil {
		return Result{}, err
	}

	res := Result{Description: "End turn"}
	next.Ramp()
	next.Untap()

	draws := MinTurnDraw + e.rng.IntN(MaxTurnDraw-MinTurnDraw+1)
	for i := 0; i < draws && len(next.Hand) < MaxHandSize; i++ {
		if len(next.Deck) == 0 {
			next.FatigueCounter++
			next.Health -= next.FatigueCounter
			res.emit(Event{Type: EventFatigue, PlayerID: next.PlayerID, Amount: next.FatigueCounter})
			if next.Health <= 0 {
				break
			}
			continue
		}
		card := e.drawOne(next)
		res.emit(Event{Type: EventCardDrawn, PlayerID: next.PlayerID, SourceID: card.InstanceID})
	}

	switch {
	case next.Health <= 0:
		res.finish(actor.PlayerID)
	case exhausted(actor) && exhausted(next):
		switch {
		case actor.Health > next.Health:
			res.finish(actor.PlayerID)
		case next.Health > actor.Health:
			res.finish(next.PlayerID)
		default:
			res.finish("")
		}
	default:
		state.CurrentTurnPlayerID = next.PlayerID
		state.TurnNumber++
		res.emit(Event{Type: EventTurnStarted, PlayerID: next.PlayerID, Amount: state.TurnNumber})
	}

	e.logger.Debug("turn ended",
		zap.String("player_id", actor.PlayerID),
		zap.Int("turn", state.TurnNumber),
		zap.Int("draws", draws),
		zap.Bool("finished", res.Finished),
	)
	return res, nil
}

// exhausted reports whether the player has nothing left to play or attack with.
func exhausted(p *PlayerState) bool {
	return len(p.Deck) == 0 && len(p.Board) == 0
}

func (e *Engine) turnPlayers(state *GameState, actorID string) (*PlayerState, *PlayerState, error) {
	actor, ok := state.Player(actorID)
	if !ok {
		return nil, nil, errors.NewForbiddenError(errors.KindNotParticipant, "not a participant", errors.Details{"player_id": actorID})
	}
	if state.CurrentTurnPlayerID != actorID {
		return nil, nil, errors.NewInvalidStateError(errors.KindNotYourTurn, "not your turn",
			errors.Details{"player_id": actorID, "current_turn_player_id": state.CurrentTurnPlayerID})
	}
	enemy, _ := state.Opponent(actorID)
	return actor, enemy, nil
}

func (e *Engine) hitMinion(m *BoardMinion, amount int, sourceID string, res *Result) {
	if amount <= 0 {
		return
	}
	if m.takeDamage(amount) {
		res.emit(Event{Type: EventShieldPopped, SourceID: sourceID, TargetID: m.InstanceID})
		return
	}
	res.emit(Event{Type: EventMinionDamaged, SourceID: sourceID, TargetID: m.InstanceID, Amount: amount})
}

// removeDead clears dead minions from the owner's board in board order and runs
// their death hooks.
func (e *Engine) removeDead(ctx context.Context, state *GameState, owner *PlayerState, res *Result) error {
	for i := 0; i < len(owner.Board); {
		if !owner.Board[i].dead() {
			i++
			continue
		}
		m := owner.removeBoard(i)
		res.emit(Event{Type: EventMinionDied, PlayerID: owner.PlayerID, TargetID: m.InstanceID})
		if err := e.effects.OnDeath(ctx, state, owner.PlayerID, m); err != nil {
			return errors.Wrap(err, "on death", errors.Details{"instance_id": m.InstanceID})
		}
	}
	return nil
}

// checkHeroes ends the match when a hero dropped to zero. The actor wins if
// both heroes fell during the same action.
func checkHeroes(actor, enemy *PlayerState, res *Result) {
	switch {
	case enemy.Health <= 0:
		res.finish(actor.PlayerID)
	case actor.Health <= 0:
		res.finish(enemy.PlayerID)
	}
}

func notEnoughMana(p *PlayerState, cost int) error {
	return errors.NewInsufficientResourceError(errors.KindNotEnoughMana, "not enough mana",
		errors.Details{"mana": p.Mana, "cost": cost})
}

func tauntBlocks() error {
	return errors.NewRulesViolationError(errors.KindTauntBlocks, "a taunt minion must be dealt with first", nil)
}

func minionNotFound(instanceID string) error {
	return errors.NewNotFoundError(errors.KindMinionNotFound, "minion not found", errors.Details{"instance_id": instanceID})
}
