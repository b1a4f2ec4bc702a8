package repository

import (
	"context"
	"encoding/json"
	nativeerrors "errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/game"
)

const (
	minionsTable = "minions"
	spellsTable  = "spells"
)

var (
	minionColumns = []any{"id", "name", "mana_cost", "attack", "health", "taunt", "charge", "divine_shield", "battlecry", "deathrattle"}
	spellColumns  = []any{"id", "name", "mana_cost", "damage"}
)

// CardRepository reads the card catalog. It implements game.Catalog.
type CardRepository struct {
	db *DB
}

func NewCardRepository(db *DB) *CardRepository {
	return &CardRepository{db: db}
}

func selectMinionQuery(id int64) (string, []any, error) {
	return dialect.From(minionsTable).Prepared(true).
		Select(minionColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
}

func selectSpellQuery(id int64) (string, []any, error) {
	return dialect.From(spellsTable).Prepared(true).
		Select(spellColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
}

// upsertMinionQuery inserts a minion or updates the one with the same name.
func upsertMinionQuery(card game.MinionCard) (string, []any, error) {
	battlecry, err := effectValue(card.Battlecry)
	if err != nil {
		return "", nil, err
	}
	deathrattle, err := effectValue(card.Deathrattle)
	if err != nil {
		return "", nil, err
	}
	record := goqu.Record{
		"name":          card.Name,
		"mana_cost":     card.ManaCost,
		"attack":        card.Attack,
		"health":        card.Health,
		"taunt":         card.Taunt,
		"charge":        card.Charge,
		"divine_shield": card.DivineShield,
		"battlecry":     battlecry,
		"deathrattle":   deathrattle,
	}
	update := goqu.Record{}
	for col := range record {
		if col != "name" {
			update[col] = goqu.L("EXCLUDED." + col)
		}
	}
	return dialect.Insert(minionsTable).Prepared(true).
		Rows(record).
		OnConflict(goqu.DoUpdate("name", update)).
		Returning("id").
		ToSQL()
}

func upsertSpellQuery(card game.SpellCard) (string, []any, error) {
	return dialect.Insert(spellsTable).Prepared(true).
		Rows(goqu.Record{
			"name":      card.Name,
			"mana_cost": card.ManaCost,
			"damage":    card.Damage,
		}).
		OnConflict(goqu.DoUpdate("name", goqu.Record{
			"mana_cost": goqu.L("EXCLUDED.mana_cost"),
			"damage":    goqu.L("EXCLUDED.damage"),
		})).
		Returning("id").
		ToSQL()
}

func effectValue(e *game.Effect) (any, error) {
	if e == nil {
		return nil, nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Error{Code: errors.ErrInternal, Kind: errors.KindEncodeJSON, Err: err, Message: "encode effect"}
	}
	return string(b), nil
}

func decodeEffect(raw []byte) (*game.Effect, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var e game.Effect
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, errors.Error{Code: errors.ErrInternal, Kind: errors.KindDecodeJSON, Err: err, Message: "decode effect"}
	}
	return &e, nil
}

func (r *CardRepository) Minion(ctx context.Context, id int64) (game.MinionCard, error) {
	q, args, err := selectMinionQuery(id)
	if err != nil {
		return game.MinionCard{}, errors.NewQueryToSQLError(err, errors.Details{"card_id": id})
	}
	var (
		card                   game.MinionCard
		battlecry, deathrattle []byte
	)
	err = r.db.QueryRow(ctx, q, args...).Scan(&card.ID, &card.Name, &card.ManaCost, &card.Attack, &card.Health,
		&card.Taunt, &card.Charge, &card.DivineShield, &battlecry, &deathrattle)
	if err != nil {
		if nativeerrors.Is(err, pgx.ErrNoRows) {
			return game.MinionCard{}, errors.NewNotFoundError(errors.KindCardNotFound, "minion not found", errors.Details{"card_id": id})
		}
		return game.MinionCard{}, errors.NewDBError(err, "select minion", q)
	}
	if card.Battlecry, err = decodeEffect(battlecry); err != nil {
		return game.MinionCard{}, errors.Wrap(err, "decode battlecry", errors.Details{"card_id": id})
	}
	if card.Deathrattle, err = decodeEffect(deathrattle); err != nil {
		return game.MinionCard{}, errors.Wrap(err, "decode deathrattle", errors.Details{"card_id": id})
	}
	return card, nil
}

func (r *CardRepository) Spell(ctx context.Context, id int64) (game.SpellCard, error) {
	q, args, err := selectSpellQuery(id)
	if err != nil {
		return game.SpellCard{}, errors.NewQueryToSQLError(err, errors.Details{"card_id": id})
	}
	var card game.SpellCard
	err = r.db.QueryRow(ctx, q, args...).Scan(&card.ID, &card.Name, &card.ManaCost, &card.Damage)
	if err != nil {
		if nativeerrors.Is(err, pgx.ErrNoRows) {
			return game.SpellCard{}, errors.NewNotFoundError(errors.KindCardNotFound, "spell not found", errors.Details{"card_id": id})
		}
		return game.SpellCard{}, errors.NewDBError(err, "select spell", q)
	}
	return card, nil
}

// SaveMinion inserts or updates a minion by name and returns its id.
func (r *CardRepository) SaveMinion(ctx context.Context, card game.MinionCard) (int64, error) {
	q, args, err := upsertMinionQuery(card)
	if err != nil {
		return 0, errors.Wrap(err, "build minion upsert", errors.Details{"name": card.Name})
	}
	var id int64
	if err := r.db.QueryRow(ctx, q, args...).Scan(&id); err != nil {
		return 0, errors.NewDBError(err, "upsert minion", q)
	}
	return id, nil
}

// SaveSpell inserts or updates a spell by name and returns its id.
func (r *CardRepository) SaveSpell(ctx context.Context, card game.SpellCard) (int64, error) {
	q, args, err := upsertSpellQuery(card)
	if err != nil {
		return 0, errors.NewQueryToSQLError(err, errors.Details{"name": card.Name})
	}
	var id int64
	if err := r.db.QueryRow(ctx, q, args...).Scan(&id); err != nil {
		return 0, errors.NewDBError(err, "upsert spell", q)
	}
	return id, nil
}
