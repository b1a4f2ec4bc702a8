package repository

import (
	"context"
	nativeerrors "errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/match"
)

const (
	decksTable     = "decks"
	deckCardsTable = "deck_cards"
)

// DeckRepository reads saved decks. It implements match.DeckLoader.
type DeckRepository struct {
	db     *DB
	logger *zap.Logger
}

func NewDeckRepository(db *DB, logger *zap.Logger) *DeckRepository {
	return &DeckRepository{db: db, logger: logger.Named("deck-repository")}
}

func deckOwnerQuery(deckID string) (string, []any, error) {
	return dialect.From(decksTable).Prepared(true).
		Select("owner_id").
		Where(goqu.C("id").Eq(deckID)).
		ToSQL()
}

func deckSlotsQuery(deckID string) (string, []any, error) {
	return dialect.From(deckCardsTable).Prepared(true).
		Select("card_type", "card_id", "count").
		Where(goqu.C("deck_id").Eq(deckID)).
		Order(goqu.C("position").Asc()).
		ToSQL()
}

func (r *DeckRepository) Deck(ctx context.Context, deckID string) (match.Deck, error) {
	q, args, err := deckOwnerQuery(deckID)
	if err != nil {
		return match.Deck{}, errors.NewQueryToSQLError(err, errors.Details{"deck_id": deckID})
	}
	deck := match.Deck{ID: deckID}
	if err := r.db.QueryRow(ctx, q, args...).Scan(&deck.OwnerID); err != nil {
		if nativeerrors.Is(err, pgx.ErrNoRows) {
			return match.Deck{}, errors.NewNotFoundError(errors.KindDeckNotFound, "deck not found", errors.Details{"deck_id": deckID})
		}
		return match.Deck{}, errors.NewDBError(err, "select deck", q)
	}

	q, args, err = deckSlotsQuery(deckID)
	if err != nil {
		return match.Deck{}, errors.NewQueryToSQLError(err, errors.Details{"deck_id": deckID})
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return match.Deck{}, errors.NewDBError(err, "query deck cards", q)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			slot game.DeckSlot
			kind string
		)
		if err := rows.Scan(&kind, &slot.CardID, &slot.Count); err != nil {
			return match.Deck{}, errors.NewDBError(err, "scan deck card", q)
		}
		slot.Kind = game.CardKind(kind)
		deck.Slots = append(deck.Slots, slot)
	}
	if err := rows.Err(); err != nil {
		return match.Deck{}, errors.NewDBError(err, "iterate deck cards", q)
	}
	return deck, nil
}

// SaveDeck replaces a deck and its cards.
func (r *DeckRepository) SaveDeck(ctx context.Context, deck match.Deck, name string) error {
	return withTx(ctx, r.db.Pool, r.logger, func(tx pgx.Tx) error {
		q, args, err := dialect.Insert(decksTable).Prepared(true).
			Rows(goqu.Record{"id": deck.ID, "owner_id": deck.OwnerID, "name": name}).
			OnConflict(goqu.DoUpdate("id", goqu.Record{
				"owner_id": goqu.L("EXCLUDED.owner_id"),
				"name":     goqu.L("EXCLUDED.name"),
			})).ToSQL()
		if err != nil {
			return errors.NewQueryToSQLError(err, errors.Details{"deck_id": deck.ID})
		}
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return errors.NewDBError(err, "upsert deck", q)
		}

		q, args, err = dialect.Delete(deckCardsTable).Prepared(true).
			Where(goqu.C("deck_id").Eq(deck.ID)).ToSQL()
		if err != nil {
			return errors.NewQueryToSQLError(err, errors.Details{"deck_id": deck.ID})
		}
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return errors.NewDBError(err, "clear deck cards", q)
		}
		if len(deck.Slots) == 0 {
			return nil
		}

		rows := make([]any, len(deck.Slots))
		for i, slot := range deck.Slots {
			rows[i] = goqu.Record{
				"deck_id":   deck.ID,
				"position":  i,
				"card_type": string(slot.Kind),
				"card_id":   slot.CardID,
				"count":     slot.Count,
			}
		}
		q, args, err = dialect.Insert(deckCardsTable).Prepared(true).Rows(rows...).ToSQL()
		if err != nil {
			return errors.NewQueryToSQLError(err, errors.Details{"deck_id": deck.ID})
		}
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return errors.NewDBError(err, "insert deck cards", q)
		}
		return nil
	})
}
