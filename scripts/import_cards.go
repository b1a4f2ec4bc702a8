package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/config"
	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/match"
	"github.com/lotusgame/duel-server-go/internal/repository"
)

var (
	configPath  = flag.String("config", "config/config.yaml", "path to configuration file")
	minionsPath = flag.String("minions", "data/minions.csv", "minion CSV (name,mana_cost,attack,health,taunt,charge,divine_shield,battlecry,deathrattle)")
	spellsPath  = flag.String("spells", "data/spells.csv", "spell CSV (name,mana_cost,damage)")
	deckOwner   = flag.String("starter-deck-owner", "", "create a starter deck with two copies of every card for this player")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	fmt.Println("=== Duel Card Import ===")
	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("✓ Database connection established")

	minions, err := readFile(*minionsPath, parseMinions)
	if err != nil {
		log.Fatalf("Failed to read minions: %v", err)
	}
	spells, err := readFile(*spellsPath, parseSpells)
	if err != nil {
		log.Fatalf("Failed to read spells: %v", err)
	}
	fmt.Printf("Found %d minions and %d spells\n", len(minions), len(spells))

	cards := repository.NewCardRepository(db)
	var slots []game.DeckSlot
	for _, m := range minions {
		id, err := cards.SaveMinion(ctx, m)
		if err != nil {
			log.Fatalf("Failed to import minion %q: %v", m.Name, err)
		}
		slots = append(slots, game.DeckSlot{CardRef: game.CardRef{Kind: game.CardKindMinion, CardID: id}, Count: 2})
	}
	for _, s := range spells {
		id, err := cards.SaveSpell(ctx, s)
		if err != nil {
			log.Fatalf("Failed to import spell %q: %v", s.Name, err)
		}
		slots = append(slots, game.DeckSlot{CardRef: game.CardRef{Kind: game.CardKindSpell, CardID: id}, Count: 2})
	}
	fmt.Println("✓ Cards imported")

	if *deckOwner != "" {
		deck := match.Deck{ID: "starter-" + *deckOwner, OwnerID: *deckOwner, Slots: slots}
		if err := repository.NewDeckRepository(db, logger).SaveDeck(ctx, deck, "Starter"); err != nil {
			log.Fatalf("Failed to save starter deck: %v", err)
		}
		fmt.Printf("✓ Starter deck %s saved\n", deck.ID)
	}
}

func readFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// csvRows reads a CSV with a header row and returns each row keyed by column
// name. Missing required columns are an error.
func csvRows(r io.Reader, required ...string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := header[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for name, i := range header {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseMinions(r io.Reader) ([]game.MinionCard, error) {
	rows, err := csvRows(r, "name", "mana_cost", "attack", "health")
	if err != nil {
		return nil, err
	}
	out := make([]game.MinionCard, 0, len(rows))
	for i, row := range rows {
		card := game.MinionCard{
			Name:         row["name"],
			Taunt:        parseBool(row["taunt"]),
			Charge:       parseBool(row["charge"]),
			DivineShield: parseBool(row["divine_shield"]),
		}
		if card.ManaCost, err = parseInt(row, "mana_cost"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if card.Attack, err = parseInt(row, "attack"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if card.Health, err = parseInt(row, "health"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if card.Battlecry, err = parseEffect(row["battlecry"]); err != nil {
			return nil, fmt.Errorf("row %d battlecry: %w", i+2, err)
		}
		if card.Deathrattle, err = parseEffect(row["deathrattle"]); err != nil {
			return nil, fmt.Errorf("row %d deathrattle: %w", i+2, err)
		}
		out = append(out, card)
	}
	return out, nil
}

func parseSpells(r io.Reader) ([]game.SpellCard, error) {
	rows, err := csvRows(r, "name", "mana_cost", "damage")
	if err != nil {
		return nil, err
	}
	out := make([]game.SpellCard, 0, len(rows))
	for i, row := range rows {
		card := game.SpellCard{Name: row["name"]}
		if card.ManaCost, err = parseInt(row, "mana_cost"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if card.Damage, err = parseInt(row, "damage"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, card)
	}
	return out, nil
}

func parseInt(row map[string]string, column string) (int, error) {
	v, err := strconv.Atoi(row[column])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", column, err)
	}
	return v, nil
}

// parseEffect decodes an effect stored as a JSON object. Empty cells mean no
// effect.
func parseEffect(s string) (*game.Effect, error) {
	if s == "" {
		return nil, nil
	}
	var e game.Effect
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
