package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Checksum returns the SHA-256 of a canonical rendering of the state. Two
// states with equal content always produce the same checksum.
func (s *GameState) Checksum() string {
	sum := sha256.Sum256(s.canonical())
	return hex.EncodeToString(sum[:])
}

// canonical renders every field that affects play. Players keep their seat
// order since the first seat is meaningful.
func (s *GameState) canonical() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "GAME:%d|%s\n", s.TurnNumber, s.CurrentTurnPlayerID)
	for _, p := range s.Players {
		fmt.Fprintf(&buf, "PLAYER:%s|%d|%d|%d|%d\n", p.PlayerID, p.Health, p.Mana, p.MaxMana, p.FatigueCounter)
		for _, c := range p.Deck {
			fmt.Fprintf(&buf, "  DECK:%s|%d\n", c.Kind, c.CardID)
		}
		for _, c := range p.Hand {
			fmt.Fprintf(&buf, "  HAND:%s|%s|%d\n", c.InstanceID, c.Kind, c.CardID)
		}
		for _, m := range p.Board {
			fmt.Fprintf(&buf, "  BOARD:%s|%d|%d|%d|%d|%t|%t|%t|%t\n",
				m.InstanceID, m.CardID, m.Attack, m.CurrentHealth, m.MaxHealth,
				m.CanAttack, m.Exhausted, m.Taunt, m.DivineShield)
		}
	}
	return buf.Bytes()
}
