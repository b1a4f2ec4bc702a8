// Package rating implements ELO adjustments and rank tiers.
package rating

import "math"

const (
	// Default is the rating of a player without history.
	Default = 1000

	kFactorNovice   = 32
	kFactorVeteran  = 16
	veteranFloor    = 2000
	logisticDivisor = 400.0
)

// Outcome is the result of a match from player1's point of view.
type Outcome int

const (
	Player1Won Outcome = iota
	Player2Won
	Draw
)

func (o Outcome) scores() (float64, float64) {
	switch o {
	case Player1Won:
		return 1, 0
	case Player2Won:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}

// ExpectedScore is the probability that a player rated a beats one rated b.
func ExpectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/logisticDivisor))
}

// KFactor returns the adjustment weight for a player with the given rating.
func KFactor(rating int) int {
	if rating >= veteranFloor {
		return kFactorVeteran
	}
	return kFactorNovice
}

// Update returns the new ratings of both players. Each player uses their own
// K-factor and ratings never drop below zero.
func Update(player1, player2 int, outcome Outcome) (int, int) {
	s1, s2 := outcome.scores()
	return adjust(player1, player2, s1), adjust(player2, player1, s2)
}

func adjust(own, other int, score float64) int {
	delta := float64(KFactor(own)) * (score - ExpectedScore(own, other))
	return max(0, int(math.Round(float64(own)+delta)))
}

// RankName maps a rating to its display tier.
func RankName(rating int) string {
	switch {
	case rating >= 3000:
		return "Legend"
	case rating >= 2500:
		return "Master"
	case rating >= 2000:
		return "Diamond"
	case rating >= 1500:
		return "Platinum"
	case rating >= 1200:
		return "Gold"
	case rating >= 1000:
		return "Silver"
	case rating >= 800:
		return "Bronze"
	default:
		return "Novice"
	}
}
