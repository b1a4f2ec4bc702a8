package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualRatingsWin(t *testing.T) {
	r1, r2 := Update(1000, 1000, Player1Won)
	assert.Equal(t, 1016, r1)
	assert.Equal(t, 984, r2)
}

func TestEqualRatingsDrawIsNeutral(t *testing.T) {
	r1, r2 := Update(1200, 1200, Draw)
	assert.Equal(t, 1200, r1)
	assert.Equal(t, 1200, r2)
}

func TestVeteranUsesSmallerK(t *testing.T) {
	r1, r2 := Update(2000, 2000, Player2Won)
	assert.Equal(t, 1992, r1)
	assert.Equal(t, 2008, r2)
}

func TestMixedKFactors(t *testing.T) {
	// 1990 still uses K=32 while 2010 uses K=16
	r1, r2 := Update(1990, 2010, Player1Won)
	e1 := ExpectedScore(1990, 2010)
	assert.InDelta(t, 0.4712, e1, 0.001)
	assert.Equal(t, 2007, r1)
	assert.Equal(t, 2002, r2)
}

func TestRatingNeverNegative(t *testing.T) {
	r1, _ := Update(5, 1500, Player2Won)
	assert.Equal(t, 5, r1)

	r1, _ = Update(0, 0, Player2Won)
	assert.Equal(t, 0, r1)
}

func TestExpectedScoresSumToOne(t *testing.T) {
	for _, pair := range [][2]int{{1000, 1000}, {800, 1600}, {2400, 1900}} {
		sum := ExpectedScore(pair[0], pair[1]) + ExpectedScore(pair[1], pair[0])
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestRankName(t *testing.T) {
	cases := map[int]string{
		3000: "Legend",
		2999: "Master",
		2500: "Master",
		2000: "Diamond",
		1500: "Platinum",
		1200: "Gold",
		1000: "Silver",
		999:  "Bronze",
		800:  "Bronze",
		0:    "Novice",
	}
	for r, want := range cases {
		assert.Equal(t, want, RankName(r), "rating %d", r)
	}
}
