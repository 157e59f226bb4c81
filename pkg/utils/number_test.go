package utils

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 221.45, Round(215*1.03, 2))
	assert.Equal(t, 0.13, Round(0.125, 2))
	assert.Equal(t, 1.0, Round(0.9999, 3))
}

func TestTriangularStaysInRange(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		v := Triangular(r, 15, 30, 17)
		assert.GreaterOrEqual(t, v, 15.0)
		assert.LessOrEqual(t, v, 30.0)
	}
	assert.Equal(t, 5.0, Triangular(r, 5, 5, 5))
}

func TestUniqueTrimmed(t *testing.T) {
	got := UniqueTrimmed([]string{" pikachu ", "", "charizard", "pikachu", "  "})
	assert.Equal(t, []string{"pikachu", "charizard"}, got)
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"pikachu", "ex", "sr", "psa10"}, Tokens("Pikachu-EX [SR] psa10!"))
}

func TestElapsedDaysWholeDays(t *testing.T) {
	now := mustTime("2024-05-10T12:00:00Z")
	assert.Equal(t, 2, ElapsedDays(mustTime("2024-05-08T06:00:00Z"), now))
	assert.Equal(t, 0, ElapsedDays(mustTime("2024-05-11T06:00:00Z"), now))
}
