package lanmesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldInitiateIsAntisymmetric(t *testing.T) {
	a, b := "aaaa-device", "bbbb-device"

	assert.False(t, ShouldInitiate(a, b), "the lexicographically smaller id does not initiate")
	assert.True(t, ShouldInitiate(b, a), "the lexicographically greater id initiates")
}

func TestShouldInitiateNeverBothSides(t *testing.T) {
	ids := []string{"alpha", "beta", "gamma", "0000", "zzzz"}
	for _, x := range ids {
		for _, y := range ids {
			if x == y {
				continue
			}
			assert.NotEqual(t, ShouldInitiate(x, y), ShouldInitiate(y, x),
				"exactly one side of (%q,%q) must initiate", x, y)
		}
	}
}
