package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressGate_monotonic_no_repeats(t *testing.T) {
	var seen []int
	g := newProgressGate(func(p int) { seen = append(seen, p) })

	for _, p := range []int{-5, 10, 10, 5, 30, 29, 150, 100} {
		g.report(p)
	}

	assert.Equal(t, []int{0, 10, 30, 100}, seen)
}

func TestProgressGate_nil_callback(t *testing.T) {
	newProgressGate(nil).report(50)
	var g *progressGate
	g.report(50)
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, -1, percentOf(10, 0))
	assert.Equal(t, 0, percentOf(0, 100))
	assert.Equal(t, 33, percentOf(1, 3))
	assert.Equal(t, 100, percentOf(50, 50))
}
