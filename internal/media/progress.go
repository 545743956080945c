package media

import "sync"

// progressGate forwards only strictly increasing percentages.
type progressGate struct {
	mu   sync.Mutex
	last int
	fn   ProgressFunc
}

func newProgressGate(fn ProgressFunc) *progressGate {
	return &progressGate{last: -1, fn: fn}
}

// report clamps p to [0, 100] and forwards it when it advances.
func (g *progressGate) report(p int) {
	if g == nil || g.fn == nil {
		return
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	g.mu.Lock()
	if p <= g.last {
		g.mu.Unlock()
		return
	}
	g.last = p
	g.mu.Unlock()

	g.fn(p)
}

// percentOf returns done/total as an integer percentage, or -1 if total is unknown.
func percentOf(done, total int64) int {
	if total <= 0 {
		return -1
	}
	return int(done * 100 / total)
}
