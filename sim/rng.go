package sim

// rng is a seeded xorshift generator. The simulation owns one instance so a
// level replays identically for the same seed and inputs.
type rng struct {
	state uint64
}

func newRNG(seed uint64) *rng {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &rng{state: seed}
}

func (r *rng) next() uint64 {
	r.state ^= r.state << 13
	r.state ^= r.state >> 7
	r.state ^= r.state << 17
	if r.state == 0 {
		r.state = 1
	}
	return r.state
}

// Float returns a value in [0, 1).
func (r *rng) Float() float64 {
	return float64(r.next()>>11) / float64(1<<53)
}

// Range returns a value in [min, max).
func (r *rng) Range(min, max float64) float64 {
	return min + r.Float()*(max-min)
}

// Intn returns a value in [0, n). n <= 0 yields 0.
func (r *rng) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint64(n))
}

// Chance reports true with probability p.
func (r *rng) Chance(p float64) bool {
	return r.Float() < p
}
