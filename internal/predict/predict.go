// Package predict implements the biased exponential-moving-average timespan
// predictor used throughout the scheduler to estimate how long a module or
// group's next run will take.
//
// Why biased EMA?
//
// A plain EMA tracks the mean but reacts identically to spikes and dips,
// which is the wrong shape for a scheduler that wants two different
// questions answered: "what is the worst case I should budget for?" and
// "what is the best case, so I don't wait longer than necessary for
// in-flight work to drain?". Two instances with swapped up/down rates,
// paired as a Pair, answer both from the same observation stream.
package predict

import "sync"

// Predictor maintains a single biased EMA estimate of a timespan (in
// seconds). Observations move the estimate up at alphaUp and down at
// alphaDown; an asymmetric pair of rates lets one instance hug spikes and
// decay slowly (a "higher" band) while another hugs dips and decays
// quickly (a "lower" band).
type Predictor struct {
	mu        sync.RWMutex
	value     float64
	alphaUp   float64
	alphaDown float64
}

// New creates a Predictor seeded with initial and the given up/down rates.
// Both rates must be in (0, 1]; New does not validate this, matching the
// teacher's convention of trusting internally-constructed configuration.
func New(initial, alphaUp, alphaDown float64) *Predictor {
	return &Predictor{value: initial, alphaUp: alphaUp, alphaDown: alphaDown}
}

// Observe folds a new sample into the running estimate under an exclusive
// lock, per invariant I6.
func (p *Predictor) Observe(x float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if x > p.value {
		p.value += p.alphaUp * (x - p.value)
	} else {
		p.value += p.alphaDown * (x - p.value)
	}
}

// Predict returns the current estimate. It is pure — it never mutates
// state — and takes only a shared lock, per invariant I6.
func (p *Predictor) Predict() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Initialize clears history, resetting the estimate to value.
func (p *Predictor) Initialize(value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = value
}

// Default biased-EMA rates: fast reacts to spikes/dips quickly,
// slow decays away from them slowly.
const (
	DefaultFast = 0.2
	DefaultSlow = 0.05
)

// Pair bundles the two bands a module/group keeps: Higher tracks
// spikes and decays slowly (conservative upper bound), Lower tracks dips
// and decays quickly (optimistic lower bound).
type Pair struct {
	Higher *Predictor
	Lower  *Predictor
}

// NewPair builds a Pair seeded at initial using the default fast/slow
// rates.
func NewPair(initial float64) Pair {
	return NewPairWithRates(initial, DefaultFast, DefaultSlow)
}

// NewPairWithRates builds a Pair seeded at initial using caller-supplied
// fast/slow rates instead of DefaultFast/DefaultSlow, e.g. when an ambient
// configuration surface exposes them as a tuning knob.
func NewPairWithRates(initial, fast, slow float64) Pair {
	return Pair{
		Higher: New(initial, fast, slow),
		Lower:  New(initial, slow, fast),
	}
}

// Observe folds x into both bands.
func (p Pair) Observe(x float64) {
	p.Higher.Observe(x)
	p.Lower.Observe(x)
}

// Initialize resets both bands to value.
func (p Pair) Initialize(value float64) {
	p.Higher.Initialize(value)
	p.Lower.Initialize(value)
}
