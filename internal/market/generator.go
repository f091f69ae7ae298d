package market

import (
	"math"
	"math/rand"
	"time"
)

// Rand is the subset of *rand.Rand used by the generator.
type Rand interface {
	Float64() float64
}

// Params tunes the stochastic price process.
type Params struct {
	Sessions SessionMultipliers

	FlipProbability   float64 // per-tick chance of a trend flip
	StrengthMin       float64 // trend strength is redrawn in [StrengthMin, StrengthMax]
	StrengthMax       float64
	MomentumThreshold int     // consecutive ticks without a flip before amplification
	MomentumGrowth    float64 // geometric growth of strength past the threshold

	SpikeProbability float64
	SpikeMin         float64 // spike multiplier magnitude range
	SpikeMax         float64

	ReversalWindow      time.Duration // cool-down after a spike in which reversals may fire
	ReversalProbability float64

	ClampPercent float64 // hard bound on the per-tick move, as a fraction
	RecentCap    int
}

// DefaultParams returns the process tuning used by the engine.
func DefaultParams() Params {
	return Params{
		Sessions:            SessionMultipliers{Low: 1.6, Active: 2.0, High: 3.0},
		FlipProbability:     0.15,
		StrengthMin:         0.3,
		StrengthMax:         1.0,
		MomentumThreshold:   5,
		MomentumGrowth:      1.05,
		SpikeProbability:    0.15,
		SpikeMin:            4,
		SpikeMax:            16,
		ReversalWindow:      10 * time.Second,
		ReversalProbability: 0.45,
		ClampPercent:        0.06,
		RecentCap:           100,
	}
}

// GenerationState is the process-local state of one symbol's price path.
type GenerationState struct {
	TrendDirection       int
	TrendStrength        float64
	VolatilityMultiplier float64
	Session              SessionBand
	MomentumCounter      int
	LastSpikeAt          int64 // unix ms, 0 when no spike happened yet
	RecentPrices         []float64
}

// NewGenerationState returns the state a fresh price path starts from.
func NewGenerationState() GenerationState {
	return GenerationState{
		TrendDirection: 1,
		TrendStrength:  0.5,
	}
}

// Components is the breakdown of one step, kept for inspection in tests.
type Components struct {
	Trend    float64
	Spike    float64
	Reversal float64
	Noise    float64
}

// Step advances the process by one tick. It does not mutate its inputs and
// is deterministic for a deterministic rng.
func Step(state GenerationState, rng Rand, p Params, profile Profile, prev float64, now time.Time) (GenerationState, float64) {
	next, price, _ := step(state, rng, p, profile, prev, now)
	return next, price
}

func step(state GenerationState, rng Rand, p Params, profile Profile, prev float64, now time.Time) (GenerationState, float64, Components) {
	nowMs := now.UnixMilli()

	state.Session = SessionAt(now)
	state.VolatilityMultiplier = p.Sessions.Multiplier(state.Session)
	vm := state.VolatilityMultiplier

	if state.TrendDirection == 0 {
		state.TrendDirection = 1
	}

	if rng.Float64() < p.FlipProbability {
		state.TrendDirection = -state.TrendDirection
		state.TrendStrength = p.StrengthMin + rng.Float64()*(p.StrengthMax-p.StrengthMin)
		state.MomentumCounter = 0
	} else {
		state.MomentumCounter++
		if state.MomentumCounter >= p.MomentumThreshold {
			state.TrendStrength = math.Min(1.0, state.TrendStrength*p.MomentumGrowth)
		}
	}

	var c Components
	dir := float64(state.TrendDirection)
	c.Trend = dir * state.TrendStrength * profile.Trend * vm

	if rng.Float64() < p.SpikeProbability {
		magnitude := p.SpikeMin + rng.Float64()*(p.SpikeMax-p.SpikeMin)
		sign := 1.0
		if rng.Float64() < 0.5 {
			sign = -1.0
		}
		c.Spike = sign * magnitude * profile.Spike * vm
		state.LastSpikeAt = nowMs
	}

	if state.LastSpikeAt > 0 && c.Spike == 0 &&
		nowMs-state.LastSpikeAt <= p.ReversalWindow.Milliseconds() &&
		rng.Float64() < p.ReversalProbability {
		c.Reversal = -dir * (0.5 + rng.Float64()) * profile.Trend * vm
	}

	c.Noise = (rng.Float64()*2 - 1) * profile.Base * vm

	change := (c.Trend + c.Spike + c.Reversal + c.Noise) * prev
	price := Clamp(prev+change, prev, p.ClampPercent)

	recent := append(state.RecentPrices[:len(state.RecentPrices):len(state.RecentPrices)], price)
	if p.RecentCap > 0 && len(recent) > p.RecentCap {
		recent = recent[len(recent)-p.RecentCap:]
	}
	state.RecentPrices = recent

	return state, price, c
}

// Clamp bounds price to prev*(1±pct). Non-finite prices collapse to prev.
func Clamp(price, prev, pct float64) float64 {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return prev
	}
	lo := prev * (1 - pct)
	hi := prev * (1 + pct)
	if price < lo {
		return lo
	}
	if price > hi {
		return hi
	}
	return price
}

// Generator owns the state and randomness for one or more symbols.
type Generator struct {
	params  Params
	catalog *Catalog
	rng     *rand.Rand
	states  map[string]GenerationState
	warned  map[string]bool
	onWarn  func(error)
}

// NewGenerator builds a generator. A zero seed seeds from the clock.
func NewGenerator(params Params, catalog *Catalog, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if catalog == nil {
		catalog = NewCatalog(nil, nil)
	}
	return &Generator{
		params:  params,
		catalog: catalog,
		rng:     rand.New(rand.NewSource(seed)),
		states:  make(map[string]GenerationState),
		warned:  make(map[string]bool),
	}
}

// OnUnknownSymbol registers a callback fired once per unknown symbol.
func (g *Generator) OnUnknownSymbol(fn func(error)) {
	g.onWarn = fn
}

// Next produces the next price for symbol from previousPrice.
func (g *Generator) Next(previousPrice float64, symbol string, now time.Time) float64 {
	profile, err := g.catalog.LookupProfile(symbol)
	if err != nil && !g.warned[symbol] {
		g.warned[symbol] = true
		if g.onWarn != nil {
			g.onWarn(err)
		}
	}

	state, ok := g.states[symbol]
	if !ok {
		state = NewGenerationState()
	}
	next, price := Step(state, g.rng, g.params, profile, previousPrice, now)
	g.states[symbol] = next
	return price
}

// State returns a copy of the generation state for symbol.
func (g *Generator) State(symbol string) (GenerationState, bool) {
	s, ok := g.states[symbol]
	if !ok {
		return GenerationState{}, false
	}
	s.RecentPrices = append([]float64(nil), s.RecentPrices...)
	return s, true
}

// Float64 exposes the generator's rng for auxiliary draws (volume, spread).
func (g *Generator) Float64() float64 {
	return g.rng.Float64()
}

// Params returns the tuning in use.
func (g *Generator) Params() Params {
	return g.params
}
