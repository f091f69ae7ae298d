package market

import "time"

// SessionBand is the coarse volatility regime derived from the wall-clock hour.
type SessionBand int

const (
	SessionLow SessionBand = iota
	SessionActive
	SessionHigh
)

func (s SessionBand) String() string {
	switch s {
	case SessionHigh:
		return "high"
	case SessionActive:
		return "active"
	default:
		return "low"
	}
}

// SessionMultipliers maps each band to its volatility multiplier.
type SessionMultipliers struct {
	Low    float64
	Active float64
	High   float64
}

// SessionAt classifies t by its hour: 08-16 high, 17-22 active, otherwise low.
func SessionAt(t time.Time) SessionBand {
	h := t.Hour()
	switch {
	case h >= 8 && h <= 16:
		return SessionHigh
	case h >= 17 && h <= 22:
		return SessionActive
	default:
		return SessionLow
	}
}

// Multiplier returns the multiplier for band.
func (m SessionMultipliers) Multiplier(band SessionBand) float64 {
	switch band {
	case SessionHigh:
		return m.High
	case SessionActive:
		return m.Active
	default:
		return m.Low
	}
}
