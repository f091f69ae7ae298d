package indicators

import "wager-core/internal/candles"

// SMA is the mean of the last period values, or 0 when there are fewer.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// Closes extracts closing prices from a candle sequence.
func Closes(cs []candles.Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}
