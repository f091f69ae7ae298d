package indicators

import (
	"math"

	"wager-core/internal/candles"
)

// Trend is the coarse direction of recent candles.
type Trend string

const (
	Bullish  Trend = "bullish"
	Bearish  Trend = "bearish"
	Sideways Trend = "sideways"
)

const (
	// MinCandles is the smallest window the classifier accepts.
	MinCandles = 12
	// Window is how many of the most recent candles are inspected.
	Window = 15
	// DefaultK scales volatility into the sideways band.
	DefaultK = 0.12
	// RSIPeriod is the lookback for the RSI reported by Analyze.
	RSIPeriod = 14
)

// Analysis is the classifier output plus the statistics behind it.
type Analysis struct {
	Trend      Trend   `json:"trend"`
	AvgChange  float64 `json:"avg_change"`
	Volatility float64 `json:"volatility"`
	RSI        float64 `json:"rsi"`
	SMA        float64 `json:"sma"`
	Candles    int     `json:"candles"`
	Ready      bool    `json:"ready"`
}

// Classify returns the trend of the last Window candles. With fewer than
// MinCandles it returns Sideways.
func Classify(recent []candles.Candle, k float64) Trend {
	return Analyze(recent, k).Trend
}

// Analyze classifies recent candles and reports the deltas' mean and
// population standard deviation.
func Analyze(recent []candles.Candle, k float64) Analysis {
	a := Analysis{Trend: Sideways, RSI: 50, Candles: len(recent)}
	if len(recent) < MinCandles {
		return a
	}
	if len(recent) > Window {
		recent = recent[len(recent)-Window:]
	}

	closes := Closes(recent)

	deltas := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		deltas = append(deltas, closes[i]-closes[i-1])
	}

	var sum float64
	for _, d := range deltas {
		sum += d
	}
	avg := sum / float64(len(deltas))

	var sq float64
	for _, d := range deltas {
		sq += (d - avg) * (d - avg)
	}
	vol := math.Sqrt(sq / float64(len(deltas)))

	a.Ready = true
	a.AvgChange = avg
	a.Volatility = vol
	a.RSI = RSI(closes, min(RSIPeriod, len(closes)-1))
	a.SMA = SMA(closes, len(closes))

	switch {
	case math.Abs(avg) < vol*k:
		a.Trend = Sideways
	case avg > 0:
		a.Trend = Bullish
	case avg < 0:
		a.Trend = Bearish
	default:
		a.Trend = Sideways
	}
	return a
}

// QuoteProfit adjusts the base profit percent offered on a bet: bets with
// the trend pay less, bets against it pay more. direction is "higher" or
// "lower". The result is clamped to [60, 95].
func QuoteProfit(base float64, trend Trend, direction string) float64 {
	q := base
	withTrend := (trend == Bullish && direction == "higher") || (trend == Bearish && direction == "lower")
	against := (trend == Bullish && direction == "lower") || (trend == Bearish && direction == "higher")
	switch {
	case withTrend:
		q = base * 0.94
	case against:
		q = base * 1.08
	}
	return math.Round(math.Max(60, math.Min(95, q))*100) / 100
}
