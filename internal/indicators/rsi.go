package indicators

// Epsilon floors zero denominators in ratio computations.
const Epsilon = 1e-12

// RSI computes a basic Relative Strength Index with smoothing disabled for simplicity.
// A window with no losses floors the loss to Epsilon instead of dividing by zero.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 50
	}

	gain := 0.0
	loss := 0.0
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}

	if gain == 0 && loss == 0 {
		return 50
	}
	if loss < Epsilon {
		loss = Epsilon
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}
