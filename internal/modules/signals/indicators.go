package signals

import (
	"github.com/markcheno/go-talib"
)

// BollingerBands holds the three band values for the latest close
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// bollingerBands calculates Bollinger Bands over closing prices.
// Returns nil when there is not enough history.
func bollingerBands(closes []float64, length int, stdDevMultiplier float64) *BollingerBands {
	if len(closes) < length {
		return nil
	}

	// MAType 0 = SMA
	upper, middle, lower := talib.BBands(closes, length, stdDevMultiplier, stdDevMultiplier, 0)

	if len(upper) > 0 && !isNaN(upper[len(upper)-1]) {
		return &BollingerBands{
			Upper:  upper[len(upper)-1],
			Middle: middle[len(middle)-1],
			Lower:  lower[len(lower)-1],
		}
	}

	return nil
}

// rsi calculates the latest Relative Strength Index value (0-100).
// Returns nil when there is not enough history.
func rsi(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	values := talib.Rsi(closes, length)
	if len(values) > 0 && !isNaN(values[len(values)-1]) {
		result := values[len(values)-1]
		return &result
	}

	return nil
}

// ema calculates the latest Exponential Moving Average value.
// Falls back to the mean when history is shorter than the period.
func ema(closes []float64, length int) *float64 {
	if len(closes) == 0 {
		return nil
	}

	if len(closes) < length {
		m := mean(closes)
		return &m
	}

	values := talib.Ema(closes, length)
	if len(values) > 0 && !isNaN(values[len(values)-1]) {
		result := values[len(values)-1]
		return &result
	}

	m := mean(closes[len(closes)-length:])
	return &m
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func isNaN(f float64) bool {
	return f != f
}
