package indicator

// RSI uses a simple average of gains and losses over the most recent period
// price changes. It needs period+1 closes. There is no Wilder smoothing.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return nan
	}
	window := closes[len(closes)-period-1:]

	gain, loss := 0.0, 0.0
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}

	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
