package indicator

// EMA seeds with the first close of the last-period window and then applies
// the multiplier 2/(period+1) across the remaining period-1 closes.
func EMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return nan
	}
	window := closes[len(closes)-period:]
	multiplier := 2.0 / float64(period+1)

	ema := window[0]
	for _, v := range window[1:] {
		ema = (v-ema)*multiplier + ema
	}
	return ema
}
