package indicator

// FibLevel returns the retracement price high - (high-low)*ratio.
func FibLevel(high, low, ratio float64) float64 {
	return high - (high-low)*ratio
}
