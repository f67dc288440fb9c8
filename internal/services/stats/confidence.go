package stats

// SampleConfidence grows linearly with n until saturation and is capped at ceiling.
func SampleConfidence(n float64, saturation float64, ceiling float64) float64 {
	if n <= 0 || saturation <= 0 {
		return 0
	}
	c := n / saturation
	if c > ceiling {
		c = ceiling
	}
	return Clamp01(c)
}
