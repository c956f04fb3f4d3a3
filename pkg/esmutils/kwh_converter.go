package esmutils

import "math"

// No negative values
func KwhToWh(kwh float64) uint64 {
	if kwh < 0 {
		return 0
	}
	return uint64(math.Round(kwh * 1000))
}

func WhToKwh(wh uint64) float64 {
	return float64(wh) / 1000
}
