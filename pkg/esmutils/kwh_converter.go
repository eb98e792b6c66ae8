package esmutils

func WhToKwh(wh uint32) float64 {
	return float64(wh) / 1000
}
