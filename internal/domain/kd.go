package domain

import "github.com/shopspring/decimal"

// ComputeKD returns kills/deaths rounded half-away-from-zero to 2 places,
// or kills when deaths is zero.
func ComputeKD(kills, deaths int64) float64 {
	if deaths == 0 {
		return float64(kills)
	}
	kd, _ := decimal.NewFromInt(kills).
		DivRound(decimal.NewFromInt(deaths), 2).
		Float64()
	return kd
}
