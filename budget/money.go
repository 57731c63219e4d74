package budget

import "github.com/shopspring/decimal"

// Money helpers. All amounts flow through decimal when they are rounded
// for presentation or persisted as results, so that 概算 figures like
// 56397.84 stay exact instead of drifting through float math.

// Round2 rounds to 2 decimal places (万元 precision used everywhere).
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Round1 rounds to 1 decimal place (used for月数 and progress points).
func Round1(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(1).Float64()
	return f
}

// Percent returns part/whole*100 rounded to 2 decimals, 0 when whole is 0.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	p, _ := decimal.NewFromFloat(part).
		Div(decimal.NewFromFloat(whole)).
		Mul(decimal.NewFromInt(100)).
		Round(2).Float64()
	return p
}

// Ratio returns part/whole, 0 when whole is 0. Unrounded; callers
// compare it against thresholds.
func Ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole
}
