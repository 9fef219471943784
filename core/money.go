package core

import "github.com/shopspring/decimal"

// RoundMoney rounds a derived monetary total to 2 decimal places.
// Every monetary metric rounds exactly once, on its final value.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ClampMass floors a derived mass total at zero. Computed inventory never
// reports negative: a deficit is clamped, not surfaced, per the display
// contract. See Engine.StockDeficit for the diagnostic that does surface it.
func ClampMass(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
