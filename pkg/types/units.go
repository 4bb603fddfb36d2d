package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is assumed for tokens whose precision is unknown
const DefaultDecimals uint8 = 18

// ParseUnits converts a human amount to the token's smallest unit,
// truncating any precision beyond the token decimals
func ParseUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FormatUnits converts a smallest-unit amount to a human decimal
func FormatUnits(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}
