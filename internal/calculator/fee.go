package calculator

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeeBreakdown is the split of one cycle's pool between platform and recipient.
// Gross == Fee + Net always holds.
type FeeBreakdown struct {
	Gross         int64
	Fee           int64
	Net           int64
	FeePercentage decimal.Decimal
}

// CalculateFee computes the pool for a cycle and the platform's share of it.
//
// gross = contributionAmount × activeMembers
// fee   = round(gross × feePercentage / 100), half away from zero
// net   = gross − fee
//
// Amounts are minor currency units; the percentage is exact decimal so no
// floating point touches money.
func CalculateFee(contributionAmount int64, activeMembers int, feePercentage decimal.Decimal) (FeeBreakdown, error) {
	if contributionAmount <= 0 {
		return FeeBreakdown{}, fmt.Errorf("contribution amount must be positive, got %d", contributionAmount)
	}
	if activeMembers <= 0 {
		return FeeBreakdown{}, fmt.Errorf("must have at least one active member")
	}
	if feePercentage.IsNegative() || feePercentage.GreaterThan(hundred) {
		return FeeBreakdown{}, fmt.Errorf("fee percentage must be between 0 and 100, got %s", feePercentage)
	}

	gross := decimal.NewFromInt(contributionAmount).Mul(decimal.NewFromInt(int64(activeMembers)))
	if gross.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return FeeBreakdown{}, fmt.Errorf("pool of %d × %d overflows", contributionAmount, activeMembers)
	}

	fee := gross.Mul(feePercentage).Div(hundred).Round(0)

	g := gross.IntPart()
	f := fee.IntPart()
	return FeeBreakdown{
		Gross:         g,
		Fee:           f,
		Net:           g - f,
		FeePercentage: feePercentage,
	}, nil
}
