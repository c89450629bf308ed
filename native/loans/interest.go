package loans

import "math/big"

// secondsPerYear is the Gregorian year length used by the counterpart-chain
// contract when scaling annualized rates; both sides must agree or frozen
// interest values diverge.
const secondsPerYear = 31_556_952

// rateScale is the fixed-point denominator for all rate inputs (1e18).
var rateScale = big.NewInt(1_000_000_000_000_000_000)

// RatePerPeriod scales an annualized fixed-point rate down to one loan
// expiration period of the given length in seconds, flooring the division.
func RatePerPeriod(ratePerYear *big.Int, periodSeconds uint64) *big.Int {
	if ratePerYear == nil || ratePerYear.Sign() <= 0 || periodSeconds == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(ratePerYear, new(big.Int).SetUint64(periodSeconds))
	return out.Quo(out, big.NewInt(secondsPerYear))
}

// PeriodRate returns the asset's total fixed per-period rate, the sum of the
// derived base and multiplier components. Pure given the registry snapshot;
// the engine reads it exactly once per loan, at creation, to freeze the
// interest owed.
func PeriodRate(asset *AssetType) *big.Int {
	if asset == nil {
		return big.NewInt(0)
	}
	rate := new(big.Int).Add(cloneBigInt(asset.BaseRatePerPeriod), cloneBigInt(asset.MultiplierPerPeriod))
	return rate
}

// InterestFor computes the interest owed on a principal at the given
// per-period rate: floor(principal * rate / 1e18).
func InterestFor(principal, periodRate *big.Int) *big.Int {
	if principal == nil || principal.Sign() <= 0 || periodRate == nil || periodRate.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(principal, periodRate)
	return out.Quo(out, rateScale)
}
