package loans

import (
	"fmt"
	"math/big"
)

// LoanState enumerates the lifecycle states of a loan. The numbering matches
// the on-chain contract this module settles against, so audit records stay
// comparable across chains. PaybackRefunded and Closed are reserved for
// future settlement paths and are never entered by the current engine.
type LoanState uint8

const (
	LoanOpen LoanState = iota
	LoanFunded
	LoanApproved
	LoanWithdrawn
	LoanPaid
	LoanPaybackRefunded
	LoanClosed
	LoanCanceled
)

// Valid reports whether the state value is within the supported range.
func (s LoanState) Valid() bool {
	return s <= LoanCanceled
}

// Terminal reports whether the state admits no further transitions.
func (s LoanState) Terminal() bool {
	return s == LoanPaid || s == LoanCanceled
}

// String returns the canonical lowercase state name.
func (s LoanState) String() string {
	switch s {
	case LoanOpen:
		return "open"
	case LoanFunded:
		return "funded"
	case LoanApproved:
		return "approved"
	case LoanWithdrawn:
		return "withdrawn"
	case LoanPaid:
		return "paid"
	case LoanPaybackRefunded:
		return "payback_refunded"
	case LoanClosed:
		return "closed"
	case LoanCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Loan captures the actors, commitments and accounting of a single loan. IDs
// are assigned sequentially starting at 1. Records are never deleted;
// terminal states are retained for audit.
type Loan struct {
	ID uint64

	// Actors. The borrower stays zero until approval assigns one. LenderAuto
	// is an optional secondary account co-authorized for lender-side actions.
	Borrower   [20]byte
	Lender     [20]byte
	LenderAuto [20]byte

	// Secret commitments. B1 and AutoB1 are fixed at creation by the lender
	// side; A1 is fixed at approval.
	SecretHashA1     [32]byte
	SecretHashB1     [32]byte
	SecretHashAutoB1 [32]byte

	// Revealed preimages. Each is recorded at most once, and only when its
	// hash matches the stored commitment.
	SecretA1     []byte
	SecretB1     []byte
	SecretAutoB1 []byte

	// Absolute unix timestamps, zero until approval.
	LoanExpiration   int64
	AcceptExpiration int64

	// Principal is fixed at creation and zeroed on cancellation. Interest is
	// frozen at creation from the asset's per-period rate and never
	// recomputed.
	Principal *big.Int
	Interest  *big.Int

	// Asset identifies the escrowed-asset ledger backing the loan.
	Asset [20]byte

	// ACoinLender is an opaque settlement destination on the counterpart
	// chain. Recorded for off-chain bookkeeping only; never used in transfer
	// logic.
	ACoinLender string

	State     LoanState
	CreatedAt int64
}

// Clone returns a deep copy of the loan so callers can safely mutate the copy
// without affecting the stored instance.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Principal = cloneBigInt(l.Principal)
	clone.Interest = cloneBigInt(l.Interest)
	clone.SecretA1 = append([]byte(nil), l.SecretA1...)
	clone.SecretB1 = append([]byte(nil), l.SecretB1...)
	clone.SecretAutoB1 = append([]byte(nil), l.SecretAutoB1...)
	return &clone
}

// AssetType configures loan-size bounds and the interest-rate curve for one
// escrowed asset. The per-period rates are derived from the annualized inputs
// using the global loan expiration period current at modification time; a
// later change to the global period does not retroactively update them.
type AssetType struct {
	Contract [20]byte
	Enabled  bool

	MinLoanAmount *big.Int
	MaxLoanAmount *big.Int

	BaseRatePerYear   *big.Int
	MultiplierPerYear *big.Int

	BaseRatePerPeriod   *big.Int
	MultiplierPerPeriod *big.Int
}

// Clone returns a deep copy of the asset type.
func (a *AssetType) Clone() *AssetType {
	if a == nil {
		return nil
	}
	clone := *a
	clone.MinLoanAmount = cloneBigInt(a.MinLoanAmount)
	clone.MaxLoanAmount = cloneBigInt(a.MaxLoanAmount)
	clone.BaseRatePerYear = cloneBigInt(a.BaseRatePerYear)
	clone.MultiplierPerYear = cloneBigInt(a.MultiplierPerYear)
	clone.BaseRatePerPeriod = cloneBigInt(a.BaseRatePerPeriod)
	clone.MultiplierPerPeriod = cloneBigInt(a.MultiplierPerPeriod)
	return &clone
}

// Default global timing parameters, in seconds.
const (
	DefaultLoanExpirationPeriod   uint64 = 2_592_000 // 30 days
	DefaultAcceptExpirationPeriod uint64 = 259_200   // 3 days
)

// Params holds the global configuration shared by every loan: the master
// enable switch and the two timing windows. Both durations are strictly
// positive.
type Params struct {
	Enabled                bool
	LoanExpirationPeriod   uint64
	AcceptExpirationPeriod uint64
}

// DefaultParams returns the genesis configuration: contract enabled with the
// standard 30-day loan window and 3-day accept window.
func DefaultParams() Params {
	return Params{
		Enabled:                true,
		LoanExpirationPeriod:   DefaultLoanExpirationPeriod,
		AcceptExpirationPeriod: DefaultAcceptExpirationPeriod,
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
