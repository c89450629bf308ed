package loans

import "errors"

// Every failure carries the machine-matchable reason code shared with the
// counterpart-chain contract, so clients can branch deterministically on
// errors.Is regardless of which side of the protocol surfaced them.
var (
	// Authorization.
	ErrNotAuthorized = errors.New("loans: account-not-authorized")

	// Lifecycle.
	ErrContractNotEnabled = errors.New("loans: contract-not-enabled")
	ErrAssetTypeDisabled  = errors.New("loans: asset-type-disabled")

	// Validation.
	ErrNullData            = errors.New("loans: null-data")
	ErrInvalidAssetType    = errors.New("loans: invalid-assetType")
	ErrUnrecognizedParam   = errors.New("loans: modify-unrecognized-param")
	ErrInvalidPrincipal    = errors.New("loans: invalid-principal-amount")
	ErrPrincipalOutOfRange = errors.New("loans: invalid-principal-range")

	// Escrow pre-check. Ledger balance failures are propagated verbatim and
	// have no sentinel here.
	ErrInsufficientAllowance = errors.New("loans: insufficient-token-allowance")

	// State.
	ErrLoanNotFound       = errors.New("loans: loan-not-found")
	ErrLoanNotFunded      = errors.New("loans: loan-not-funded")
	ErrLoanNotApproved    = errors.New("loans: loan-not-approved")
	ErrInvalidLoanState   = errors.New("loans: invalid-loan-state")
	ErrPrincipalWithdrawn = errors.New("loans: principal-withdrawn")

	// Temporal.
	ErrLoanExpired = errors.New("loans: loan-expired")

	// Secret gates.
	ErrInvalidSecretA1 = errors.New("loans: invalid-secret-A1")
	ErrInvalidSecretB1 = errors.New("loans: invalid-secret-B1")
)

var errNilState = errors.New("loans engine: state not configured")
