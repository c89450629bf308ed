package loans

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"crosschainloans/core/types"
)

const (
	EventTypeAuthorizationAdded = "loans.authorization.added"
	EventTypeContractEnabled    = "loans.contract.enabled"
	EventTypeContractDisabled   = "loans.contract.disabled"
	EventTypeAssetAdded         = "loans.asset.added"
	EventTypeAssetEnabled       = "loans.asset.enabled"
	EventTypeAssetDisabled      = "loans.asset.disabled"
	EventTypeAssetParamModified = "loans.asset.params_modified"
	EventTypeParamsModified     = "loans.params_modified"
	EventTypeLoanCreated        = "loans.created"
	EventTypeLoanApproved       = "loans.approved"
	EventTypeLoanWithdrawn      = "loans.withdrawn"
	EventTypeLoanPayback        = "loans.payback"
	EventTypeLoanCanceled       = "loans.canceled"
)

func attrAddress(addr [20]byte) string { return "0x" + hex.EncodeToString(addr[:]) }

func attrHash(h [32]byte) string { return "0x" + hex.EncodeToString(h[:]) }

func attrBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// AuthorizationAdded records a new admin account.
type AuthorizationAdded struct {
	Account [20]byte
}

func (AuthorizationAdded) EventType() string { return EventTypeAuthorizationAdded }

func (evt AuthorizationAdded) Event() *types.Event {
	return &types.Event{
		Type: EventTypeAuthorizationAdded,
		Attributes: map[string]string{
			"account": attrAddress(evt.Account),
		},
	}
}

// ContractEnabled records the global switch turning on.
type ContractEnabled struct{}

func (ContractEnabled) EventType() string { return EventTypeContractEnabled }

func (ContractEnabled) Event() *types.Event {
	return &types.Event{Type: EventTypeContractEnabled, Attributes: map[string]string{}}
}

// ContractDisabled records the global switch turning off.
type ContractDisabled struct{}

func (ContractDisabled) EventType() string { return EventTypeContractDisabled }

func (ContractDisabled) Event() *types.Event {
	return &types.Event{Type: EventTypeContractDisabled, Attributes: map[string]string{}}
}

// AssetTypeAdded records a new or overwritten asset registration.
type AssetTypeAdded struct {
	Asset *AssetType
}

func (AssetTypeAdded) EventType() string { return EventTypeAssetAdded }

func (evt AssetTypeAdded) Event() *types.Event {
	attrs := map[string]string{}
	if evt.Asset != nil {
		attrs["contract"] = attrAddress(evt.Asset.Contract)
		attrs["minLoanAmount"] = attrBig(evt.Asset.MinLoanAmount)
		attrs["maxLoanAmount"] = attrBig(evt.Asset.MaxLoanAmount)
		attrs["baseRatePerYear"] = attrBig(evt.Asset.BaseRatePerYear)
		attrs["multiplierPerYear"] = attrBig(evt.Asset.MultiplierPerYear)
	}
	return &types.Event{Type: EventTypeAssetAdded, Attributes: attrs}
}

// AssetTypeEnabled records an asset re-opening for new loans.
type AssetTypeEnabled struct {
	Contract [20]byte
}

func (AssetTypeEnabled) EventType() string { return EventTypeAssetEnabled }

func (evt AssetTypeEnabled) Event() *types.Event {
	return &types.Event{
		Type: EventTypeAssetEnabled,
		Attributes: map[string]string{
			"contract": attrAddress(evt.Contract),
		},
	}
}

// AssetTypeDisabled records an asset closing for new loans.
type AssetTypeDisabled struct {
	Contract [20]byte
}

func (AssetTypeDisabled) EventType() string { return EventTypeAssetDisabled }

func (evt AssetTypeDisabled) Event() *types.Event {
	return &types.Event{
		Type: EventTypeAssetDisabled,
		Attributes: map[string]string{
			"contract": attrAddress(evt.Contract),
		},
	}
}

// AssetTypeParamsModified records a single asset parameter change.
type AssetTypeParamsModified struct {
	Contract [20]byte
	Param    string
	Value    *big.Int
}

func (AssetTypeParamsModified) EventType() string { return EventTypeAssetParamModified }

func (evt AssetTypeParamsModified) Event() *types.Event {
	return &types.Event{
		Type: EventTypeAssetParamModified,
		Attributes: map[string]string{
			"contract": attrAddress(evt.Contract),
			"param":    evt.Param,
			"value":    attrBig(evt.Value),
		},
	}
}

// LoanParamsModified records a global timing window change.
type LoanParamsModified struct {
	Param string
	Value uint64
}

func (LoanParamsModified) EventType() string { return EventTypeParamsModified }

func (evt LoanParamsModified) Event() *types.Event {
	return &types.Event{
		Type: EventTypeParamsModified,
		Attributes: map[string]string{
			"param": evt.Param,
			"value": strconv.FormatUint(evt.Value, 10),
		},
	}
}

// LoanCreated records principal escrowed into a new Funded loan.
type LoanCreated struct {
	Loan *Loan
}

func (LoanCreated) EventType() string { return EventTypeLoanCreated }

func (evt LoanCreated) Event() *types.Event {
	attrs := map[string]string{}
	if evt.Loan != nil {
		attrs["loanId"] = strconv.FormatUint(evt.Loan.ID, 10)
		attrs["lender"] = attrAddress(evt.Loan.Lender)
		attrs["asset"] = attrAddress(evt.Loan.Asset)
		attrs["principal"] = attrBig(evt.Loan.Principal)
		attrs["interest"] = attrBig(evt.Loan.Interest)
		attrs["secretHashB1"] = attrHash(evt.Loan.SecretHashB1)
		attrs["aCoinLender"] = evt.Loan.ACoinLender
	}
	return &types.Event{Type: EventTypeLoanCreated, Attributes: attrs}
}

// LoanApprovedEvent records borrower assignment and window arming.
type LoanApprovedEvent struct {
	Loan *Loan
}

func (LoanApprovedEvent) EventType() string { return EventTypeLoanApproved }

func (evt LoanApprovedEvent) Event() *types.Event {
	attrs := map[string]string{}
	if evt.Loan != nil {
		attrs["loanId"] = strconv.FormatUint(evt.Loan.ID, 10)
		attrs["borrower"] = attrAddress(evt.Loan.Borrower)
		attrs["secretHashA1"] = attrHash(evt.Loan.SecretHashA1)
		attrs["loanExpiration"] = strconv.FormatInt(evt.Loan.LoanExpiration, 10)
		attrs["acceptExpiration"] = strconv.FormatInt(evt.Loan.AcceptExpiration, 10)
	}
	return &types.Event{Type: EventTypeLoanApproved, Attributes: attrs}
}

// LoanPrincipalWithdrawn records the principal release to the borrower.
type LoanPrincipalWithdrawn struct {
	Loan *Loan
}

func (LoanPrincipalWithdrawn) EventType() string { return EventTypeLoanWithdrawn }

func (evt LoanPrincipalWithdrawn) Event() *types.Event {
	attrs := map[string]string{}
	if evt.Loan != nil {
		attrs["loanId"] = strconv.FormatUint(evt.Loan.ID, 10)
		attrs["borrower"] = attrAddress(evt.Loan.Borrower)
		attrs["principal"] = attrBig(evt.Loan.Principal)
		attrs["secretA1"] = "0x" + hex.EncodeToString(evt.Loan.SecretA1)
	}
	return &types.Event{Type: EventTypeLoanWithdrawn, Attributes: attrs}
}

// LoanPaidBack records repayment of principal plus interest into custody.
type LoanPaidBack struct {
	Loan   *Loan
	Amount *big.Int
}

func (LoanPaidBack) EventType() string { return EventTypeLoanPayback }

func (evt LoanPaidBack) Event() *types.Event {
	attrs := map[string]string{
		"amount": attrBig(evt.Amount),
	}
	if evt.Loan != nil {
		attrs["loanId"] = strconv.FormatUint(evt.Loan.ID, 10)
		attrs["lender"] = attrAddress(evt.Loan.Lender)
	}
	return &types.Event{Type: EventTypeLoanPayback, Attributes: attrs}
}

// LoanCanceledEvent records the pre-withdrawal refund to the lender.
type LoanCanceledEvent struct {
	Loan   *Loan
	Refund *big.Int
}

func (LoanCanceledEvent) EventType() string { return EventTypeLoanCanceled }

func (evt LoanCanceledEvent) Event() *types.Event {
	attrs := map[string]string{
		"refund": attrBig(evt.Refund),
	}
	if evt.Loan != nil {
		attrs["loanId"] = strconv.FormatUint(evt.Loan.ID, 10)
		attrs["lender"] = attrAddress(evt.Loan.Lender)
		attrs["secretB1"] = "0x" + hex.EncodeToString(evt.Loan.SecretB1)
	}
	return &types.Event{Type: EventTypeLoanCanceled, Attributes: attrs}
}
