package loans

import (
	"crypto/sha256"
	"math/big"
	"sync"
	"time"

	"crosschainloans/core/events"
	"crosschainloans/native/token"
)

// Modifiable parameter names, shared with the RPC surface.
const (
	ParamMaxLoanAmount          = "maxLoanAmount"
	ParamMinLoanAmount          = "minLoanAmount"
	ParamBaseRatePerYear        = "baseRatePerYear"
	ParamMultiplierPerYear      = "multiplierPerYear"
	ParamLoanExpirationPeriod   = "loanExpirationPeriod"
	ParamAcceptExpirationPeriod = "acceptExpirationPeriod"
)

type engineState interface {
	ParamsGet() (*Params, bool)
	ParamsPut(*Params) error
	IsAuthorized(addr [20]byte) bool
	SetAuthorized(addr [20]byte) error
	AuthorizedAccounts() [][20]byte
	AssetGet(asset [20]byte) (*AssetType, bool)
	AssetPut(*AssetType) error
	LoanGet(id uint64) (*Loan, bool)
	LoanPut(*Loan) error
	LoanCount() uint64
	SetLoanCount(n uint64) error
	UserLoansCount(addr [20]byte) uint64
	SetUserLoansCount(addr [20]byte, n uint64) error
	AccountLoans(addr [20]byte) []uint64
	AppendAccountLoan(addr [20]byte, id uint64) error
	Token(asset [20]byte) (token.Ledger, bool)
}

// Engine owns the loan lifecycle state machine: the authorization set, the
// asset-type registry and every loan transition. It is the only component
// that moves value, always between external accounts and the module custody
// address. Mutating calls are serialized by an internal mutex and sample the
// clock exactly once, so each operation observes a single consistent
// timestamp and either commits fully or leaves state untouched.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	emitter events.Emitter
	custody [20]byte
	nowFn   func() int64
}

// NewEngine constructs a loans engine holding escrowed funds at the given
// custody address. Callers wire persistence via SetState and may override the
// emitter and clock.
func NewEngine(custody [20]byte) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		custody: custody,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Custody returns the module custody address escrowed funds are held at.
func (e *Engine) Custody() [20]byte { return e.custody }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Bootstrap seeds genesis state: default global parameters and the owner as
// the first authorized account, with the matching authorization event.
// Calling it on an already-initialised state is a no-op.
func (e *Engine) Bootstrap(owner [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.ParamsGet(); ok {
		return nil
	}
	params := DefaultParams()
	if err := e.state.ParamsPut(&params); err != nil {
		return err
	}
	if err := e.state.SetAuthorized(owner); err != nil {
		return err
	}
	e.emit(AuthorizationAdded{Account: owner})
	return nil
}

func (e *Engine) params() Params {
	if p, ok := e.state.ParamsGet(); ok && p != nil {
		return *p
	}
	return DefaultParams()
}

func (e *Engine) requireAuthorized(caller [20]byte) error {
	if !e.state.IsAuthorized(caller) {
		return ErrNotAuthorized
	}
	return nil
}

func (e *Engine) requireEnabled() error {
	if !e.params().Enabled {
		return ErrContractNotEnabled
	}
	return nil
}

// revealSecret records the candidate preimage into the slot when its sha256
// digest matches the commitment and nothing has been revealed yet.
func revealSecret(commitment [32]byte, slot *[]byte, candidate []byte) bool {
	if slot == nil || *slot != nil {
		return false
	}
	if sha256.Sum256(candidate) != commitment {
		return false
	}
	*slot = append([]byte(nil), candidate...)
	return true
}

// --- Administration ---

// AddAuthorization grants admin capability to the account. Idempotent.
func (e *Engine) AddAuthorization(caller, account [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if err := e.requireEnabled(); err != nil {
		return err
	}
	if err := e.state.SetAuthorized(account); err != nil {
		return err
	}
	e.emit(AuthorizationAdded{Account: account})
	return nil
}

// EnableContract turns the global switch on. Authorized callers only; safe to
// call regardless of the current value.
func (e *Engine) EnableContract(caller [20]byte) error {
	return e.setEnabled(caller, true)
}

// DisableContract turns the global switch off, rejecting every subsequent
// mutating call until re-enabled.
func (e *Engine) DisableContract(caller [20]byte) error {
	return e.setEnabled(caller, false)
}

func (e *Engine) setEnabled(caller [20]byte, enabled bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	params := e.params()
	params.Enabled = enabled
	if err := e.state.ParamsPut(&params); err != nil {
		return err
	}
	if enabled {
		e.emit(ContractEnabled{})
	} else {
		e.emit(ContractDisabled{})
	}
	return nil
}

// --- Asset registry ---

// AddAssetType registers (or overwrites) the lending configuration for an
// escrowed asset. Per-period rates are derived from the annualized inputs
// using the loan expiration period current at this moment.
func (e *Engine) AddAssetType(caller, asset [20]byte, maxAmount, minAmount, baseRatePerYear, multiplierPerYear *big.Int) (*AssetType, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return nil, err
	}
	if err := e.requireEnabled(); err != nil {
		return nil, err
	}
	period := e.params().LoanExpirationPeriod
	record := &AssetType{
		Contract:            asset,
		Enabled:             true,
		MinLoanAmount:       cloneBigInt(minAmount),
		MaxLoanAmount:       cloneBigInt(maxAmount),
		BaseRatePerYear:     cloneBigInt(baseRatePerYear),
		MultiplierPerYear:   cloneBigInt(multiplierPerYear),
		BaseRatePerPeriod:   RatePerPeriod(baseRatePerYear, period),
		MultiplierPerPeriod: RatePerPeriod(multiplierPerYear, period),
	}
	if err := e.state.AssetPut(record); err != nil {
		return nil, err
	}
	e.emit(AssetTypeAdded{Asset: record.Clone()})
	return record.Clone(), nil
}

// EnableAssetType re-opens an asset for new loans.
func (e *Engine) EnableAssetType(caller, asset [20]byte) error {
	return e.setAssetEnabled(caller, asset, true)
}

// DisableAssetType stops new loans against an asset. In-flight loans are
// unaffected.
func (e *Engine) DisableAssetType(caller, asset [20]byte) error {
	return e.setAssetEnabled(caller, asset, false)
}

func (e *Engine) setAssetEnabled(caller, asset [20]byte, enabled bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if err := e.requireEnabled(); err != nil {
		return err
	}
	record, ok := e.state.AssetGet(asset)
	if !ok {
		return ErrInvalidAssetType
	}
	record.Enabled = enabled
	if err := e.state.AssetPut(record); err != nil {
		return err
	}
	if enabled {
		e.emit(AssetTypeEnabled{Contract: asset})
	} else {
		e.emit(AssetTypeDisabled{Contract: asset})
	}
	return nil
}

// ModifyAssetTypeLoanParameters updates one named field of a registered asset
// type. Rate-input changes recompute the matching derived per-period rate
// using the current global loan expiration period.
func (e *Engine) ModifyAssetTypeLoanParameters(caller, asset [20]byte, param string, value *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if err := e.requireEnabled(); err != nil {
		return err
	}
	record, ok := e.state.AssetGet(asset)
	if !ok {
		return ErrInvalidAssetType
	}
	if value == nil || value.Sign() <= 0 {
		return ErrNullData
	}
	period := e.params().LoanExpirationPeriod
	switch param {
	case ParamMaxLoanAmount:
		record.MaxLoanAmount = cloneBigInt(value)
	case ParamMinLoanAmount:
		record.MinLoanAmount = cloneBigInt(value)
	case ParamBaseRatePerYear:
		record.BaseRatePerYear = cloneBigInt(value)
		record.BaseRatePerPeriod = RatePerPeriod(value, period)
	case ParamMultiplierPerYear:
		record.MultiplierPerYear = cloneBigInt(value)
		record.MultiplierPerPeriod = RatePerPeriod(value, period)
	default:
		return ErrUnrecognizedParam
	}
	if err := e.state.AssetPut(record); err != nil {
		return err
	}
	e.emit(AssetTypeParamsModified{Contract: asset, Param: param, Value: cloneBigInt(value)})
	return nil
}

// ModifyLoanParameters updates one of the global timing windows. Existing
// asset-type derived rates and in-flight loan expirations are not recomputed.
func (e *Engine) ModifyLoanParameters(caller [20]byte, param string, value uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if err := e.requireEnabled(); err != nil {
		return err
	}
	if value == 0 {
		return ErrNullData
	}
	params := e.params()
	switch param {
	case ParamLoanExpirationPeriod:
		params.LoanExpirationPeriod = value
	case ParamAcceptExpirationPeriod:
		params.AcceptExpirationPeriod = value
	default:
		return ErrUnrecognizedParam
	}
	if err := e.state.ParamsPut(&params); err != nil {
		return err
	}
	e.emit(LoanParamsModified{Param: param, Value: value})
	return nil
}

// --- Loan lifecycle ---

// CreateLoan escrows the lender's principal and opens a loan in the Funded
// state. The caller becomes the lender; the borrower stays unassigned until
// approval. Interest is frozen here from the asset's per-period rate and
// never recomputed.
func (e *Engine) CreateLoan(lender, lenderAuto [20]byte, secretHashB1, secretHashAutoB1 [32]byte, principal *big.Int, asset [20]byte, aCoinLender string) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireEnabled(); err != nil {
		return nil, err
	}
	assetType, ok := e.state.AssetGet(asset)
	if !ok || !assetType.Enabled {
		return nil, ErrAssetTypeDisabled
	}
	if principal == nil || principal.Sign() <= 0 {
		return nil, ErrInvalidPrincipal
	}
	if principal.Cmp(assetType.MinLoanAmount) < 0 || principal.Cmp(assetType.MaxLoanAmount) > 0 {
		return nil, ErrPrincipalOutOfRange
	}
	ledger, ok := e.state.Token(asset)
	if !ok {
		return nil, ErrAssetTypeDisabled
	}
	if ledger.Allowance(lender, e.custody).Cmp(principal) < 0 {
		return nil, ErrInsufficientAllowance
	}

	interest := InterestFor(principal, PeriodRate(assetType))

	// The escrow pull is the last fallible external step before the record is
	// committed; ledger balance failures propagate verbatim.
	if err := ledger.TransferFrom(e.custody, lender, e.custody, principal); err != nil {
		return nil, err
	}

	id := e.state.LoanCount() + 1
	loan := &Loan{
		ID:               id,
		Lender:           lender,
		LenderAuto:       lenderAuto,
		SecretHashB1:     secretHashB1,
		SecretHashAutoB1: secretHashAutoB1,
		Principal:        cloneBigInt(principal),
		Interest:         interest,
		Asset:            asset,
		ACoinLender:      aCoinLender,
		State:            LoanFunded,
		CreatedAt:        e.now(),
	}
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	if err := e.state.SetLoanCount(id); err != nil {
		return nil, err
	}
	if err := e.state.SetUserLoansCount(lender, e.state.UserLoansCount(lender)+1); err != nil {
		return nil, err
	}
	if err := e.state.AppendAccountLoan(lender, id); err != nil {
		return nil, err
	}
	e.emit(LoanCreated{Loan: loan.Clone()})
	return loan.Clone(), nil
}

// SetBorrowerAndApprove assigns the borrower, fixes the borrower-side secret
// commitment and arms both expiration windows. Only the lender or lenderAuto
// may approve, and only from the Funded state, so the transition fires at
// most once per loan.
func (e *Engine) SetBorrowerAndApprove(caller [20]byte, id uint64, borrower [20]byte, secretHashA1 [32]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireEnabled(); err != nil {
		return err
	}
	loan, ok := e.state.LoanGet(id)
	if !ok {
		return ErrLoanNotFound
	}
	if caller != loan.Lender && caller != loan.LenderAuto {
		return ErrNotAuthorized
	}
	if loan.State != LoanFunded {
		return ErrLoanNotFunded
	}
	params := e.params()
	now := e.now()
	loan.Borrower = borrower
	loan.SecretHashA1 = secretHashA1
	loan.LoanExpiration = now + int64(params.LoanExpirationPeriod)
	loan.AcceptExpiration = now + int64(params.LoanExpirationPeriod) + int64(params.AcceptExpirationPeriod)
	loan.State = LoanApproved
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}
	e.emit(LoanApprovedEvent{Loan: loan.Clone()})
	return nil
}

// Withdraw releases the escrowed principal to the borrower against the
// revealed borrower secret. Knowledge of the preimage is the sole
// authorization; caller identity is not checked.
func (e *Engine) Withdraw(id uint64, secretA1 []byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireEnabled(); err != nil {
		return err
	}
	loan, ok := e.state.LoanGet(id)
	if !ok {
		return ErrLoanNotFound
	}
	if loan.State != LoanApproved {
		return ErrLoanNotApproved
	}
	if e.now() > loan.LoanExpiration {
		return ErrLoanExpired
	}
	if !revealSecret(loan.SecretHashA1, &loan.SecretA1, secretA1) {
		return ErrInvalidSecretA1
	}
	ledger, ok := e.state.Token(loan.Asset)
	if !ok {
		return ErrAssetTypeDisabled
	}
	if err := ledger.Transfer(e.custody, loan.Borrower, loan.Principal); err != nil {
		return err
	}
	loan.State = LoanWithdrawn
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}
	e.emit(LoanPrincipalWithdrawn{Loan: loan.Clone()})
	return nil
}

// Payback pulls principal plus frozen interest from the caller into custody
// and closes the loan as Paid. Callers other than the borrower may repay on
// their behalf; the transfer is the only check.
func (e *Engine) Payback(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireEnabled(); err != nil {
		return err
	}
	loan, ok := e.state.LoanGet(id)
	if !ok {
		return ErrLoanNotFound
	}
	if loan.State != LoanWithdrawn {
		return ErrInvalidLoanState
	}
	if e.now() > loan.LoanExpiration {
		return ErrLoanExpired
	}
	repay := new(big.Int).Add(loan.Principal, loan.Interest)
	ledger, ok := e.state.Token(loan.Asset)
	if !ok {
		return ErrAssetTypeDisabled
	}
	if ledger.Allowance(caller, e.custody).Cmp(repay) < 0 {
		return ErrInsufficientAllowance
	}
	if err := ledger.TransferFrom(e.custody, caller, e.custody, repay); err != nil {
		return err
	}
	loan.State = LoanPaid
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}
	e.emit(LoanPaidBack{Loan: loan.Clone(), Amount: repay})
	return nil
}

// CancelLoanBeforePrincipalWithdraw refunds the escrowed principal to the
// lender against the revealed lender secret. Available only while the
// principal is still in custody (Funded or Approved).
func (e *Engine) CancelLoanBeforePrincipalWithdraw(id uint64, secretB1 []byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireEnabled(); err != nil {
		return err
	}
	loan, ok := e.state.LoanGet(id)
	if !ok {
		return ErrLoanNotFound
	}
	if loan.State != LoanFunded && loan.State != LoanApproved {
		return ErrPrincipalWithdrawn
	}
	if !revealSecret(loan.SecretHashB1, &loan.SecretB1, secretB1) {
		return ErrInvalidSecretB1
	}
	ledger, ok := e.state.Token(loan.Asset)
	if !ok {
		return ErrAssetTypeDisabled
	}
	refund := cloneBigInt(loan.Principal)
	if err := ledger.Transfer(e.custody, loan.Lender, refund); err != nil {
		return err
	}
	loan.Principal = big.NewInt(0)
	loan.State = LoanCanceled
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}
	e.emit(LoanCanceledEvent{Loan: loan.Clone(), Refund: refund})
	return nil
}

// --- Read accessors ---

// FetchLoan returns a copy of the loan record.
func (e *Engine) FetchLoan(id uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, ok := e.state.LoanGet(id)
	if !ok {
		return nil, ErrLoanNotFound
	}
	return loan.Clone(), nil
}

// GetAssetType returns a copy of the asset configuration.
func (e *Engine) GetAssetType(asset [20]byte) (*AssetType, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok := e.state.AssetGet(asset)
	if !ok {
		return nil, ErrInvalidAssetType
	}
	return record.Clone(), nil
}

// GetAssetInterestRate returns the asset's fixed per-period rate.
func (e *Engine) GetAssetInterestRate(asset [20]byte) (*big.Int, error) {
	record, err := e.GetAssetType(asset)
	if err != nil {
		return nil, err
	}
	return PeriodRate(record), nil
}

// UserLoansCount returns how many loans the account has created as lender.
// Off-chain secret derivation uses it as a nonce.
func (e *Engine) UserLoansCount(account [20]byte) uint64 {
	if e == nil || e.state == nil {
		return 0
	}
	return e.state.UserLoansCount(account)
}

// GetAccountLoans returns the ids of loans created by the account, in
// creation order.
func (e *Engine) GetAccountLoans(account [20]byte) []uint64 {
	if e == nil || e.state == nil {
		return nil
	}
	return e.state.AccountLoans(account)
}

// AuthorizedAccounts returns every account holding admin capability, in
// authorization order.
func (e *Engine) AuthorizedAccounts() [][20]byte {
	if e == nil || e.state == nil {
		return nil
	}
	return e.state.AuthorizedAccounts()
}

// IsAuthorized reports whether the account holds admin capability.
func (e *Engine) IsAuthorized(account [20]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.IsAuthorized(account)
}

// ContractEnabled reports the global switch.
func (e *Engine) ContractEnabled() bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.params().Enabled
}

// LoanExpirationPeriod returns the current global loan window in seconds.
func (e *Engine) LoanExpirationPeriod() uint64 {
	if e == nil || e.state == nil {
		return 0
	}
	return e.params().LoanExpirationPeriod
}

// AcceptExpirationPeriod returns the current global accept window in seconds.
func (e *Engine) AcceptExpirationPeriod() uint64 {
	if e == nil || e.state == nil {
		return 0
	}
	return e.params().AcceptExpirationPeriod
}
