package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"crosschainloans/native/loans"
)

const (
	codeLoansInvalidParams = -32030
	codeLoansForbidden     = -32031
	codeLoansNotFound      = -32032
	codeLoansConflict      = -32033
	codeLoansInternal      = -32034
)

type callerParams struct {
	Caller string `json:"caller"`
}

type authorizationParams struct {
	Caller  string `json:"caller"`
	Account string `json:"account"`
}

type assetParams struct {
	Contract string `json:"contract"`
}

type addAssetTypeParams struct {
	Caller            string `json:"caller"`
	Contract          string `json:"contract"`
	MaxLoanAmount     string `json:"maxLoanAmount"`
	MinLoanAmount     string `json:"minLoanAmount"`
	BaseRatePerYear   string `json:"baseRatePerYear"`
	MultiplierPerYear string `json:"multiplierPerYear"`
}

type assetActorParams struct {
	Caller   string `json:"caller"`
	Contract string `json:"contract"`
}

type modifyAssetParams struct {
	Caller   string `json:"caller"`
	Contract string `json:"contract"`
	Param    string `json:"param"`
	Value    string `json:"value"`
}

type modifyLoanParams struct {
	Caller string `json:"caller"`
	Param  string `json:"param"`
	Value  uint64 `json:"value"`
}

type createLoanParams struct {
	Lender           string `json:"lender"`
	LenderAuto       string `json:"lenderAuto,omitempty"`
	SecretHashB1     string `json:"secretHashB1"`
	SecretHashAutoB1 string `json:"secretHashAutoB1,omitempty"`
	Principal        string `json:"principal"`
	Contract         string `json:"contract"`
	ACoinLender      string `json:"aCoinLender,omitempty"`
}

type approveParams struct {
	Caller       string `json:"caller"`
	LoanID       uint64 `json:"loanId"`
	Borrower     string `json:"borrower"`
	SecretHashA1 string `json:"secretHashA1"`
}

type withdrawParams struct {
	LoanID   uint64 `json:"loanId"`
	SecretA1 string `json:"secretA1"`
}

type paybackParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
}

type cancelParams struct {
	LoanID   uint64 `json:"loanId"`
	SecretB1 string `json:"secretB1"`
}

type loanIDParams struct {
	LoanID uint64 `json:"loanId"`
}

type accountParams struct {
	Account string `json:"account"`
}

type loanJSON struct {
	ID               uint64 `json:"id"`
	Borrower         string `json:"borrower"`
	Lender           string `json:"lender"`
	LenderAuto       string `json:"lenderAuto"`
	SecretHashA1     string `json:"secretHashA1"`
	SecretHashB1     string `json:"secretHashB1"`
	SecretHashAutoB1 string `json:"secretHashAutoB1"`
	SecretA1         string `json:"secretA1,omitempty"`
	SecretB1         string `json:"secretB1,omitempty"`
	SecretAutoB1     string `json:"secretAutoB1,omitempty"`
	LoanExpiration   int64  `json:"loanExpiration"`
	AcceptExpiration int64  `json:"acceptExpiration"`
	Principal        string `json:"principal"`
	Interest         string `json:"interest"`
	Contract         string `json:"contract"`
	ACoinLender      string `json:"aCoinLender,omitempty"`
	State            string `json:"state"`
	CreatedAt        int64  `json:"createdAt"`
}

type assetTypeJSON struct {
	Contract            string `json:"contract"`
	Enabled             bool   `json:"enabled"`
	MinLoanAmount       string `json:"minLoanAmount"`
	MaxLoanAmount       string `json:"maxLoanAmount"`
	BaseRatePerYear     string `json:"baseRatePerYear"`
	MultiplierPerYear   string `json:"multiplierPerYear"`
	BaseRatePerPeriod   string `json:"baseRatePerPeriod"`
	MultiplierPerPeriod string `json:"multiplierPerPeriod"`
}

func formatLoanJSON(loan *loans.Loan) loanJSON {
	out := loanJSON{
		ID:               loan.ID,
		Borrower:         common.Address(loan.Borrower).Hex(),
		Lender:           common.Address(loan.Lender).Hex(),
		LenderAuto:       common.Address(loan.LenderAuto).Hex(),
		SecretHashA1:     hexutil.Encode(loan.SecretHashA1[:]),
		SecretHashB1:     hexutil.Encode(loan.SecretHashB1[:]),
		SecretHashAutoB1: hexutil.Encode(loan.SecretHashAutoB1[:]),
		LoanExpiration:   loan.LoanExpiration,
		AcceptExpiration: loan.AcceptExpiration,
		Principal:        loan.Principal.String(),
		Interest:         loan.Interest.String(),
		Contract:         common.Address(loan.Asset).Hex(),
		ACoinLender:      loan.ACoinLender,
		State:            loan.State.String(),
		CreatedAt:        loan.CreatedAt,
	}
	if len(loan.SecretA1) > 0 {
		out.SecretA1 = hexutil.Encode(loan.SecretA1)
	}
	if len(loan.SecretB1) > 0 {
		out.SecretB1 = hexutil.Encode(loan.SecretB1)
	}
	if len(loan.SecretAutoB1) > 0 {
		out.SecretAutoB1 = hexutil.Encode(loan.SecretAutoB1)
	}
	return out
}

func formatAssetTypeJSON(asset *loans.AssetType) assetTypeJSON {
	return assetTypeJSON{
		Contract:            common.Address(asset.Contract).Hex(),
		Enabled:             asset.Enabled,
		MinLoanAmount:       asset.MinLoanAmount.String(),
		MaxLoanAmount:       asset.MaxLoanAmount.String(),
		BaseRatePerYear:     asset.BaseRatePerYear.String(),
		MultiplierPerYear:   asset.MultiplierPerYear.String(),
		BaseRatePerPeriod:   asset.BaseRatePerPeriod.String(),
		MultiplierPerPeriod: asset.MultiplierPerPeriod.String(),
	}
}

func parseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

// parseOptionalAddress accepts an empty string as the zero address.
func parseOptionalAddress(value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	return parseAddress(value)
}

func parseHash(value string) ([32]byte, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(value))
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid hash %q: %w", value, err)
	}
	if len(raw) != common.HashLength {
		return [32]byte{}, fmt.Errorf("hash must be %d bytes, got %d", common.HashLength, len(raw))
	}
	var out [32]byte
	copy(out[:], raw)
	return out, nil
}

// parseOptionalHash accepts an empty string as the zero hash.
func parseOptionalHash(value string) ([32]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [32]byte{}, nil
	}
	return parseHash(value)
}

func parseSecret(value string) ([]byte, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid secret: %w", err)
	}
	return raw, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeLoansInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLoansInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func writeInvalidParams(w http.ResponseWriter, req *RPCRequest, err error) {
	writeError(w, http.StatusBadRequest, req.ID, codeLoansInvalidParams, "invalid_params", err.Error())
}

// writeLoansError maps engine sentinel errors onto stable RPC error codes.
func writeLoansError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, loans.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, id, codeLoansForbidden, "forbidden", err.Error())
	case errors.Is(err, loans.ErrLoanNotFound), errors.Is(err, loans.ErrInvalidAssetType):
		writeError(w, http.StatusNotFound, id, codeLoansNotFound, "not_found", err.Error())
	case errors.Is(err, loans.ErrNullData),
		errors.Is(err, loans.ErrUnrecognizedParam),
		errors.Is(err, loans.ErrInvalidPrincipal),
		errors.Is(err, loans.ErrPrincipalOutOfRange):
		writeError(w, http.StatusBadRequest, id, codeLoansInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, loans.ErrContractNotEnabled),
		errors.Is(err, loans.ErrAssetTypeDisabled),
		errors.Is(err, loans.ErrInsufficientAllowance),
		errors.Is(err, loans.ErrLoanNotFunded),
		errors.Is(err, loans.ErrLoanNotApproved),
		errors.Is(err, loans.ErrInvalidLoanState),
		errors.Is(err, loans.ErrPrincipalWithdrawn),
		errors.Is(err, loans.ErrLoanExpired),
		errors.Is(err, loans.ErrInvalidSecretA1),
		errors.Is(err, loans.ErrInvalidSecretB1):
		writeError(w, http.StatusConflict, id, codeLoansConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeLoansInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleAddAuthorization(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params authorizationParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	if err := s.engine.AddAuthorization(caller, account); err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"authorized": true})
}

func (s *Server) handleEnableContract(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleSetContractEnabled(w, req, true)
}

func (s *Server) handleDisableContract(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleSetContractEnabled(w, req, false)
}

func (s *Server) handleSetContractEnabled(w http.ResponseWriter, req *RPCRequest, enabled bool) {
	var params callerParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	if enabled {
		err = s.engine.EnableContract(caller)
	} else {
		err = s.engine.DisableContract(caller)
	}
	if err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"enabled": enabled})
}

func (s *Server) handleAddAssetType(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addAssetTypeParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	contract, err := parseAddress(params.Contract)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	maxAmount, err := parseAmount(params.MaxLoanAmount)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	minAmount, err := parseAmount(params.MinLoanAmount)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	base, err := parseAmount(params.BaseRatePerYear)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	mult, err := parseAmount(params.MultiplierPerYear)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	record, err := s.engine.AddAssetType(caller, contract, maxAmount, minAmount, base, mult)
	if err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAssetTypeJSON(record))
}

func (s *Server) handleEnableAssetType(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleSetAssetEnabled(w, req, true)
}

func (s *Server) handleDisableAssetType(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleSetAssetEnabled(w, req, false)
}

func (s *Server) handleSetAssetEnabled(w http.ResponseWriter, req *RPCRequest, enabled bool) {
	var params assetActorParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	contract, err := parseAddress(params.Contract)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	if enabled {
		err = s.engine.EnableAssetType(caller, contract)
	} else {
		err = s.engine.DisableAssetType(caller, contract)
	}
	if err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"enabled": enabled})
}

func (s *Server) handleModifyAssetTypeLoanParameters(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params modifyAssetParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	contract, err := parseAddress(params.Contract)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	value, err := parseAmount(params.Value)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	if err := s.engine.ModifyAssetTypeLoanParameters(caller, contract, params.Param, value); err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"modified": true})
}

func (s *Server) handleModifyLoanParameters(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params modifyLoanParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	if err := s.engine.ModifyLoanParameters(caller, params.Param, params.Value); err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"modified": true})
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createLoanParams
	if !decodeParams(w, req, &params) {
		return
	}
	lender, err := parseAddress(params.Lender)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	lenderAuto, err := parseOptionalAddress(params.LenderAuto)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	secretHashB1, err := parseHash(params.SecretHashB1)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	secretHashAutoB1, err := parseOptionalHash(params.SecretHashAutoB1)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	principal, err := parseAmount(params.Principal)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	contract, err := parseAddress(params.Contract)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	loan, err := s.engine.CreateLoan(lender, lenderAuto, secretHashB1, secretHashAutoB1, principal, contract, params.ACoinLender)
	if err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatLoanJSON(loan))
}

func (s *Server) handleSetBorrowerAndApprove(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params approveParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	borrower, err := parseAddress(params.Borrower)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	secretHashA1, err := parseHash(params.SecretHashA1)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	if err := s.engine.SetBorrowerAndApprove(caller, params.LoanID, borrower, secretHashA1); err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	loan, err := s.engine.FetchLoan(params.LoanID)
	if err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatLoanJSON(loan))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params withdrawParams
	if !decodeParams(w, req, &params) {
		return
	}
	secret, err := parseSecret(params.SecretA1)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	if err := s.engine.Withdraw(params.LoanID, secret); err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"withdrawn": true})
}

func (s *Server) handlePayback(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params paybackParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	if err := s.engine.Payback(caller, params.LoanID); err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paid": true})
}

func (s *Server) handleCancelLoan(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params cancelParams
	if !decodeParams(w, req, &params) {
		return
	}
	secret, err := parseSecret(params.SecretB1)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	if err := s.engine.CancelLoanBeforePrincipalWithdraw(params.LoanID, secret); err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"canceled": true})
}

func (s *Server) handleFetchLoan(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	loan, err := s.engine.FetchLoan(params.LoanID)
	if err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatLoanJSON(loan))
}

func (s *Server) handleGetAssetType(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetParams
	if !decodeParams(w, req, &params) {
		return
	}
	contract, err := parseAddress(params.Contract)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	record, err := s.engine.GetAssetType(contract)
	if err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAssetTypeJSON(record))
}

func (s *Server) handleGetAssetInterestRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetParams
	if !decodeParams(w, req, &params) {
		return
	}
	contract, err := parseAddress(params.Contract)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	rate, err := s.engine.GetAssetInterestRate(contract)
	if err != nil {
		writeLoansError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"interestRate": rate.String()})
}

func (s *Server) handleUserLoansCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"count": s.engine.UserLoansCount(account)})
}

func (s *Server) handleGetAccountLoans(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeInvalidParams(w, req, err)
		return
	}
	ids := s.engine.GetAccountLoans(account)
	if ids == nil {
		ids = []uint64{}
	}
	writeResult(w, req.ID, map[string][]uint64{"loans": ids})
}

func (s *Server) handleAuthorizedAccounts(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	accounts := s.engine.AuthorizedAccounts()
	out := make([]string, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, common.Address(account).Hex())
	}
	writeResult(w, req.ID, map[string][]string{"accounts": out})
}

func (s *Server) handleContractEnabled(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]bool{"enabled": s.engine.ContractEnabled()})
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.log == nil {
		writeResult(w, req.ID, []interface{}{})
		return
	}
	writeResult(w, req.ID, s.log.List())
}
