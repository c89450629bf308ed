package rpc

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"crosschainloans/core/events"
	"crosschainloans/core/state"
	"crosschainloans/native/loans"
	"crosschainloans/native/token"
	"crosschainloans/storage"
)

const (
	ownerHex    = "0x1000000000000000000000000000000000000001"
	lenderHex   = "0x1000000000000000000000000000000000000002"
	borrowerHex = "0x1000000000000000000000000000000000000003"
	custodyHex  = "0x1000000000000000000000000000000000000004"
	assetHex    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

type env struct {
	server *Server
	engine *loans.Engine
	ledger *token.Token
	now    int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		ledger: token.NewToken("DAI"),
		now:    1_600_000_000,
	}
	manager := state.NewManager(storage.NewMemDB())

	var owner, custody, asset [20]byte
	mustDecodeAddress(t, ownerHex, &owner)
	mustDecodeAddress(t, custodyHex, &custody)
	mustDecodeAddress(t, assetHex, &asset)
	manager.RegisterToken(asset, e.ledger)

	log := events.NewLog()
	e.engine = loans.NewEngine(custody)
	e.engine.SetState(manager)
	e.engine.SetEmitter(log)
	e.engine.SetNowFunc(func() int64 { return e.now })
	require.NoError(t, e.engine.Bootstrap(owner))

	e.server = NewServer(e.engine, log)
	return e
}

func mustDecodeAddress(t *testing.T, value string, out *[20]byte) {
	t.Helper()
	raw, err := hexutil.Decode(value)
	require.NoError(t, err)
	require.Len(t, raw, 20)
	copy(out[:], raw)
}

func (e *env) call(t *testing.T, method string, params interface{}) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func (e *env) mustCall(t *testing.T, method string, params interface{}) map[string]interface{} {
	t.Helper()
	rec, resp := e.call(t, method, params)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	require.Nil(t, resp.Error)
	out, _ := resp.Result.(map[string]interface{})
	return out
}

func (e *env) addAsset(t *testing.T) {
	t.Helper()
	e.mustCall(t, "loans_addAssetType", map[string]string{
		"caller":            ownerHex,
		"contract":          assetHex,
		"maxLoanAmount":     "10000000000000000000000",
		"minLoanAmount":     "100000000000000000000",
		"baseRatePerYear":   "55000000000000000",
		"multiplierPerYear": "1000000000000000000",
	})
}

func (e *env) fundLender(t *testing.T, amount *big.Int) {
	t.Helper()
	var lender, custody [20]byte
	mustDecodeAddress(t, lenderHex, &lender)
	mustDecodeAddress(t, custodyHex, &custody)
	e.ledger.Mint(lender, amount)
	require.NoError(t, e.ledger.Approve(lender, custody, amount))
}

func secretHashHex(secret []byte) string {
	digest := sha256.Sum256(secret)
	return hexutil.Encode(digest[:])
}

func (e *env) createLoan(t *testing.T) uint64 {
	t.Helper()
	result := e.mustCall(t, "loans_createLoan", map[string]string{
		"lender":       lenderHex,
		"secretHashB1": secretHashHex([]byte("secretB1")),
		"principal":    "1000000000000000000000",
		"contract":     assetHex,
		"aCoinLender":  "counterpart-address",
	})
	id, ok := result["id"].(float64)
	require.True(t, ok, "result: %#v", result)
	return uint64(id)
}

func TestMethodNotFound(t *testing.T) {
	e := newEnv(t)
	rec, resp := e.call(t, "loans_bogus", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestEmptyBody(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContractEnabled(t *testing.T) {
	e := newEnv(t)
	result := e.mustCall(t, "loans_contractEnabled", nil)
	require.Equal(t, true, result["enabled"])

	e.mustCall(t, "loans_disableContract", map[string]string{"caller": ownerHex})
	result = e.mustCall(t, "loans_contractEnabled", nil)
	require.Equal(t, false, result["enabled"])
}

func TestAuthorizedAccounts(t *testing.T) {
	e := newEnv(t)
	e.mustCall(t, "loans_addAuthorization", map[string]string{
		"caller":  ownerHex,
		"account": lenderHex,
	})
	rec, resp := e.call(t, "loans_authorizedAccounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result, _ := resp.Result.(map[string]interface{})
	accounts, _ := result["accounts"].([]interface{})
	require.Len(t, accounts, 2)
}

func TestAddAuthorizationForbidden(t *testing.T) {
	e := newEnv(t)
	rec, resp := e.call(t, "loans_addAuthorization", map[string]string{
		"caller":  borrowerHex,
		"account": lenderHex,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, codeLoansForbidden, resp.Error.Code)
	require.Contains(t, resp.Error.Data, "account-not-authorized")
}

func TestAddAssetTypeAndQuery(t *testing.T) {
	e := newEnv(t)
	e.addAsset(t)

	result := e.mustCall(t, "loans_getAssetType", map[string]string{"contract": assetHex})
	require.Equal(t, true, result["enabled"])
	require.Equal(t, "4517546561531037", result["baseRatePerPeriod"])
	require.Equal(t, "82137210209655229", result["multiplierPerPeriod"])

	rate := e.mustCall(t, "loans_getAssetInterestRate", map[string]string{"contract": assetHex})
	require.Equal(t, "86654756771186266", rate["interestRate"])
}

func TestGetAssetTypeNotFound(t *testing.T) {
	e := newEnv(t)
	rec, resp := e.call(t, "loans_getAssetType", map[string]string{
		"contract": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeLoansNotFound, resp.Error.Code)
}

func TestLoanLifecycleOverRPC(t *testing.T) {
	e := newEnv(t)
	e.addAsset(t)
	principal, _ := new(big.Int).SetString("1000000000000000000000", 10)
	e.fundLender(t, principal)

	id := e.createLoan(t)
	require.EqualValues(t, 1, id)

	loan := e.mustCall(t, "loans_fetchLoan", map[string]uint64{"loanId": id})
	require.Equal(t, "funded", loan["state"])
	require.Equal(t, "1000000000000000000000", loan["principal"])
	require.Equal(t, "86654756771186266000", loan["interest"])

	approved := e.mustCall(t, "loans_setBorrowerAndApprove", map[string]interface{}{
		"caller":       lenderHex,
		"loanId":       id,
		"borrower":     borrowerHex,
		"secretHashA1": secretHashHex([]byte("secretA1")),
	})
	require.Equal(t, "approved", approved["state"])

	e.mustCall(t, "loans_withdraw", map[string]interface{}{
		"loanId":   id,
		"secretA1": hexutil.Encode([]byte("secretA1")),
	})
	loan = e.mustCall(t, "loans_fetchLoan", map[string]uint64{"loanId": id})
	require.Equal(t, "withdrawn", loan["state"])

	// Fund the repayment: borrower holds the principal, mint the interest.
	var borrowerAddr, custody [20]byte
	mustDecodeAddress(t, borrowerHex, &borrowerAddr)
	mustDecodeAddress(t, custodyHex, &custody)
	interest, _ := new(big.Int).SetString("86654756771186266000", 10)
	e.ledger.Mint(borrowerAddr, interest)
	repay := new(big.Int).Add(principal, interest)
	require.NoError(t, e.ledger.Approve(borrowerAddr, custody, repay))

	e.mustCall(t, "loans_payback", map[string]interface{}{
		"caller": borrowerHex,
		"loanId": id,
	})
	loan = e.mustCall(t, "loans_fetchLoan", map[string]uint64{"loanId": id})
	require.Equal(t, "paid", loan["state"])

	count := e.mustCall(t, "loans_userLoansCount", map[string]string{"account": lenderHex})
	require.EqualValues(t, 1, count["count"])

	accountLoans := e.mustCall(t, "loans_getAccountLoans", map[string]string{"account": lenderHex})
	require.Len(t, accountLoans["loans"], 1)
}

func TestWithdrawWrongSecretConflict(t *testing.T) {
	e := newEnv(t)
	e.addAsset(t)
	principal, _ := new(big.Int).SetString("1000000000000000000000", 10)
	e.fundLender(t, principal)
	id := e.createLoan(t)
	e.mustCall(t, "loans_setBorrowerAndApprove", map[string]interface{}{
		"caller":       lenderHex,
		"loanId":       id,
		"borrower":     borrowerHex,
		"secretHashA1": secretHashHex([]byte("secretA1")),
	})

	rec, resp := e.call(t, "loans_withdraw", map[string]interface{}{
		"loanId":   id,
		"secretA1": hexutil.Encode([]byte("wrong")),
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeLoansConflict, resp.Error.Code)
	require.Contains(t, resp.Error.Data, "invalid-secret-A1")
}

func TestCancelOverRPC(t *testing.T) {
	e := newEnv(t)
	e.addAsset(t)
	principal, _ := new(big.Int).SetString("1000000000000000000000", 10)
	e.fundLender(t, principal)
	id := e.createLoan(t)

	e.mustCall(t, "loans_cancelLoanBeforePrincipalWithdraw", map[string]interface{}{
		"loanId":   id,
		"secretB1": hexutil.Encode([]byte("secretB1")),
	})
	loan := e.mustCall(t, "loans_fetchLoan", map[string]uint64{"loanId": id})
	require.Equal(t, "canceled", loan["state"])
	require.Equal(t, "0", loan["principal"])
}

func TestEventsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.addAsset(t)

	rec, resp := e.call(t, "loans_events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries, ok := resp.Result.([]interface{})
	require.True(t, ok, "result: %#v", resp.Result)
	// Bootstrap authorization plus the asset registration.
	require.Len(t, entries, 2)
	first, _ := entries[0].(map[string]interface{})
	require.Equal(t, "loans.authorization.added", first["type"])
}

func TestModifyLoanParametersOverRPC(t *testing.T) {
	e := newEnv(t)
	e.mustCall(t, "loans_modifyLoanParameters", map[string]interface{}{
		"caller": ownerHex,
		"param":  "loanExpirationPeriod",
		"value":  5_184_000,
	})

	rec, resp := e.call(t, "loans_modifyLoanParameters", map[string]interface{}{
		"caller": ownerHex,
		"param":  "bogusParam",
		"value":  1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, fmt.Sprint(resp.Error.Data), "modify-unrecognized-param")
}
