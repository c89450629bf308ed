package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"crosschainloans/core/events"
	"crosschainloans/native/loans"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeServerError    = -32000
)

// Server exposes the loans engine over JSON-RPC 2.0. Every protocol
// operation maps to one loans_* method; the audit log backs loans_events.
type Server struct {
	engine *loans.Engine
	log    *events.Log
}

func NewServer(engine *loans.Engine, log *events.Log) *Server {
	return &Server{engine: engine, log: log}
}

// Start serves the RPC endpoint until the listener fails.
func (s *Server) Start(addr string) error {
	fmt.Printf("Starting JSON-RPC server on %s\n", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// ServeHTTP decodes the envelope and routes to the method handlers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "loans_addAuthorization":
		s.handleAddAuthorization(w, r, req)
	case "loans_enableContract":
		s.handleEnableContract(w, r, req)
	case "loans_disableContract":
		s.handleDisableContract(w, r, req)
	case "loans_addAssetType":
		s.handleAddAssetType(w, r, req)
	case "loans_enableAssetType":
		s.handleEnableAssetType(w, r, req)
	case "loans_disableAssetType":
		s.handleDisableAssetType(w, r, req)
	case "loans_modifyAssetTypeLoanParameters":
		s.handleModifyAssetTypeLoanParameters(w, r, req)
	case "loans_modifyLoanParameters":
		s.handleModifyLoanParameters(w, r, req)
	case "loans_createLoan":
		s.handleCreateLoan(w, r, req)
	case "loans_setBorrowerAndApprove":
		s.handleSetBorrowerAndApprove(w, r, req)
	case "loans_withdraw":
		s.handleWithdraw(w, r, req)
	case "loans_payback":
		s.handlePayback(w, r, req)
	case "loans_cancelLoanBeforePrincipalWithdraw":
		s.handleCancelLoan(w, r, req)
	case "loans_fetchLoan":
		s.handleFetchLoan(w, r, req)
	case "loans_getAssetType":
		s.handleGetAssetType(w, r, req)
	case "loans_getAssetInterestRate":
		s.handleGetAssetInterestRate(w, r, req)
	case "loans_userLoansCount":
		s.handleUserLoansCount(w, r, req)
	case "loans_getAccountLoans":
		s.handleGetAccountLoans(w, r, req)
	case "loans_authorizedAccounts":
		s.handleAuthorizedAccounts(w, r, req)
	case "loans_contractEnabled":
		s.handleContractEnabled(w, r, req)
	case "loans_events":
		s.handleEvents(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}
