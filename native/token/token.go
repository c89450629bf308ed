package token

import (
	"errors"
	"math/big"
)

var (
	// ErrInsufficientBalance is surfaced when a transfer exceeds the sender's
	// balance. The loans engine propagates it to callers unmodified.
	ErrInsufficientBalance = errors.New("token: transfer amount exceeds balance")
	// ErrInsufficientAllowance is surfaced when a delegated transfer exceeds
	// the spender's remaining allowance.
	ErrInsufficientAllowance = errors.New("token: transfer amount exceeds allowance")
	// ErrInvalidAmount rejects nil or negative amounts before any balance is
	// touched.
	ErrInvalidAmount = errors.New("token: amount must be non-negative")
)

// Ledger is the escrowed-asset collaborator the loans engine moves value
// through. It mirrors the fungible-token surface the protocol escrows against:
// balances, direct transfers and the allowance/delegated-transfer pair. The
// engine never inspects ledger internals; any balance or allowance failure is
// returned to the caller verbatim.
type Ledger interface {
	BalanceOf(account [20]byte) *big.Int
	Transfer(from, to [20]byte, amount *big.Int) error
	TransferFrom(spender, from, to [20]byte, amount *big.Int) error
	Approve(owner, spender [20]byte, amount *big.Int) error
	Allowance(owner, spender [20]byte) *big.Int
}
