package token

import (
	"errors"
	"math/big"
	"testing"
)

func account(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestMintAndBalance(t *testing.T) {
	ledger := NewToken("DAI")
	alice := account(1)
	if bal := ledger.BalanceOf(alice); bal.Sign() != 0 {
		t.Fatalf("fresh balance = %s", bal)
	}
	ledger.Mint(alice, big.NewInt(100))
	ledger.Mint(alice, big.NewInt(50))
	if bal := ledger.BalanceOf(alice); bal.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("balance = %s, want 150", bal)
	}
	// Non-positive mints are ignored.
	ledger.Mint(alice, big.NewInt(-10))
	ledger.Mint(alice, nil)
	if bal := ledger.BalanceOf(alice); bal.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("balance = %s after no-op mints", bal)
	}
}

func TestTransfer(t *testing.T) {
	ledger := NewToken("DAI")
	alice, bob := account(1), account(2)
	ledger.Mint(alice, big.NewInt(100))

	if err := ledger.Transfer(alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal := ledger.BalanceOf(alice); bal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("alice balance = %s", bal)
	}
	if bal := ledger.BalanceOf(bob); bal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("bob balance = %s", bal)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraft: got %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
}

func TestApproveAndTransferFrom(t *testing.T) {
	ledger := NewToken("DAI")
	owner, spender, dest := account(1), account(2), account(3)
	ledger.Mint(owner, big.NewInt(100))

	if err := ledger.TransferFrom(spender, owner, dest, big.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("no allowance: got %v", err)
	}
	if err := ledger.Approve(owner, spender, big.NewInt(70)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := ledger.Allowance(owner, spender); got.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("allowance = %s", got)
	}
	if err := ledger.TransferFrom(spender, owner, dest, big.NewInt(30)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if got := ledger.Allowance(owner, spender); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("allowance after spend = %s", got)
	}
	if bal := ledger.BalanceOf(dest); bal.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("dest balance = %s", bal)
	}
	if err := ledger.TransferFrom(spender, owner, dest, big.NewInt(41)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("allowance exhausted: got %v", err)
	}
}

func TestTransferFromChecksAllowanceBeforeBalance(t *testing.T) {
	ledger := NewToken("DAI")
	owner, spender, dest := account(1), account(2), account(3)
	ledger.Mint(owner, big.NewInt(10))
	if err := ledger.Approve(owner, spender, big.NewInt(50)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// Allowance covers the amount, balance does not.
	if err := ledger.TransferFrom(spender, owner, dest, big.NewInt(20)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("got %v, want %v", err, ErrInsufficientBalance)
	}
	// Failed moves leave the allowance untouched.
	if got := ledger.Allowance(owner, spender); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("allowance = %s after failed move", got)
	}
}

func TestBalanceCopiesAreIndependent(t *testing.T) {
	ledger := NewToken("DAI")
	alice := account(1)
	ledger.Mint(alice, big.NewInt(100))
	bal := ledger.BalanceOf(alice)
	bal.SetInt64(0)
	if got := ledger.BalanceOf(alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("internal balance mutated: %s", got)
	}
}
