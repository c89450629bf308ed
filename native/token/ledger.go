package token

import (
	"math/big"
	"sync"
)

// Token is an in-memory reference implementation of the Ledger interface. It
// follows the usual fungible-token semantics: minted balances, direct
// transfers, and spender allowances consumed by delegated transfers. Nodes use
// it to back locally registered asset types; production deployments substitute
// a ledger bound to the actual escrowed asset.
type Token struct {
	symbol string

	mu         sync.RWMutex
	balances   map[[20]byte]*big.Int
	allowances map[[20]byte]map[[20]byte]*big.Int
}

// NewToken creates an empty ledger identified by the given symbol.
func NewToken(symbol string) *Token {
	return &Token{
		symbol:     symbol,
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[[20]byte]map[[20]byte]*big.Int),
	}
}

// Symbol returns the ledger's asset symbol.
func (t *Token) Symbol() string { return t.symbol }

// Mint credits freshly created units to the given account. Only used to seed
// test and demo ledgers; a chain-backed ledger has no mint surface.
func (t *Token) Mint(account [20]byte, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] = new(big.Int).Add(t.balanceLocked(account), amount)
}

// BalanceOf returns the current balance of the account.
func (t *Token) BalanceOf(account [20]byte) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.balanceLocked(account))
}

// Transfer moves amount from one account to another.
func (t *Token) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.moveLocked(from, to, amount)
}

// TransferFrom moves amount from one account to another on behalf of spender,
// consuming the owner's allowance. The allowance check runs before the balance
// check so allowance failures surface first, matching the reference token the
// protocol escrows against.
func (t *Token) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	allowed := t.allowanceLocked(from, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.moveLocked(from, to, amount); err != nil {
		return err
	}
	t.setAllowanceLocked(from, spender, new(big.Int).Sub(allowed, amount))
	return nil
}

// Approve sets the spender's allowance over the owner's balance.
func (t *Token) Approve(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowanceLocked(owner, spender, new(big.Int).Set(amount))
	return nil
}

// Allowance returns the remaining amount the spender may move from the owner.
func (t *Token) Allowance(owner, spender [20]byte) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.allowanceLocked(owner, spender))
}

func (t *Token) balanceLocked(account [20]byte) *big.Int {
	if bal, ok := t.balances[account]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (t *Token) allowanceLocked(owner, spender [20]byte) *big.Int {
	if spenders, ok := t.allowances[owner]; ok {
		if allowed, ok := spenders[spender]; ok {
			return allowed
		}
	}
	return big.NewInt(0)
}

func (t *Token) setAllowanceLocked(owner, spender [20]byte, amount *big.Int) {
	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[[20]byte]*big.Int)
		t.allowances[owner] = spenders
	}
	spenders[spender] = amount
}

func (t *Token) moveLocked(from, to [20]byte, amount *big.Int) error {
	fromBal := t.balanceLocked(from)
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.balances[from] = new(big.Int).Sub(fromBal, amount)
	t.balances[to] = new(big.Int).Add(t.balanceLocked(to), amount)
	return nil
}
