package state

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sync"

	"crosschainloans/native/loans"
	"crosschainloans/native/token"
	"crosschainloans/storage"
)

var (
	paramsKey         = []byte("loans/params")
	loanCountKey      = []byte("loans/count")
	authPrefix        = []byte("loans/auth/")
	authIndexKey      = []byte("loans/auth-index")
	assetPrefix       = []byte("loans/asset/")
	loanPrefix        = []byte("loans/loan/")
	userCountPrefix   = []byte("loans/user-count/")
	accountLoanPrefix = []byte("loans/account-loans/")
)

// Manager persists protocol state as JSON records in a key-value database and
// keeps the registry of asset ledgers. It is the storage backend the loans
// engine is wired to; the engine serializes mutations, so the manager only
// guards its own ledger registry.
type Manager struct {
	db storage.Database

	mu      sync.RWMutex
	ledgers map[[20]byte]token.Ledger
}

// NewManager wraps the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		ledgers: make(map[[20]byte]token.Ledger),
	}
}

// RegisterToken binds an asset address to its ledger. Registration is
// in-memory and repeated at startup; the database never stores ledgers.
func (m *Manager) RegisterToken(asset [20]byte, ledger token.Ledger) {
	if m == nil || ledger == nil {
		return
	}
	m.mu.Lock()
	m.ledgers[asset] = ledger
	m.mu.Unlock()
}

// Token returns the ledger registered for the asset, if any.
func (m *Manager) Token(asset [20]byte) (token.Ledger, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ledger, ok := m.ledgers[asset]
	return ledger, ok
}

func addressKey(prefix []byte, addr [20]byte) []byte {
	return append(append([]byte(nil), prefix...), hex.EncodeToString(addr[:])...)
}

func loanKey(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return append(append([]byte(nil), loanPrefix...), hex.EncodeToString(buf[:])...)
}

func (m *Manager) getJSON(key []byte, out interface{}) bool {
	raw, err := m.db.Get(key)
	if err != nil || len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (m *Manager) putJSON(key []byte, in interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return m.db.Put(key, raw)
}

// ParamsGet loads the global parameters record.
func (m *Manager) ParamsGet() (*loans.Params, bool) {
	var params loans.Params
	if !m.getJSON(paramsKey, &params) {
		return nil, false
	}
	return &params, true
}

// ParamsPut stores the global parameters record.
func (m *Manager) ParamsPut(params *loans.Params) error {
	return m.putJSON(paramsKey, params)
}

// IsAuthorized reports whether the account is in the admin set.
func (m *Manager) IsAuthorized(addr [20]byte) bool {
	ok, err := m.db.Has(addressKey(authPrefix, addr))
	return err == nil && ok
}

// SetAuthorized adds the account to the admin set and its ordered index.
func (m *Manager) SetAuthorized(addr [20]byte) error {
	if m.IsAuthorized(addr) {
		return nil
	}
	if err := m.db.Put(addressKey(authPrefix, addr), []byte{1}); err != nil {
		return err
	}
	var index []string
	m.getJSON(authIndexKey, &index)
	index = append(index, hex.EncodeToString(addr[:]))
	return m.putJSON(authIndexKey, index)
}

// AuthorizedAccounts returns the admin set in authorization order.
func (m *Manager) AuthorizedAccounts() [][20]byte {
	var index []string
	if !m.getJSON(authIndexKey, &index) {
		return nil
	}
	out := make([][20]byte, 0, len(index))
	for _, entry := range index {
		raw, err := hex.DecodeString(entry)
		if err != nil || len(raw) != 20 {
			continue
		}
		var addr [20]byte
		copy(addr[:], raw)
		out = append(out, addr)
	}
	return out
}

// AssetGet loads an asset-type record.
func (m *Manager) AssetGet(asset [20]byte) (*loans.AssetType, bool) {
	var record loans.AssetType
	if !m.getJSON(addressKey(assetPrefix, asset), &record) {
		return nil, false
	}
	return &record, true
}

// AssetPut stores an asset-type record keyed by its contract address.
func (m *Manager) AssetPut(record *loans.AssetType) error {
	return m.putJSON(addressKey(assetPrefix, record.Contract), record)
}

// LoanGet loads a loan record.
func (m *Manager) LoanGet(id uint64) (*loans.Loan, bool) {
	var loan loans.Loan
	if !m.getJSON(loanKey(id), &loan) {
		return nil, false
	}
	return &loan, true
}

// LoanPut stores a loan record keyed by its id.
func (m *Manager) LoanPut(loan *loans.Loan) error {
	return m.putJSON(loanKey(loan.ID), loan)
}

// LoanCount returns the id of the most recently created loan.
func (m *Manager) LoanCount() uint64 {
	var count uint64
	if !m.getJSON(loanCountKey, &count) {
		return 0
	}
	return count
}

// SetLoanCount stores the global loan counter.
func (m *Manager) SetLoanCount(n uint64) error {
	return m.putJSON(loanCountKey, n)
}

// UserLoansCount returns how many loans the account has created.
func (m *Manager) UserLoansCount(addr [20]byte) uint64 {
	var count uint64
	if !m.getJSON(addressKey(userCountPrefix, addr), &count) {
		return 0
	}
	return count
}

// SetUserLoansCount stores the per-account loan counter.
func (m *Manager) SetUserLoansCount(addr [20]byte, n uint64) error {
	return m.putJSON(addressKey(userCountPrefix, addr), n)
}

// AccountLoans returns the account's loan ids in creation order.
func (m *Manager) AccountLoans(addr [20]byte) []uint64 {
	var ids []uint64
	if !m.getJSON(addressKey(accountLoanPrefix, addr), &ids) {
		return nil
	}
	return ids
}

// AppendAccountLoan adds a loan id to the account's index.
func (m *Manager) AppendAccountLoan(addr [20]byte, id uint64) error {
	key := addressKey(accountLoanPrefix, addr)
	var ids []uint64
	m.getJSON(key, &ids)
	ids = append(ids, id)
	return m.putJSON(key, ids)
}
