package account

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

type balanceKey struct {
	trader   common.Address
	marketID string
}

// Manager holds every UserBalance. It performs no locking: the engine wraps
// each operation in its own critical section, reproducing the single-threaded
// transactional model the core assumes.
type Manager struct {
	balances map[balanceKey]*UserBalance
}

func NewManager() *Manager {
	return &Manager{balances: make(map[balanceKey]*UserBalance)}
}

// Create opens a zero balance for (trader, market). At most one may exist.
func (m *Manager) Create(trader common.Address, marketID string) (*UserBalance, error) {
	key := balanceKey{trader, marketID}
	if _, exists := m.balances[key]; exists {
		return nil, fmt.Errorf("%w: %s in %s", ErrBalanceExists, trader.Hex(), marketID)
	}
	b := &UserBalance{Trader: trader, MarketID: marketID}
	m.balances[key] = b
	return b, nil
}

// Get returns the balance for (trader, market).
func (m *Manager) Get(trader common.Address, marketID string) (*UserBalance, error) {
	b, ok := m.balances[balanceKey{trader, marketID}]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrBalanceNotFound, trader.Hex(), marketID)
	}
	return b, nil
}

// Deposit credits external funds. The amount must be positive.
func (m *Manager) Deposit(trader common.Address, marketID string, amount int64) (*UserBalance, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deposit %d", ErrInvalidAmount, amount)
	}
	b, err := m.Get(trader, marketID)
	if err != nil {
		return nil, err
	}
	if b.Balance > math.MaxInt64-amount {
		return nil, fmt.Errorf("%w: deposit %d overflows balance %d", ErrInvalidAmount, amount, b.Balance)
	}
	b.Balance += amount
	return b, nil
}

// Withdraw removes funds for the caller to take elsewhere.
func (m *Manager) Withdraw(trader common.Address, marketID string, amount int64) (*UserBalance, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdraw %d", ErrInvalidAmount, amount)
	}
	b, err := m.Get(trader, marketID)
	if err != nil {
		return nil, err
	}
	if b.Balance < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, b.Balance, amount)
	}
	b.Balance -= amount
	return b, nil
}

// Debit removes collateral being locked into a market vault.
func (m *Manager) Debit(trader common.Address, marketID string, amount int64) (*UserBalance, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit %d", ErrInvalidAmount, amount)
	}
	b, err := m.Get(trader, marketID)
	if err != nil {
		return nil, err
	}
	if b.Balance < amount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, b.Balance, amount)
	}
	b.Balance -= amount
	return b, nil
}

// Credit returns vault funds: refunds, settlement payments, claims.
func (m *Manager) Credit(trader common.Address, marketID string, amount int64) (*UserBalance, error) {
	b, err := m.Get(trader, marketID)
	if err != nil {
		return nil, err
	}
	b.Balance += amount
	return b, nil
}

// All returns every balance in unspecified order.
func (m *Manager) All() []*UserBalance {
	out := make([]*UserBalance, 0, len(m.balances))
	for _, b := range m.balances {
		out = append(out, b)
	}
	return out
}

// Restore installs a balance loaded from storage.
func (m *Manager) Restore(b *UserBalance) {
	m.balances[balanceKey{b.Trader, b.MarketID}] = b
}
