package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"duomarket/pkg/exchange/orderbook"
)

// SettlementMode decides when a matched seller is paid.
type SettlementMode int8

const (
	// Immediate pays the seller from the vault inside the matching operation.
	Immediate SettlementMode = iota
	// Deferred accrues the payout in the settlement pool; the seller pulls it
	// later via claim_settlement. The funds stay in the vault until claimed.
	Deferred
)

func (m SettlementMode) String() string {
	if m == Deferred {
		return "deferred"
	}
	return "immediate"
}

// Status gates order placement on a market.
type Status int8

const (
	Active Status = iota
	Paused
	Resolved
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Market owns the collateral vault, the two share ledgers, and the optional
// settlement pool of one binary-outcome market. The vault holds every unit
// of locked bid collateral plus any unclaimed deferred payout; it never
// dips below that sum while the book invariants hold.
type Market struct {
	ID          string
	Question    string
	OptionAName string
	OptionBName string
	Status      Status
	Mode        SettlementMode
	CreatedAt   uint64

	Vault   int64
	ledgers map[orderbook.Option]*ShareLedger
	pool    map[common.Address]int64
}

func New(id, question, optionAName, optionBName string, mode SettlementMode, createdAt uint64) *Market {
	return &Market{
		ID:          id,
		Question:    question,
		OptionAName: optionAName,
		OptionBName: optionBName,
		Status:      Active,
		Mode:        mode,
		CreatedAt:   createdAt,
		ledgers: map[orderbook.Option]*ShareLedger{
			orderbook.OptionA: NewShareLedger(),
			orderbook.OptionB: NewShareLedger(),
		},
		pool: make(map[common.Address]int64),
	}
}

func (m *Market) IsActive() bool { return m.Status == Active }

// Ledger returns the share ledger for one outcome.
func (m *Market) Ledger(opt orderbook.Option) *ShareLedger { return m.ledgers[opt] }

// OptionName returns the display name configured for an outcome.
func (m *Market) OptionName(opt orderbook.Option) string {
	if opt == orderbook.OptionA {
		return m.OptionAName
	}
	return m.OptionBName
}

// DepositVault adds locked collateral to the vault.
func (m *Market) DepositVault(amount int64) { m.Vault += amount }

// PayFromVault draws funds for a refund or an immediate seller payment.
// Underflow means a broken invariant, surfaced rather than papered over.
func (m *Market) PayFromVault(amount int64) error {
	if amount > m.Vault {
		return fmt.Errorf("%w: vault %d, payout %d", ErrInsufficientSettlementFunds, m.Vault, amount)
	}
	m.Vault -= amount
	return nil
}

// AccruePayout records a deferred seller payment. The backing funds remain
// in the vault until the trader claims them.
func (m *Market) AccruePayout(trader common.Address, amount int64) {
	m.pool[trader] += amount
}

// ClaimPayout drains the trader's settlement pool entry from the vault.
func (m *Market) ClaimPayout(trader common.Address) (int64, error) {
	amount := m.pool[trader]
	if amount == 0 {
		return 0, nil
	}
	if err := m.PayFromVault(amount); err != nil {
		return 0, err
	}
	delete(m.pool, trader)
	return amount, nil
}

// PendingPayout returns the trader's unclaimed deferred settlement.
func (m *Market) PendingPayout(trader common.Address) int64 { return m.pool[trader] }

// PoolTotal sums all unclaimed deferred payouts.
func (m *Market) PoolTotal() int64 {
	var total int64
	for _, amt := range m.pool {
		total += amt
	}
	return total
}

// PoolSnapshot copies the settlement pool for persistence.
func (m *Market) PoolSnapshot() map[common.Address]int64 {
	if len(m.pool) == 0 {
		return nil
	}
	out := make(map[common.Address]int64, len(m.pool))
	for trader, amt := range m.pool {
		out[trader] = amt
	}
	return out
}

// RestorePayout installs a pool entry loaded from storage.
func (m *Market) RestorePayout(trader common.Address, amount int64) {
	if amount > 0 {
		m.pool[trader] = amount
	}
}
