package market

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientShares          = errors.New("insufficient shares")
	ErrMarketInactive              = errors.New("market inactive")
	ErrMarketExists                = errors.New("market already exists")
	ErrMarketNotFound              = errors.New("market not found")
	ErrInsufficientSettlementFunds = errors.New("insufficient settlement funds")
)

// SharePosition is one trader's holding in a single outcome. Locked shares
// back resting ask orders and cannot be sold twice or withdrawn.
type SharePosition struct {
	Total  int64 `json:"total"`
	Locked int64 `json:"locked"`
}

func (p SharePosition) Available() int64 { return p.Total - p.Locked }

// ShareLedger maps traders to outstanding share quantity in one outcome.
// Entries are created on first credit; absent traders hold zero.
type ShareLedger struct {
	positions map[common.Address]*SharePosition
}

func NewShareLedger() *ShareLedger {
	return &ShareLedger{positions: make(map[common.Address]*SharePosition)}
}

// Get returns the trader's total holding, 0 if absent.
func (l *ShareLedger) Get(trader common.Address) int64 {
	if p, ok := l.positions[trader]; ok {
		return p.Total
	}
	return 0
}

// Available returns the holding not reserved for resting asks.
func (l *ShareLedger) Available(trader common.Address) int64 {
	if p, ok := l.positions[trader]; ok {
		return p.Available()
	}
	return 0
}

// Locked returns the quantity reserved for resting asks.
func (l *ShareLedger) Locked(trader common.Address) int64 {
	if p, ok := l.positions[trader]; ok {
		return p.Locked
	}
	return 0
}

// Credit adds shares to a trader, creating the entry if absent.
func (l *ShareLedger) Credit(trader common.Address, qty int64) {
	l.entry(trader).Total += qty
}

// Lock reserves shares for a resting ask.
func (l *ShareLedger) Lock(trader common.Address, qty int64) error {
	p := l.entry(trader)
	if p.Available() < qty {
		return fmt.Errorf("%w: have %d available, need %d", ErrInsufficientShares, p.Available(), qty)
	}
	p.Locked += qty
	return nil
}

// Unlock releases a reservation, e.g. when an ask is cancelled.
func (l *ShareLedger) Unlock(trader common.Address, qty int64) error {
	p := l.entry(trader)
	if p.Locked < qty {
		return fmt.Errorf("%w: locked %d, unlock %d", ErrInsufficientShares, p.Locked, qty)
	}
	p.Locked -= qty
	return nil
}

// TransferLocked moves matched shares from the seller's reservation to the
// buyer. It is always paired with the corresponding vault payment in the
// same operation; separating the two lets shares and collateral diverge.
func (l *ShareLedger) TransferLocked(from, to common.Address, qty int64) error {
	p := l.entry(from)
	if p.Locked < qty || p.Total < qty {
		return fmt.Errorf("%w: %s holds %d locked, transfer %d", ErrInsufficientShares, from.Hex(), p.Locked, qty)
	}
	p.Locked -= qty
	p.Total -= qty
	l.entry(to).Total += qty
	return nil
}

// Transfer moves unreserved shares between traders.
func (l *ShareLedger) Transfer(from, to common.Address, qty int64) error {
	p := l.entry(from)
	if p.Available() < qty {
		return fmt.Errorf("%w: %s holds %d available, transfer %d", ErrInsufficientShares, from.Hex(), p.Available(), qty)
	}
	p.Total -= qty
	l.entry(to).Total += qty
	return nil
}

// Holders returns every trader with a ledger entry.
func (l *ShareLedger) Holders() []common.Address {
	out := make([]common.Address, 0, len(l.positions))
	for addr := range l.positions {
		out = append(out, addr)
	}
	return out
}

// Position returns a copy of a trader's holding.
func (l *ShareLedger) Position(trader common.Address) SharePosition {
	if p, ok := l.positions[trader]; ok {
		return *p
	}
	return SharePosition{}
}

// Restore installs a holding loaded from storage.
func (l *ShareLedger) Restore(trader common.Address, pos SharePosition) {
	l.positions[trader] = &pos
}

func (l *ShareLedger) entry(trader common.Address) *SharePosition {
	p, ok := l.positions[trader]
	if !ok {
		p = &SharePosition{}
		l.positions[trader] = p
	}
	return p
}
