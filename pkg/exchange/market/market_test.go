package market

import (
	"errors"
	"testing"

	"duomarket/pkg/exchange/orderbook"
)

func newTestMarket(mode SettlementMode) *Market {
	return New("mkt-1", "Will it rain tomorrow?", "Yes", "No", mode, 1)
}

func TestVaultPayCannotUnderflow(t *testing.T) {
	m := newTestMarket(Immediate)
	m.DepositVault(100)

	if err := m.PayFromVault(60); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if m.Vault != 40 {
		t.Errorf("vault = %d, want 40", m.Vault)
	}
	if err := m.PayFromVault(41); !errors.Is(err, ErrInsufficientSettlementFunds) {
		t.Errorf("underflow = %v, want ErrInsufficientSettlementFunds", err)
	}
	if m.Vault != 40 {
		t.Error("failed payout changed the vault")
	}
}

func TestSettlementPoolAccrueAndClaim(t *testing.T) {
	m := newTestMarket(Deferred)
	m.DepositVault(500)
	m.AccruePayout(alice, 200)
	m.AccruePayout(alice, 100)
	m.AccruePayout(bob, 50)

	if m.PendingPayout(alice) != 300 || m.PoolTotal() != 350 {
		t.Fatalf("pool state: alice %d total %d", m.PendingPayout(alice), m.PoolTotal())
	}

	amount, err := m.ClaimPayout(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount != 300 || m.Vault != 200 || m.PendingPayout(alice) != 0 {
		t.Errorf("claim = %d, vault %d, pending %d", amount, m.Vault, m.PendingPayout(alice))
	}

	// Claiming with nothing pending is a no-op, not an error.
	amount, err = m.ClaimPayout(alice)
	if err != nil || amount != 0 {
		t.Errorf("empty claim = (%d, %v), want (0, nil)", amount, err)
	}
}

func TestOptionNames(t *testing.T) {
	m := newTestMarket(Immediate)
	if m.OptionName(orderbook.OptionA) != "Yes" || m.OptionName(orderbook.OptionB) != "No" {
		t.Error("option names not wired to outcomes")
	}
}

func TestRegistrySequencesIDs(t *testing.T) {
	r := NewRegistry()
	id1 := r.NextID()
	id2 := r.NextID()
	if id1 != "mkt-1" || id2 != "mkt-2" {
		t.Errorf("ids = %s, %s", id1, id2)
	}

	m := New(id1, "q", "A", "B", Immediate, 1)
	if err := r.Register(m); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(m); !errors.Is(err, ErrMarketExists) {
		t.Errorf("duplicate register = %v, want ErrMarketExists", err)
	}
	if _, err := r.Get("mkt-9"); !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("missing get = %v, want ErrMarketNotFound", err)
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
}

func TestRegistryStatusTransitions(t *testing.T) {
	r := NewRegistry()
	m := New(r.NextID(), "q", "A", "B", Immediate, 1)
	r.Register(m)

	if err := r.UpdateStatus(m.ID, Paused); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if m.IsActive() {
		t.Error("paused market reports active")
	}
	if err := r.UpdateStatus(m.ID, Resolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Resolved is terminal.
	if err := r.UpdateStatus(m.ID, Active); !errors.Is(err, ErrMarketInactive) {
		t.Errorf("reactivate resolved = %v, want ErrMarketInactive", err)
	}
}

func TestRegistryRestoreAdvancesSequence(t *testing.T) {
	r := NewRegistry()
	m := New("mkt-7", "q", "A", "B", Immediate, 1)
	r.Restore(m, 7)

	if got, err := r.Get("mkt-7"); err != nil || got != m {
		t.Fatalf("restored market missing: %v", err)
	}
	if next := r.NextID(); next != "mkt-8" {
		t.Errorf("next id = %s, want mkt-8", next)
	}
}
