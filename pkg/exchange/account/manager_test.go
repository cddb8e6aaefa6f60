package account

import (
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestCreateOncePerTraderMarket(t *testing.T) {
	m := NewManager()

	b, err := m.Create(alice, "mkt-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Balance != 0 {
		t.Errorf("new balance = %d, want 0", b.Balance)
	}
	if _, err := m.Create(alice, "mkt-1"); !errors.Is(err, ErrBalanceExists) {
		t.Errorf("duplicate create = %v, want ErrBalanceExists", err)
	}
	// Same trader, different market is a distinct balance.
	if _, err := m.Create(alice, "mkt-2"); err != nil {
		t.Errorf("second market create: %v", err)
	}
	if _, err := m.Get(bob, "mkt-1"); !errors.Is(err, ErrBalanceNotFound) {
		t.Errorf("missing get = %v, want ErrBalanceNotFound", err)
	}
}

func TestDepositWithdraw(t *testing.T) {
	m := NewManager()
	m.Create(alice, "mkt-1")

	if _, err := m.Deposit(alice, "mkt-1", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero deposit = %v, want ErrInvalidAmount", err)
	}
	if _, err := m.Deposit(alice, "mkt-1", -5); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative deposit = %v, want ErrInvalidAmount", err)
	}

	b, err := m.Deposit(alice, "mkt-1", 1000)
	if err != nil || b.Balance != 1000 {
		t.Fatalf("deposit = (%v, %v)", b, err)
	}

	if _, err := m.Withdraw(alice, "mkt-1", 1001); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdraw = %v, want ErrInsufficientFunds", err)
	}
	b, err = m.Withdraw(alice, "mkt-1", 400)
	if err != nil || b.Balance != 600 {
		t.Fatalf("withdraw = (%v, %v)", b, err)
	}
}

func TestDepositOverflowRejected(t *testing.T) {
	m := NewManager()
	m.Create(alice, "mkt-1")
	m.Deposit(alice, "mkt-1", math.MaxInt64-10)

	if _, err := m.Deposit(alice, "mkt-1", 11); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("overflowing deposit = %v, want ErrInvalidAmount", err)
	}
	b, err := m.Get(alice, "mkt-1")
	if err != nil || b.Balance != math.MaxInt64-10 {
		t.Fatalf("balance after rejected deposit = (%v, %v)", b, err)
	}
	if _, err := m.Deposit(alice, "mkt-1", 10); err != nil {
		t.Errorf("deposit up to the limit: %v", err)
	}
}

func TestDebitCredit(t *testing.T) {
	m := NewManager()
	m.Create(alice, "mkt-1")
	m.Deposit(alice, "mkt-1", 500)

	if _, err := m.Debit(alice, "mkt-1", 600); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("over-debit = %v, want ErrInsufficientFunds", err)
	}
	// A negative debit would credit the account.
	if _, err := m.Debit(alice, "mkt-1", -100); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative debit = %v, want ErrInvalidAmount", err)
	}
	if _, err := m.Debit(alice, "mkt-1", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero debit = %v, want ErrInvalidAmount", err)
	}
	b, err := m.Debit(alice, "mkt-1", 500)
	if err != nil || b.Balance != 0 {
		t.Fatalf("debit = (%v, %v)", b, err)
	}
	b, err = m.Credit(alice, "mkt-1", 350)
	if err != nil || b.Balance != 350 {
		t.Fatalf("credit = (%v, %v)", b, err)
	}
}

func TestRestore(t *testing.T) {
	m := NewManager()
	m.Restore(&UserBalance{Trader: bob, MarketID: "mkt-3", Balance: 42})

	b, err := m.Get(bob, "mkt-3")
	if err != nil || b.Balance != 42 {
		t.Fatalf("restored balance = (%v, %v)", b, err)
	}
	if len(m.All()) != 1 {
		t.Errorf("All() = %d entries, want 1", len(m.All()))
	}
}
