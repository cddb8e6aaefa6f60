package orderbook

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func newOrder(trader common.Address, opt Option, side Side, price, qty int64) *Order {
	o := &Order{
		Trader:   trader,
		MarketID: "mkt-1",
		Option:   opt,
		Side:     side,
		Price:    price,
		Quantity: qty,
		Status:   StatusOpen,
	}
	if side == Bid {
		o.LockedCollateral = price * qty
	}
	return o
}

func TestInsertAssignsMonotonicIDs(t *testing.T) {
	b := NewOrderBook("mkt-1")

	id1 := b.Insert(newOrder(alice, OptionA, Bid, 40, 10))
	id2 := b.Insert(newOrder(bob, OptionA, Ask, 60, 5))
	if id1 != 1 || id2 != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", id1, id2)
	}
	if !b.IsActive(id1) || !b.IsActive(id2) {
		t.Error("inserted orders should be active")
	}

	bids, asks := b.Depth()
	if bids != 1 || asks != 1 {
		t.Errorf("depth = (%d, %d), want (1, 1)", bids, asks)
	}
}

func TestTopBidTopAsk(t *testing.T) {
	b := NewOrderBook("mkt-1")

	if got := b.TopBid(OptionA); got != 0 {
		t.Errorf("empty TopBid = %d, want 0", got)
	}
	if got := b.TopAsk(OptionA); got != 0 {
		t.Errorf("empty TopAsk = %d, want 0", got)
	}

	b.Insert(newOrder(alice, OptionA, Bid, 40, 10))
	b.Insert(newOrder(alice, OptionA, Bid, 45, 10))
	b.Insert(newOrder(bob, OptionA, Ask, 60, 10))
	b.Insert(newOrder(bob, OptionA, Ask, 55, 10))

	if got := b.TopBid(OptionA); got != 45 {
		t.Errorf("TopBid = %d, want 45", got)
	}
	if got := b.TopAsk(OptionA); got != 55 {
		t.Errorf("TopAsk = %d, want 55", got)
	}
	// The other outcome's book is independent.
	if got := b.TopBid(OptionB); got != 0 {
		t.Errorf("TopBid(B) = %d, want 0", got)
	}
}

func TestCancelRemovesEverywhere(t *testing.T) {
	b := NewOrderBook("mkt-1")
	id := b.Insert(newOrder(alice, OptionA, Bid, 40, 10))

	o, err := b.Cancel(id, alice)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if o.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", o.Status)
	}
	if b.IsActive(id) {
		t.Error("cancelled order still active")
	}
	if _, ok := b.Get(id); ok {
		t.Error("cancelled order still in table")
	}
	bids, _ := b.Depth()
	if bids != 0 {
		t.Errorf("bid depth = %d, want 0 after cancel", bids)
	}
	if got := b.TopBid(OptionA); got != 0 {
		t.Errorf("TopBid after cancel = %d, want 0", got)
	}
}

func TestCancelErrors(t *testing.T) {
	b := NewOrderBook("mkt-1")
	id := b.Insert(newOrder(alice, OptionA, Bid, 40, 10))

	if _, err := b.Cancel(999, alice); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("cancel missing = %v, want ErrOrderNotFound", err)
	}
	if _, err := b.Cancel(id, carol); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("cancel by non-owner = %v, want ErrUnauthorized", err)
	}
	// The failed cancel must leave the order untouched.
	if o, ok := b.Get(id); !ok || o.Status != StatusOpen {
		t.Error("order mutated by failed cancel")
	}
}

func TestCancelFilledOrder(t *testing.T) {
	b := NewOrderBook("mkt-1")
	bidID, _ := b.Place(newOrder(alice, OptionA, Bid, 40, 10))
	b.Place(newOrder(bob, OptionA, Ask, 40, 10))

	// The order is still queryable, so the error must say filled, not missing.
	if _, err := b.Cancel(bidID, alice); !errors.Is(err, ErrOrderFilled) {
		t.Errorf("cancel filled = %v, want ErrOrderFilled", err)
	}
	if o, ok := b.Get(bidID); !ok || o.Status != StatusFilled {
		t.Error("filled order mutated by failed cancel")
	}
}

func TestFilledOrdersStayInDepth(t *testing.T) {
	b := NewOrderBook("mkt-1")
	b.Place(newOrder(alice, OptionA, Bid, 40, 10))
	_, fills := b.Place(newOrder(bob, OptionA, Ask, 40, 10))
	if len(fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(fills))
	}

	// Both orders fully filled: gone from active, still counted in depth.
	if b.ActiveCount() != 0 {
		t.Errorf("active = %d, want 0", b.ActiveCount())
	}
	bids, asks := b.Depth()
	if bids != 1 || asks != 1 {
		t.Errorf("depth = (%d, %d), want (1, 1)", bids, asks)
	}
	if got := b.TopBid(OptionA); got != 0 {
		t.Errorf("TopBid = %d, want 0 after full fill", got)
	}
}

func TestLevelsAggregateAndSort(t *testing.T) {
	b := NewOrderBook("mkt-1")
	b.Insert(newOrder(alice, OptionA, Bid, 40, 10))
	b.Insert(newOrder(bob, OptionA, Bid, 40, 5))
	b.Insert(newOrder(alice, OptionA, Bid, 45, 3))
	b.Insert(newOrder(bob, OptionA, Ask, 60, 7))
	b.Insert(newOrder(bob, OptionA, Ask, 55, 2))

	bids := b.BidLevels(OptionA)
	if len(bids) != 2 {
		t.Fatalf("bid levels = %d, want 2", len(bids))
	}
	if bids[0].Price != 45 || bids[0].Qty != 3 {
		t.Errorf("best bid level = %+v, want price 45 qty 3", bids[0])
	}
	if bids[1].Price != 40 || bids[1].Qty != 15 || bids[1].Orders != 2 {
		t.Errorf("second bid level = %+v, want price 40 qty 15 orders 2", bids[1])
	}

	asks := b.AskLevels(OptionA)
	if len(asks) != 2 || asks[0].Price != 55 {
		t.Fatalf("ask levels = %+v, want best 55", asks)
	}
}

func TestRestoreRebuildsIndices(t *testing.T) {
	b := NewOrderBook("mkt-1")
	open := newOrder(alice, OptionA, Bid, 40, 10)
	open.ID = 3
	filled := newOrder(bob, OptionA, Ask, 60, 5)
	filled.ID = 7
	filled.Filled = 5
	filled.Status = StatusFilled

	b.Restore(open)
	b.Restore(filled)

	if !b.IsActive(3) {
		t.Error("open order should be active after restore")
	}
	if b.IsActive(7) {
		t.Error("filled order should not be active after restore")
	}
	if got := b.TopBid(OptionA); got != 40 {
		t.Errorf("TopBid = %d, want 40", got)
	}
	bids, asks := b.Depth()
	if bids != 1 || asks != 1 {
		t.Errorf("depth = (%d, %d), want (1, 1)", bids, asks)
	}

	// New inserts continue past the highest restored id.
	id := b.Insert(newOrder(carol, OptionB, Bid, 20, 1))
	if id != 8 {
		t.Errorf("next id = %d, want 8", id)
	}
}

func TestOptionEncoding(t *testing.T) {
	if OptionA.Other() != OptionB || OptionB.Other() != OptionA {
		t.Error("Other is not an involution")
	}
	if ComplementPrice(40) != 60 || ComplementPrice(99) != 1 {
		t.Error("complement price broken")
	}
	for _, b := range []byte{0, 1} {
		opt, err := OptionFromByte(b)
		if err != nil {
			t.Fatalf("OptionFromByte(%d): %v", b, err)
		}
		if opt.Byte() != b {
			t.Errorf("byte round trip failed for %d", b)
		}
	}
	if _, err := OptionFromByte(2); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("OptionFromByte(2) = %v, want ErrInvalidOption", err)
	}
	if _, err := SideFromByte(2); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("SideFromByte(2) = %v, want ErrInvalidSide", err)
	}
}
