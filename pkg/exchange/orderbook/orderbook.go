package orderbook

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// PriceLevel aggregates resting quantity at one price.
type PriceLevel struct {
	Price  int64 `json:"price"`
	Qty    int64 `json:"qty"`
	Orders int   `json:"orders"`
}

// OrderBook holds every order of one market: an order table, the active set,
// per-side insertion-order id lists, and per-outcome price-level queues with
// heap-tracked best prices.
//
// Fully filled orders leave the active set and the level queues but stay in
// the order table and the side lists, so historical depth remains queryable.
// Cancelled orders are removed everywhere.
//
// The book does not lock; the engine serializes every call that touches it.
type OrderBook struct {
	marketID string

	orders map[uint64]*Order
	active map[uint64]struct{}

	// Insertion-order id lists per side. Entries survive full fills.
	bidIDs []uint64
	askIDs []uint64

	// Price-level FIFO queues and best-price heaps, per outcome.
	// Level queues hold active orders only.
	bidLevels map[Option]map[int64][]uint64
	askLevels map[Option]map[int64][]uint64
	bidHeaps  map[Option]*MaxPriceHeap
	askHeaps  map[Option]*MinPriceHeap

	nextID uint64
}

func NewOrderBook(marketID string) *OrderBook {
	b := &OrderBook{
		marketID:  marketID,
		orders:    make(map[uint64]*Order),
		active:    make(map[uint64]struct{}),
		bidLevels: make(map[Option]map[int64][]uint64),
		askLevels: make(map[Option]map[int64][]uint64),
		bidHeaps:  make(map[Option]*MaxPriceHeap),
		askHeaps:  make(map[Option]*MinPriceHeap),
	}
	for _, opt := range []Option{OptionA, OptionB} {
		b.bidLevels[opt] = make(map[int64][]uint64)
		b.askLevels[opt] = make(map[int64][]uint64)
		bh := &MaxPriceHeap{}
		ah := &MinPriceHeap{}
		heap.Init(bh)
		heap.Init(ah)
		b.bidHeaps[opt] = bh
		b.askHeaps[opt] = ah
	}
	return b
}

func (b *OrderBook) MarketID() string { return b.marketID }

// Insert assigns the next order id and adds the order to every index.
// Validation happens before this is called.
func (b *OrderBook) Insert(o *Order) uint64 {
	b.nextID++
	o.ID = b.nextID
	o.MarketID = b.marketID
	o.Status = StatusOpen

	b.orders[o.ID] = o
	b.active[o.ID] = struct{}{}
	if o.Side == Bid {
		b.bidIDs = append(b.bidIDs, o.ID)
	} else {
		b.askIDs = append(b.askIDs, o.ID)
	}
	b.addToLevel(o)
	return o.ID
}

// Cancel removes an order from every index and returns it with the unfilled
// remainder intact, so the caller can refund collateral or unlock shares.
// Partially filled orders may be cancelled; only the remainder is affected.
func (b *OrderBook) Cancel(id uint64, caller common.Address) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", ErrOrderNotFound, id)
	}
	if o.Trader != caller {
		return nil, fmt.Errorf("%w: order %d not owned by %s", ErrUnauthorized, id, caller.Hex())
	}
	if _, live := b.active[id]; !live {
		// Fully filled orders are kept for history but cannot be cancelled.
		return nil, fmt.Errorf("%w: order %d", ErrOrderFilled, id)
	}

	delete(b.active, id)
	b.removeFromLevel(o)
	if o.Side == Bid {
		b.bidIDs = removeID(b.bidIDs, id)
	} else {
		b.askIDs = removeID(b.askIDs, id)
	}
	delete(b.orders, id)

	o.Status = StatusCancelled
	return o, nil
}

// Get returns an order from the table. Cancelled orders are absent.
func (b *OrderBook) Get(id uint64) (*Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// IsActive reports whether an order still has unfilled, uncancelled quantity.
func (b *OrderBook) IsActive(id uint64) bool {
	_, ok := b.active[id]
	return ok
}

// TopBid returns the best active bid price for an outcome, 0 if none.
func (b *OrderBook) TopBid(opt Option) int64 { return b.bidHeaps[opt].Peek() }

// TopAsk returns the best active ask price for an outcome, 0 if none.
func (b *OrderBook) TopAsk(opt Option) int64 { return b.askHeaps[opt].Peek() }

// Depth returns the side list lengths. Filled orders are still counted;
// callers needing live depth must cross-reference the active set.
func (b *OrderBook) Depth() (bids, asks int) {
	return len(b.bidIDs), len(b.askIDs)
}

// ActiveCount returns the number of orders with unfilled quantity.
func (b *OrderBook) ActiveCount() int { return len(b.active) }

// BidLevels returns aggregated bid levels for an outcome, best price first.
func (b *OrderBook) BidLevels(opt Option) []PriceLevel {
	levels := b.aggregate(b.bidLevels[opt])
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	return levels
}

// AskLevels returns aggregated ask levels for an outcome, best price first.
func (b *OrderBook) AskLevels(opt Option) []PriceLevel {
	levels := b.aggregate(b.askLevels[opt])
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return levels
}

// Orders returns every order in the table sorted by id, filled ones included.
func (b *OrderBook) Orders() []*Order {
	out := make([]*Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore re-inserts an order loaded from storage, keeping its id. Active
// orders rejoin the level queues; filled ones rejoin only the history lists.
// Callers must restore in ascending id order.
func (b *OrderBook) Restore(o *Order) {
	if o.Status == StatusCancelled {
		return
	}
	b.orders[o.ID] = o
	if o.Side == Bid {
		b.bidIDs = append(b.bidIDs, o.ID)
	} else {
		b.askIDs = append(b.askIDs, o.ID)
	}
	if o.Status != StatusFilled {
		b.active[o.ID] = struct{}{}
		b.addToLevel(o)
	}
	if o.ID > b.nextID {
		b.nextID = o.ID
	}
}

func (b *OrderBook) aggregate(levels map[int64][]uint64) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for price, ids := range levels {
		if len(ids) == 0 {
			continue
		}
		var qty int64
		for _, id := range ids {
			qty += b.orders[id].Remaining()
		}
		out = append(out, PriceLevel{Price: price, Qty: qty, Orders: len(ids)})
	}
	return out
}

func (b *OrderBook) addToLevel(o *Order) {
	if o.Side == Bid {
		if len(b.bidLevels[o.Option][o.Price]) == 0 {
			heap.Push(b.bidHeaps[o.Option], o.Price)
		}
		b.bidLevels[o.Option][o.Price] = append(b.bidLevels[o.Option][o.Price], o.ID)
	} else {
		if len(b.askLevels[o.Option][o.Price]) == 0 {
			heap.Push(b.askHeaps[o.Option], o.Price)
		}
		b.askLevels[o.Option][o.Price] = append(b.askLevels[o.Option][o.Price], o.ID)
	}
}

func (b *OrderBook) removeFromLevel(o *Order) {
	if o.Side == Bid {
		q := removeID(b.bidLevels[o.Option][o.Price], o.ID)
		if len(q) == 0 {
			delete(b.bidLevels[o.Option], o.Price)
			removeFromMaxHeap(b.bidHeaps[o.Option], o.Price)
		} else {
			b.bidLevels[o.Option][o.Price] = q
		}
	} else {
		q := removeID(b.askLevels[o.Option][o.Price], o.ID)
		if len(q) == 0 {
			delete(b.askLevels[o.Option], o.Price)
			removeFromMinHeap(b.askHeaps[o.Option], o.Price)
		} else {
			b.askLevels[o.Option][o.Price] = q
		}
	}
}

func removeFromMaxHeap(h *MaxPriceHeap, price int64) {
	for i := 0; i < h.Len(); i++ {
		if (*h)[i] == price {
			heap.Remove(h, i)
			return
		}
	}
}

func removeFromMinHeap(h *MinPriceHeap, price int64) {
	for i := 0; i < h.Len(); i++ {
		if (*h)[i] == price {
			heap.Remove(h, i)
			return
		}
	}
}

func removeID(ids []uint64, id uint64) []uint64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
