package orderbook

import "github.com/ethereum/go-ethereum/common"

// Fill is one execution produced by matching. The book records quantity and
// collateral bookkeeping; moving funds and shares is the caller's job.
//
// Price is the per-share amount owed to the seller. BidRate is the per-share
// rate the funding bid locked at placement; when it exceeds Price the
// difference goes back to the buyer.
type Fill struct {
	TakerID uint64
	MakerID uint64
	BidID   uint64 // order whose locked collateral funds the payment

	Buyer  common.Address // receives shares
	Seller common.Address // receives payment

	Option  Option // outcome whose shares change hands (the ask side's outcome)
	Price   int64
	BidRate int64
	Qty     int64
	Cross   bool
}

// Payment is the amount drawn from the vault for the seller.
func (f Fill) Payment() int64 { return f.Price * f.Qty }

// Refund is the excess collateral released back to the buyer.
func (f Fill) Refund() int64 { return (f.BidRate - f.Price) * f.Qty }

// Place inserts the order and runs both matching phases against it. Resting
// orders are never re-evaluated against each other; only the newly placed
// order can trigger executions.
func (b *OrderBook) Place(o *Order) (uint64, []Fill) {
	id := b.Insert(o)
	fills := b.matchSame(o)
	if o.Remaining() > 0 {
		fills = append(fills, b.matchCross(o)...)
	}
	return id, fills
}

// matchSame crosses the taker against resting orders on the same outcome,
// walking the opposite side's price levels best-first, FIFO within a level.
// Execution is at the resting (maker) order's price.
func (b *OrderBook) matchSame(taker *Order) []Fill {
	var fills []Fill
	opt := taker.Option

	if taker.Side == Bid {
		h := b.askHeaps[opt]
		for taker.Remaining() > 0 && h.Len() > 0 {
			p := h.Peek()
			if p > taker.Price {
				break
			}
			maker := b.orders[b.askLevels[opt][p][0]]
			qty := min(taker.Remaining(), maker.Remaining())
			fills = append(fills, Fill{
				TakerID: taker.ID, MakerID: maker.ID, BidID: taker.ID,
				Buyer: taker.Trader, Seller: maker.Trader,
				Option: opt, Price: p, BidRate: taker.Price, Qty: qty,
			})
			b.applyFill(taker, maker, taker, qty)
		}
		return fills
	}

	h := b.bidHeaps[opt]
	for taker.Remaining() > 0 && h.Len() > 0 {
		p := h.Peek()
		if p < taker.Price {
			break
		}
		maker := b.orders[b.bidLevels[opt][p][0]]
		qty := min(taker.Remaining(), maker.Remaining())
		fills = append(fills, Fill{
			TakerID: taker.ID, MakerID: maker.ID, BidID: maker.ID,
			Buyer: maker.Trader, Seller: taker.Trader,
			Option: opt, Price: p, BidRate: p, Qty: qty,
		})
		b.applyFill(taker, maker, maker, qty)
	}
	return fills
}

// matchCross crosses the taker against resting orders on the complementary
// outcome. A bid on O at p is compatible with an ask on complement(O) at q
// when q ≤ 100−p. The ask side's outcome shares move to the bid's trader and
// the payment is priced at the bid's own locked rate, so no refund arises.
func (b *OrderBook) matchCross(taker *Order) []Fill {
	var fills []Fill
	other := taker.Option.Other()
	limit := ComplementPrice(taker.Price)

	if taker.Side == Bid {
		h := b.askHeaps[other]
		for taker.Remaining() > 0 && h.Len() > 0 {
			if h.Peek() > limit {
				break
			}
			maker := b.orders[b.askLevels[other][h.Peek()][0]]
			qty := min(taker.Remaining(), maker.Remaining())
			fills = append(fills, Fill{
				TakerID: taker.ID, MakerID: maker.ID, BidID: taker.ID,
				Buyer: taker.Trader, Seller: maker.Trader,
				Option: other, Price: taker.Price, BidRate: taker.Price, Qty: qty, Cross: true,
			})
			b.applyFill(taker, maker, taker, qty)
		}
		return fills
	}

	// Taker is an ask on O: compatible resting bids on complement(O) are those
	// priced ≤ 100−p. The cap can exclude the best bid while admitting lower
	// ones, so the heap top alone cannot drive this loop.
	for taker.Remaining() > 0 {
		price, ok := b.bestBidAtOrBelow(other, limit)
		if !ok {
			break
		}
		maker := b.orders[b.bidLevels[other][price][0]]
		qty := min(taker.Remaining(), maker.Remaining())
		fills = append(fills, Fill{
			TakerID: taker.ID, MakerID: maker.ID, BidID: maker.ID,
			Buyer: maker.Trader, Seller: taker.Trader,
			Option: taker.Option, Price: price, BidRate: price, Qty: qty, Cross: true,
		})
		b.applyFill(taker, maker, maker, qty)
	}
	return fills
}

// bestBidAtOrBelow returns the highest bid price not exceeding limit.
func (b *OrderBook) bestBidAtOrBelow(opt Option, limit int64) (int64, bool) {
	var best int64
	found := false
	for price := range b.bidLevels[opt] {
		if price <= limit && (!found || price > best) {
			best = price
			found = true
		}
	}
	return best, found
}

// applyFill updates fill quantities, releases the bid's per-unit collateral
// reservation, and drops fully filled orders from the active set and their
// level queue while keeping them in the order table and side lists.
func (b *OrderBook) applyFill(taker, maker, bid *Order, qty int64) {
	taker.Filled += qty
	maker.Filled += qty
	bid.LockedCollateral -= bid.Price * qty

	for _, o := range []*Order{maker, taker} {
		if o.Remaining() == 0 {
			o.Status = StatusFilled
			delete(b.active, o.ID)
			b.removeFromLevel(o)
		} else if o.Filled > 0 {
			o.Status = StatusPartiallyFilled
		}
	}
}
