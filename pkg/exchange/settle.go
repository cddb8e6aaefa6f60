package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"duomarket/pkg/exchange/market"
	"duomarket/pkg/exchange/orderbook"
	"duomarket/pkg/exchange/store"
)

// settleFills applies the economics of each fill, in fill order:
//
//  1. pay the seller Price x Qty out of the vault (or accrue it in the
//     settlement pool when the market is deferred),
//  2. release excess bid collateral (BidRate - Price) x Qty to the buyer,
//  3. move the locked shares of the fill's outcome from seller to buyer.
//
// Every fill arrives pre-funded: the payment plus the refund equal exactly
// the collateral the funding bid locked for those units, so the vault can
// always cover both. An error here means that bookkeeping broke.
func (e *Engine) settleFills(m *market.Market, fills []orderbook.Fill) ([]Trade, error) {
	if len(fills) == 0 {
		return nil, nil
	}
	trades := make([]Trade, 0, len(fills))
	for _, f := range fills {
		payment := f.Payment()
		deferred := m.Mode == market.Deferred
		if deferred {
			m.AccruePayout(f.Seller, payment)
		} else {
			if err := m.PayFromVault(payment); err != nil {
				return trades, fmt.Errorf("pay seller for fill %d/%d: %w", f.TakerID, f.MakerID, err)
			}
			if _, err := e.balances.Credit(f.Seller, m.ID, payment); err != nil {
				return trades, fmt.Errorf("credit seller %s: %w", f.Seller.Hex(), err)
			}
		}

		if refund := f.Refund(); refund > 0 {
			if err := m.PayFromVault(refund); err != nil {
				return trades, fmt.Errorf("refund buyer for fill %d/%d: %w", f.TakerID, f.MakerID, err)
			}
			if _, err := e.balances.Credit(f.Buyer, m.ID, refund); err != nil {
				return trades, fmt.Errorf("credit buyer %s: %w", f.Buyer.Hex(), err)
			}
			e.emit(Event{Type: EventOrderRefunded, MarketID: m.ID, Time: e.clock.Current(), Order: &OrderEvent{
				ID:     f.BidID,
				Trader: f.Buyer,
				Option: f.Option.String(),
				Side:   orderbook.Bid.String(),
				Refund: refund,
			}})
		}

		if err := m.Ledger(f.Option).TransferLocked(f.Seller, f.Buyer, f.Qty); err != nil {
			return trades, fmt.Errorf("transfer %d %s shares %s -> %s: %w",
				f.Qty, f.Option, f.Seller.Hex(), f.Buyer.Hex(), err)
		}

		now := e.clock.Next()
		matchType := EventAutoMatched
		if f.Cross {
			matchType = EventCrossMatched
		}
		e.emit(Event{Type: matchType, MarketID: m.ID, Time: now, Match: &MatchEvent{
			TakerOrder: f.TakerID,
			MakerOrder: f.MakerID,
			Buyer:      f.Buyer,
			Seller:     f.Seller,
			Option:     f.Option.String(),
			Price:      f.Price,
			Qty:        f.Qty,
			Cross:      f.Cross,
		}})
		e.emit(Event{Type: EventSharesTransferred, MarketID: m.ID, Time: now, Transfer: &TransferEvent{
			From:   f.Seller,
			To:     f.Buyer,
			Option: f.Option.String(),
			Qty:    f.Qty,
		}})
		e.emit(Event{Type: EventTradeSettled, MarketID: m.ID, Time: now, Settlement: &SettlementEvent{
			Trader:   f.Seller,
			Amount:   payment,
			Deferred: deferred,
		}})

		trade := Trade{
			MarketID:   m.ID,
			TakerOrder: f.TakerID,
			MakerOrder: f.MakerID,
			Buyer:      f.Buyer,
			Seller:     f.Seller,
			Option:     f.Option,
			Price:      f.Price,
			Qty:        f.Qty,
			Cross:      f.Cross,
			Time:       now,
		}
		trades = append(trades, trade)
		e.appendTrade(trade)

		e.log.Info("trade",
			zap.String("market", m.ID),
			zap.Uint64("taker", f.TakerID),
			zap.Uint64("maker", f.MakerID),
			zap.String("option", f.Option.String()),
			zap.Int64("price", f.Price),
			zap.Int64("qty", f.Qty),
			zap.Bool("cross", f.Cross))
	}
	return trades, nil
}

func (e *Engine) appendTrade(t Trade) {
	hist := append(e.trades[t.MarketID], t)
	if len(hist) > recentTradeCap {
		hist = hist[len(hist)-recentTradeCap:]
	}
	e.trades[t.MarketID] = hist
}

// persistOrderFlow writes everything one place operation touched in a
// single batch: the taker order, each maker it hit, the balances and share
// positions of every party, the market record, and the trade log.
func (e *Engine) persistOrderFlow(m *market.Market, book *orderbook.OrderBook, taker *orderbook.Order, fills []orderbook.Fill, trades []Trade) error {
	return e.withBatch(func(b *store.Batch) error {
		if err := b.SaveOrder(taker); err != nil {
			return err
		}
		savedOrders := map[uint64]struct{}{taker.ID: {}}
		savedBalances := make(map[common.Address]struct{})
		savedShares := make(map[shareKey]struct{})

		saveBalance := func(trader common.Address) error {
			if _, done := savedBalances[trader]; done {
				return nil
			}
			savedBalances[trader] = struct{}{}
			bal, err := e.balances.Get(trader, m.ID)
			if err != nil {
				return err
			}
			return b.SaveBalance(bal)
		}
		saveShare := func(trader common.Address, opt orderbook.Option) error {
			key := shareKey{trader, opt}
			if _, done := savedShares[key]; done {
				return nil
			}
			savedShares[key] = struct{}{}
			return b.SaveShare(shareRecord(m, opt, trader))
		}

		for i, f := range fills {
			for _, id := range []uint64{f.TakerID, f.MakerID, f.BidID} {
				if _, done := savedOrders[id]; done {
					continue
				}
				savedOrders[id] = struct{}{}
				if o, ok := book.Get(id); ok {
					if err := b.SaveOrder(o); err != nil {
						return err
					}
				}
			}
			for _, trader := range []common.Address{f.Buyer, f.Seller} {
				if err := saveBalance(trader); err != nil {
					return err
				}
				if err := saveShare(trader, f.Option); err != nil {
					return err
				}
			}
			if err := b.SaveTrade(tradeRecord(trades[i])); err != nil {
				return err
			}
		}

		// Bid placement moves cash into the vault even without fills, and
		// ask placement locks shares; both need their rows refreshed.
		if taker.Side == orderbook.Bid {
			if err := saveBalance(taker.Trader); err != nil {
				return err
			}
		} else if err := saveShare(taker.Trader, taker.Option); err != nil {
			return err
		}
		return b.SaveMarket(marketRecord(m))
	})
}

type shareKey struct {
	trader common.Address
	opt    orderbook.Option
}

func tradeRecord(t Trade) store.TradeRecord {
	return store.TradeRecord{
		MarketID:   t.MarketID,
		TakerOrder: t.TakerOrder,
		MakerOrder: t.MakerOrder,
		Buyer:      t.Buyer,
		Seller:     t.Seller,
		Option:     t.Option.Byte(),
		Price:      t.Price,
		Qty:        t.Qty,
		Cross:      t.Cross,
		Time:       t.Time,
	}
}
