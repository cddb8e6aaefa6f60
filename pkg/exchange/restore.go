package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"duomarket/pkg/exchange/market"
	"duomarket/pkg/exchange/orderbook"
)

// Restore rebuilds the full in-memory state from the store: markets and
// their vaults, order books with price levels re-indexed, balances, share
// positions, settlement pools, and recent trade history. The logical clock
// ends up ahead of every persisted timestamp.
func (e *Engine) Restore() error {
	if e.db == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	recs, err := e.db.LoadMarkets()
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	var maxTick uint64
	for _, rec := range recs {
		m := market.New(rec.ID, rec.Question, rec.OptionAName, rec.OptionBName,
			market.SettlementMode(rec.Mode), rec.CreatedAt)
		m.Status = market.Status(rec.Status)
		m.Vault = rec.Vault
		for hex, amt := range rec.Pool {
			m.RestorePayout(common.HexToAddress(hex), amt)
		}

		var seq uint64
		fmt.Sscanf(rec.ID, "mkt-%d", &seq)
		e.registry.Restore(m, seq)

		book := orderbook.NewOrderBook(rec.ID)
		orders, err := e.db.LoadOrders(rec.ID)
		if err != nil {
			return fmt.Errorf("load orders for %s: %w", rec.ID, err)
		}
		for _, o := range orders {
			book.Restore(o)
			if o.CreatedAt > maxTick {
				maxTick = o.CreatedAt
			}
		}
		e.books[rec.ID] = book

		shares, err := e.db.LoadShares(rec.ID)
		if err != nil {
			return fmt.Errorf("load shares for %s: %w", rec.ID, err)
		}
		for _, s := range shares {
			opt, err := orderbook.OptionFromByte(s.Option)
			if err != nil {
				return fmt.Errorf("share record for %s: %w", rec.ID, err)
			}
			m.Ledger(opt).Restore(s.Trader, market.SharePosition{Total: s.Total, Locked: s.Locked})
		}

		trades, err := e.db.RecentTrades(rec.ID, recentTradeCap)
		if err != nil {
			return fmt.Errorf("load trades for %s: %w", rec.ID, err)
		}
		// RecentTrades is newest first; history is kept oldest first.
		for i := len(trades) - 1; i >= 0; i-- {
			t := trades[i]
			opt, err := orderbook.OptionFromByte(t.Option)
			if err != nil {
				return fmt.Errorf("trade record for %s: %w", rec.ID, err)
			}
			e.trades[rec.ID] = append(e.trades[rec.ID], Trade{
				MarketID:   t.MarketID,
				TakerOrder: t.TakerOrder,
				MakerOrder: t.MakerOrder,
				Buyer:      t.Buyer,
				Seller:     t.Seller,
				Option:     opt,
				Price:      t.Price,
				Qty:        t.Qty,
				Cross:      t.Cross,
				Time:       t.Time,
			})
			if t.Time > maxTick {
				maxTick = t.Time
			}
		}

		if rec.CreatedAt > maxTick {
			maxTick = rec.CreatedAt
		}
	}

	balances, err := e.db.LoadBalances()
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	for _, bal := range balances {
		e.balances.Restore(bal)
	}

	e.clock.AdvanceTo(maxTick)
	e.log.Info("state restored",
		zap.Int("markets", e.registry.Count()),
		zap.Int("balances", len(balances)),
		zap.Uint64("tick", maxTick))
	return nil
}
