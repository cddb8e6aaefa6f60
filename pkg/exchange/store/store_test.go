package store

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"duomarket/pkg/exchange/account"
	"duomarket/pkg/exchange/orderbook"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarketRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec := MarketRecord{
		ID:          "mkt-1",
		Question:    "Will it rain tomorrow?",
		OptionAName: "Yes",
		OptionBName: "No",
		Status:      0,
		Mode:        1,
		CreatedAt:   5,
		Vault:       1200,
		Pool:        map[string]int64{alice.Hex(): 300},
	}
	require.NoError(t, s.SaveMarket(rec))
	require.NoError(t, s.SaveMarket(MarketRecord{ID: "mkt-2", Question: "q2"}))

	got, err := s.LoadMarkets()
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[string]MarketRecord{}
	for _, m := range got {
		byID[m.ID] = m
	}
	require.Equal(t, rec, byID["mkt-1"])
}

func TestBalanceRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveBalance(&account.UserBalance{Trader: alice, MarketID: "mkt-1", Balance: 600}))
	require.NoError(t, s.SaveBalance(&account.UserBalance{Trader: bob, MarketID: "mkt-1", Balance: 400}))
	// Overwrite is an update, not a duplicate.
	require.NoError(t, s.SaveBalance(&account.UserBalance{Trader: alice, MarketID: "mkt-1", Balance: 550}))

	balances, err := s.LoadBalances()
	require.NoError(t, err)
	require.Len(t, balances, 2)

	byTrader := map[common.Address]int64{}
	for _, b := range balances {
		byTrader[b.Trader] = b.Balance
	}
	require.Equal(t, int64(550), byTrader[alice])
	require.Equal(t, int64(400), byTrader[bob])
}

func TestOrdersLoadInIDOrder(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []uint64{12, 3, 100} {
		require.NoError(t, s.SaveOrder(&orderbook.Order{
			ID: id, Trader: alice, MarketID: "mkt-1",
			Option: orderbook.OptionA, Side: orderbook.Bid,
			Price: 40, Quantity: 10,
		}))
	}
	// Orders for another market must not leak into the scan.
	require.NoError(t, s.SaveOrder(&orderbook.Order{ID: 1, MarketID: "mkt-2", Quantity: 1}))

	orders, err := s.LoadOrders("mkt-1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	require.Equal(t, uint64(3), orders[0].ID)
	require.Equal(t, uint64(12), orders[1].ID)
	require.Equal(t, uint64(100), orders[2].ID)
}

func TestDeleteOrder(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveOrder(&orderbook.Order{ID: 7, MarketID: "mkt-1", Quantity: 1}))
	require.NoError(t, s.DeleteOrder("mkt-1", 7))

	orders, err := s.LoadOrders("mkt-1")
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestShareRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveShare(ShareRecord{MarketID: "mkt-1", Option: 0, Trader: alice, Total: 10, Locked: 4}))
	require.NoError(t, s.SaveShare(ShareRecord{MarketID: "mkt-1", Option: 1, Trader: alice, Total: 2}))
	require.NoError(t, s.SaveShare(ShareRecord{MarketID: "mkt-2", Option: 0, Trader: bob, Total: 9}))

	shares, err := s.LoadShares("mkt-1")
	require.NoError(t, err)
	require.Len(t, shares, 2)
}

func TestRecentTradesNewestFirst(t *testing.T) {
	s := openTestStore(t)

	for tick := uint64(1); tick <= 5; tick++ {
		require.NoError(t, s.SaveTrade(TradeRecord{
			MarketID: "mkt-1", TakerOrder: tick, MakerOrder: 1,
			Buyer: alice, Seller: bob, Price: 40, Qty: 1, Time: tick,
		}))
	}

	trades, err := s.RecentTrades("mkt-1", 3)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	require.Equal(t, uint64(5), trades[0].Time)
	require.Equal(t, uint64(4), trades[1].Time)
	require.Equal(t, uint64(3), trades[2].Time)

	all, err := s.RecentTrades("mkt-1", 100)
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestBatchCommitsAtomically(t *testing.T) {
	s := openTestStore(t)

	b := s.NewBatch()
	require.NoError(t, b.SaveMarket(MarketRecord{ID: "mkt-1", Vault: 100}))
	require.NoError(t, b.SaveBalance(&account.UserBalance{Trader: alice, MarketID: "mkt-1", Balance: 900}))
	require.NoError(t, b.SaveOrder(&orderbook.Order{ID: 1, MarketID: "mkt-1", Quantity: 10}))
	require.NoError(t, b.SaveShare(ShareRecord{MarketID: "mkt-1", Option: 0, Trader: alice, Total: 5}))
	require.NoError(t, b.SaveTrade(TradeRecord{MarketID: "mkt-1", TakerOrder: 1, Time: 1}))
	require.NoError(t, b.Commit())
	require.NoError(t, b.Close())

	markets, err := s.LoadMarkets()
	require.NoError(t, err)
	require.Len(t, markets, 1)

	orders, err := s.LoadOrders("mkt-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	trades, err := s.RecentTrades("mkt-1", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveMarket(MarketRecord{ID: "mkt-1", Vault: 77}))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	markets, err := s.LoadMarkets()
	require.NoError(t, err)
	require.Len(t, markets, 1)
	require.Equal(t, int64(77), markets[0].Vault)
}
