package store

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"duomarket/pkg/exchange/account"
	"duomarket/pkg/exchange/orderbook"
)

// Store persists engine state in Pebble: markets, balances, orders, share
// positions, and trade history. Values are JSON; one engine operation writes
// its touched records in a single atomic batch.
//
// The store is called only from inside the engine's critical section.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(64 << 20),
		MemTableSize:             32 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// MarketRecord is the persisted form of a market, pool included.
type MarketRecord struct {
	ID          string           `json:"id"`
	Question    string           `json:"question"`
	OptionAName string           `json:"option_a_name"`
	OptionBName string           `json:"option_b_name"`
	Status      int8             `json:"status"`
	Mode        int8             `json:"mode"`
	CreatedAt   uint64           `json:"created_at"`
	Vault       int64            `json:"vault"`
	Pool        map[string]int64 `json:"pool,omitempty"` // hex address -> unclaimed payout
}

// ShareRecord is one trader's persisted holding in one outcome.
type ShareRecord struct {
	MarketID string         `json:"market_id"`
	Option   byte           `json:"option"`
	Trader   common.Address `json:"trader"`
	Total    int64          `json:"total"`
	Locked   int64          `json:"locked"`
}

// TradeRecord is one persisted execution.
type TradeRecord struct {
	MarketID   string         `json:"market_id"`
	TakerOrder uint64         `json:"taker_order"`
	MakerOrder uint64         `json:"maker_order"`
	Buyer      common.Address `json:"buyer"`
	Seller     common.Address `json:"seller"`
	Option     byte           `json:"option"`
	Price      int64          `json:"price"`
	Qty        int64          `json:"qty"`
	Cross      bool           `json:"cross"`
	Time       uint64         `json:"time"`
}

func (s *Store) SaveMarket(rec MarketRecord) error {
	return s.set(marketKey(rec.ID), rec)
}

func (s *Store) LoadMarkets() ([]MarketRecord, error) {
	var out []MarketRecord
	err := s.scan(marketPrefixAll(), func(v []byte) error {
		var rec MarketRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *Store) SaveBalance(b *account.UserBalance) error {
	return s.set(balanceKey(b.MarketID, b.Trader), b)
}

func (s *Store) LoadBalances() ([]*account.UserBalance, error) {
	var out []*account.UserBalance
	err := s.scan(balancePrefixAll(), func(v []byte) error {
		var b account.UserBalance
		if err := json.Unmarshal(v, &b); err != nil {
			return err
		}
		out = append(out, &b)
		return nil
	})
	return out, err
}

func (s *Store) SaveOrder(o *orderbook.Order) error {
	return s.set(orderKey(o.MarketID, o.ID), o)
}

func (s *Store) DeleteOrder(marketID string, id uint64) error {
	if err := s.db.Delete(orderKey(marketID, id), pebble.Sync); err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	return nil
}

// LoadOrders returns a market's persisted orders in ascending id order
// (the key padding makes scan order id order).
func (s *Store) LoadOrders(marketID string) ([]*orderbook.Order, error) {
	var out []*orderbook.Order
	err := s.scan(orderPrefix(marketID), func(v []byte) error {
		var o orderbook.Order
		if err := json.Unmarshal(v, &o); err != nil {
			return err
		}
		out = append(out, &o)
		return nil
	})
	return out, err
}

func (s *Store) SaveShare(rec ShareRecord) error {
	return s.set(shareKey(rec.MarketID, rec.Option, rec.Trader), rec)
}

func (s *Store) LoadShares(marketID string) ([]ShareRecord, error) {
	var out []ShareRecord
	err := s.scan(sharePrefix(marketID), func(v []byte) error {
		var rec ShareRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *Store) SaveTrade(rec TradeRecord) error {
	return s.set(tradeKey(rec.MarketID, rec.Time, rec.TakerOrder), rec)
}

// RecentTrades returns up to limit trades, newest first.
func (s *Store) RecentTrades(marketID string, limit int) ([]TradeRecord, error) {
	prefix := tradePrefix(marketID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []TradeRecord
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		var rec TradeRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// NewBatch starts an atomic write covering one engine operation.
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

// Batch accumulates writes and commits them atomically.
type Batch struct {
	batch *pebble.Batch
}

func (b *Batch) SaveMarket(rec MarketRecord) error {
	return b.set(marketKey(rec.ID), rec)
}

func (b *Batch) SaveBalance(bal *account.UserBalance) error {
	return b.set(balanceKey(bal.MarketID, bal.Trader), bal)
}

func (b *Batch) SaveOrder(o *orderbook.Order) error {
	return b.set(orderKey(o.MarketID, o.ID), o)
}

func (b *Batch) DeleteOrder(marketID string, id uint64) error {
	return b.batch.Delete(orderKey(marketID, id), nil)
}

func (b *Batch) SaveShare(rec ShareRecord) error {
	return b.set(shareKey(rec.MarketID, rec.Option, rec.Trader), rec)
}

func (b *Batch) SaveTrade(rec TradeRecord) error {
	return b.set(tradeKey(rec.MarketID, rec.Time, rec.TakerOrder), rec)
}

func (b *Batch) Commit() error { return b.batch.Commit(pebble.Sync) }
func (b *Batch) Close() error  { return b.batch.Close() }

func (b *Batch) set(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.batch.Set(key, data, nil)
}

func (s *Store) set(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) scan(prefix []byte, fn func(value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
