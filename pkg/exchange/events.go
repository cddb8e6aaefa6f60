package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"duomarket/pkg/exchange/orderbook"
)

// EventType labels the events emitted for external indexing and UI.
type EventType string

const (
	EventMarketCreated     EventType = "market_created"
	EventOrderPlaced       EventType = "order_placed"
	EventOrderCancelled    EventType = "order_cancelled"
	EventOrderRefunded     EventType = "order_refunded"
	EventAutoMatched       EventType = "auto_matched"
	EventCrossMatched      EventType = "cross_matched"
	EventTradeSettled      EventType = "trade_settled"
	EventSharesTransferred EventType = "shares_transferred"
	EventSettlementClaimed EventType = "settlement_claimed"
)

// Event is one engine-emitted fact, produced synchronously inside the
// operation that caused it. Exactly one payload field is set.
type Event struct {
	Type     EventType `json:"type"`
	MarketID string    `json:"market_id"`
	Time     uint64    `json:"time"` // logical tick

	Order      *OrderEvent      `json:"order,omitempty"`
	Match      *MatchEvent      `json:"match,omitempty"`
	Transfer   *TransferEvent   `json:"transfer,omitempty"`
	Settlement *SettlementEvent `json:"settlement,omitempty"`
}

type OrderEvent struct {
	ID       uint64         `json:"id"`
	Trader   common.Address `json:"trader"`
	Option   string         `json:"option"`
	Side     string         `json:"side"`
	Price    int64          `json:"price"`
	Quantity int64          `json:"quantity"`
	Filled   int64          `json:"filled"`
	Refund   int64          `json:"refund,omitempty"`
}

type MatchEvent struct {
	TakerOrder uint64         `json:"taker_order"`
	MakerOrder uint64         `json:"maker_order"`
	Buyer      common.Address `json:"buyer"`
	Seller     common.Address `json:"seller"`
	Option     string         `json:"option"`
	Price      int64          `json:"price"`
	Qty        int64          `json:"qty"`
	Cross      bool           `json:"cross"`
}

type TransferEvent struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Option string         `json:"option"`
	Qty    int64          `json:"qty"`
}

type SettlementEvent struct {
	Trader   common.Address `json:"trader"`
	Amount   int64          `json:"amount"`
	Deferred bool           `json:"deferred"`
}

// Trade is one completed execution, kept for history.
type Trade struct {
	MarketID   string           `json:"market_id"`
	TakerOrder uint64           `json:"taker_order"`
	MakerOrder uint64           `json:"maker_order"`
	Buyer      common.Address   `json:"buyer"`
	Seller     common.Address   `json:"seller"`
	Option     orderbook.Option `json:"option"`
	Price      int64            `json:"price"`
	Qty        int64            `json:"qty"`
	Cross      bool             `json:"cross"`
	Time       uint64           `json:"time"`
}

// EventSink receives every emitted event; the API's WebSocket hub implements
// it. Publish must not block the engine.
type EventSink interface {
	Publish(Event)
}
