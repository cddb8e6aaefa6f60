package orderbook

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidOption   = errors.New("invalid option")
	ErrInvalidSide     = errors.New("invalid side")
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderFilled     = errors.New("order already filled")
	ErrUnauthorized    = errors.New("unauthorized")
)

type Side int8

const (
	Bid Side = 1
	Ask Side = -1
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// SideFromByte decodes the u8 wire encoding (0 = bid, 1 = ask).
func SideFromByte(b byte) (Side, error) {
	switch b {
	case 0:
		return Bid, nil
	case 1:
		return Ask, nil
	default:
		return 0, ErrInvalidSide
	}
}

// Status is the lifecycle state of an order.
type Status int8

const (
	StatusOpen Status = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
)

func (st Status) String() string {
	switch st {
	case StatusOpen:
		return "open"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a priced, quantity-bound limit order on one outcome.
//
// For bids, LockedCollateral tracks the funds still reserved in the market
// vault: Price × Remaining at all times while the order is active. Asks carry
// zero collateral; their backing shares are reserved in the share ledger.
type Order struct {
	ID       uint64         `json:"id"`
	Trader   common.Address `json:"trader"`
	MarketID string         `json:"market_id"`
	Option   Option         `json:"option"`
	Side     Side           `json:"side"`
	Price    int64          `json:"price"` // integer, 1..99
	Quantity int64          `json:"quantity"`
	Filled   int64          `json:"filled"`

	LockedCollateral int64  `json:"locked_collateral"`
	CreatedAt        uint64 `json:"created_at"` // logical tick
	Status           Status `json:"status"`
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() int64 { return o.Quantity - o.Filled }

// IsClosed reports whether the order has left the active set for good.
func (o *Order) IsClosed() bool {
	return o.Status == StatusFilled || o.Status == StatusCancelled
}
