package account

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceExists     = errors.New("balance already exists")
	ErrBalanceNotFound   = errors.New("balance not found")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// UserBalance is a trader's uncommitted collateral in one market. Funds leave
// it when a bid locks collateral into the market vault and return on refund,
// settlement payment, or claim. One balance exists per (trader, market).
type UserBalance struct {
	Trader   common.Address `json:"trader"`
	MarketID string         `json:"market_id"`
	Balance  int64          `json:"balance"`
}
