package exchange

import (
	"duomarket/pkg/exchange/account"
	"duomarket/pkg/exchange/market"
	"duomarket/pkg/exchange/orderbook"
)

// The error taxonomy, re-exported from the packages that own each failure.
// All are synchronous validation failures: the operation aborts before any
// state mutation and the caller decides whether to retry. Vault underflow is
// the one exception; it means an accounting invariant broke and is a defect,
// not a condition to handle.
var (
	ErrInvalidPrice    = orderbook.ErrInvalidPrice
	ErrInvalidQuantity = orderbook.ErrInvalidQuantity
	ErrInvalidOption   = orderbook.ErrInvalidOption
	ErrInvalidSide     = orderbook.ErrInvalidSide
	ErrOrderNotFound   = orderbook.ErrOrderNotFound
	ErrOrderFilled     = orderbook.ErrOrderFilled
	ErrUnauthorized    = orderbook.ErrUnauthorized

	ErrMarketInactive              = market.ErrMarketInactive
	ErrMarketExists                = market.ErrMarketExists
	ErrMarketNotFound              = market.ErrMarketNotFound
	ErrInsufficientShares          = market.ErrInsufficientShares
	ErrInsufficientSettlementFunds = market.ErrInsufficientSettlementFunds

	ErrInsufficientFunds = account.ErrInsufficientFunds
	ErrBalanceExists     = account.ErrBalanceExists
	ErrBalanceNotFound   = account.ErrBalanceNotFound
	ErrInvalidAmount     = account.ErrInvalidAmount
)
