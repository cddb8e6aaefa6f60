package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based so one market's state is a range scan;
// numeric components are zero-padded for lexicographic ordering.
const (
	prefixMarket  = "mkt:"
	prefixBalance = "bal:"
	prefixOrder   = "ord:"
	prefixShare   = "shr:"
	prefixTrade   = "trade:"
)

// marketKey: "mkt:{id}"
func marketKey(id string) []byte {
	return []byte(prefixMarket + id)
}

// balanceKey: "bal:{market}:{address}"
func balanceKey(marketID string, trader common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, marketID, trader.Hex()))
}

// orderKey: "ord:{market}:{id, zero-padded}"
func orderKey(marketID string, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixOrder, marketID, id))
}

func orderPrefix(marketID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixOrder, marketID))
}

// shareKey: "shr:{market}:{option u8}:{address}"
func shareKey(marketID string, option byte, trader common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%d:%s", prefixShare, marketID, option, trader.Hex()))
}

func sharePrefix(marketID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixShare, marketID))
}

// tradeKey: "trade:{market}:{logical time, zero-padded}:{taker order id}"
func tradeKey(marketID string, tick uint64, takerID uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%d", prefixTrade, marketID, tick, takerID))
}

func tradePrefix(marketID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, marketID))
}

func balancePrefixAll() []byte { return []byte(prefixBalance) }
func marketPrefixAll() []byte  { return []byte(prefixMarket) }

// keyUpperBound is the exclusive end of a prefix scan: the prefix with its
// last byte incremented.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
