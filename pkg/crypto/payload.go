package crypto

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// Request digests. Each signable request hashes to a 32-byte Keccak256
// digest over a domain tag plus a deterministic field encoding: strings are
// length-prefixed, integers big-endian fixed width, option and side as
// single bytes (0 = A/bid, 1 = B/ask). The nonce makes replays distinct.

const (
	tagOrder    = "duomarket/order/v1"
	tagCancel   = "duomarket/cancel/v1"
	tagWithdraw = "duomarket/withdraw/v1"
	tagClaim    = "duomarket/claim/v1"
	tagMarket   = "duomarket/market/v1"
	tagIssue    = "duomarket/issue/v1"
)

type digestBuf struct {
	b []byte
}

func newDigestBuf(tag string) *digestBuf {
	d := &digestBuf{}
	d.writeString(tag)
	return d
}

func (d *digestBuf) writeString(s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	d.b = append(d.b, n[:]...)
	d.b = append(d.b, s...)
}

func (d *digestBuf) writeUint64(v uint64) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], v)
	d.b = append(d.b, n[:]...)
}

func (d *digestBuf) writeInt64(v int64) { d.writeUint64(uint64(v)) }

func (d *digestBuf) writeByte(v byte) { d.b = append(d.b, v) }

func (d *digestBuf) sum() []byte { return crypto.Keccak256(d.b) }

// OrderDigest is the digest a trader signs to place an order.
func OrderDigest(marketID string, option, side byte, price, qty int64, nonce uint64) []byte {
	d := newDigestBuf(tagOrder)
	d.writeString(marketID)
	d.writeByte(option)
	d.writeByte(side)
	d.writeInt64(price)
	d.writeInt64(qty)
	d.writeUint64(nonce)
	return d.sum()
}

// CancelDigest is the digest a trader signs to cancel an order.
func CancelDigest(marketID string, orderID, nonce uint64) []byte {
	d := newDigestBuf(tagCancel)
	d.writeString(marketID)
	d.writeUint64(orderID)
	d.writeUint64(nonce)
	return d.sum()
}

// WithdrawDigest is the digest a trader signs to withdraw free balance.
func WithdrawDigest(marketID string, amount int64, nonce uint64) []byte {
	d := newDigestBuf(tagWithdraw)
	d.writeString(marketID)
	d.writeInt64(amount)
	d.writeUint64(nonce)
	return d.sum()
}

// MarketDigest is the digest the admin signs to create a market.
func MarketDigest(question, optionA, optionB string, mode byte, nonce uint64) []byte {
	d := newDigestBuf(tagMarket)
	d.writeString(question)
	d.writeString(optionA)
	d.writeString(optionB)
	d.writeByte(mode)
	d.writeUint64(nonce)
	return d.sum()
}

// IssueDigest is the digest the admin signs to mint outcome shares.
func IssueDigest(marketID, trader string, option byte, qty int64, nonce uint64) []byte {
	d := newDigestBuf(tagIssue)
	d.writeString(marketID)
	d.writeString(trader)
	d.writeByte(option)
	d.writeInt64(qty)
	d.writeUint64(nonce)
	return d.sum()
}

// ClaimDigest is the digest a trader signs to claim deferred settlement.
func ClaimDigest(marketID string, nonce uint64) []byte {
	d := newDigestBuf(tagClaim)
	d.writeString(marketID)
	d.writeUint64(nonce)
	return d.sum()
}
