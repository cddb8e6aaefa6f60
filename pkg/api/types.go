package api

// Request and response types for the REST endpoints and WebSocket messages.
// Option and side travel as u8 on the wire: 0 = A / bid, 1 = B / ask.

// ==============================
// REST Request Types
// ==============================

// CreateMarketRequest is the payload for POST /api/v1/markets. The creator
// signs MarketDigest(question, optionA, optionB, mode, nonce).
type CreateMarketRequest struct {
	Creator   string `json:"creator"`
	Question  string `json:"question"`
	OptionA   string `json:"optionA"`
	OptionB   string `json:"optionB"`
	Mode      byte   `json:"mode"` // 0 = immediate, 1 = deferred
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"` // hex, 65 bytes
}

// CreateBalanceRequest opens a trader's account in one market.
type CreateBalanceRequest struct {
	Trader   string `json:"trader"`
	MarketID string `json:"marketId"`
}

// DepositRequest credits free balance. Deposits are unsigned; on a real
// deployment they arrive from a bridge, not this endpoint.
type DepositRequest struct {
	Trader   string `json:"trader"`
	MarketID string `json:"marketId"`
	Amount   int64  `json:"amount"`
}

// WithdrawRequest is signed over WithdrawDigest(marketId, amount, nonce).
type WithdrawRequest struct {
	Trader    string `json:"trader"`
	MarketID  string `json:"marketId"`
	Amount    int64  `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// SubmitOrderRequest is signed over
// OrderDigest(marketId, option, side, price, qty, nonce).
type SubmitOrderRequest struct {
	Trader    string `json:"trader"`
	MarketID  string `json:"marketId"`
	Option    byte   `json:"option"` // 0 = A, 1 = B
	Side      byte   `json:"side"`   // 0 = bid, 1 = ask
	Price     int64  `json:"price"`  // 1..99
	Qty       int64  `json:"qty"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// CancelOrderRequest is signed over CancelDigest(marketId, orderId, nonce).
type CancelOrderRequest struct {
	Trader    string `json:"trader"`
	MarketID  string `json:"marketId"`
	OrderID   uint64 `json:"orderId"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// IssueSharesRequest mints outcome shares to a trader. The admin signs
// IssueDigest(marketId, trader, option, qty, nonce). Share issuance sits
// outside the matching core; this is the bootstrap hook for it.
type IssueSharesRequest struct {
	Admin     string `json:"admin"`
	Trader    string `json:"trader"`
	MarketID  string `json:"marketId"`
	Option    byte   `json:"option"`
	Qty       int64  `json:"qty"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// ClaimRequest is signed over ClaimDigest(marketId, nonce).
type ClaimRequest struct {
	Trader    string `json:"trader"`
	MarketID  string `json:"marketId"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// ==============================
// REST Response Types
// ==============================

// MarketInfo describes one binary market.
type MarketInfo struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	OptionA   string `json:"optionA"`
	OptionB   string `json:"optionB"`
	Status    string `json:"status"` // "active", "paused", "resolved"
	Mode      string `json:"mode"`   // "immediate", "deferred"
	CreatedAt uint64 `json:"createdAt"`
	Vault     int64  `json:"vault"`
}

// PriceLevel is a [price, size] tuple.
type PriceLevel struct {
	Price int64 `json:"price"`
	Size  int64 `json:"size"`
}

// BookSide holds one outcome's aggregated ladder, bids high to low and
// asks low to high.
type BookSide struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// OrderbookSnapshot is the full two-outcome ladder plus order counts.
type OrderbookSnapshot struct {
	MarketID  string   `json:"marketId"`
	OptionA   BookSide `json:"optionA"`
	OptionB   BookSide `json:"optionB"`
	BidDepth  int      `json:"bidDepth"`
	AskDepth  int      `json:"askDepth"`
	Timestamp int64    `json:"timestamp"` // Unix milliseconds
}

// OrderInfo is one order as the book remembers it.
type OrderInfo struct {
	ID        uint64 `json:"id"`
	Trader    string `json:"trader"`
	Option    string `json:"option"`
	Side      string `json:"side"`
	Price     int64  `json:"price"`
	Qty       int64  `json:"qty"`
	Filled    int64  `json:"filled"`
	Remaining int64  `json:"remaining"`
	Status    string `json:"status"`
	CreatedAt uint64 `json:"createdAt"`
}

// TradeInfo is one execution.
type TradeInfo struct {
	TakerOrder uint64 `json:"takerOrder"`
	MakerOrder uint64 `json:"makerOrder"`
	Buyer      string `json:"buyer"`
	Seller     string `json:"seller"`
	Option     string `json:"option"`
	Price      int64  `json:"price"`
	Qty        int64  `json:"qty"`
	Cross      bool   `json:"cross"`
	Time       uint64 `json:"time"`
}

// SharePositionInfo is one outcome holding.
type SharePositionInfo struct {
	Total     int64 `json:"total"`
	Locked    int64 `json:"locked"`
	Available int64 `json:"available"`
}

// PositionInfo is a trader's full standing in one market.
type PositionInfo struct {
	Trader        string            `json:"trader"`
	MarketID      string            `json:"marketId"`
	Balance       int64             `json:"balance"`
	OptionA       SharePositionInfo `json:"optionA"`
	OptionB       SharePositionInfo `json:"optionB"`
	PendingPayout int64             `json:"pendingPayout"`
}

// BalanceInfo is a trader's cash account.
type BalanceInfo struct {
	Trader   string `json:"trader"`
	MarketID string `json:"marketId"`
	Balance  int64  `json:"balance"`
}

// SubmitOrderResponse reports the placed order and its executions.
type SubmitOrderResponse struct {
	OrderID uint64      `json:"orderId"`
	Status  string      `json:"status"`
	Filled  int64       `json:"filled"`
	Trades  []TradeInfo `json:"trades"`
}

// ClaimResponse reports a settlement claim.
type ClaimResponse struct {
	Trader  string `json:"trader"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions.
// Channels: "events" for everything, "events:{marketId}" per market.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
