package exchange

import (
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"duomarket/pkg/exchange/account"
	"duomarket/pkg/exchange/market"
	"duomarket/pkg/exchange/orderbook"
	"duomarket/pkg/exchange/store"
	"duomarket/pkg/util"
)

// recentTradeCap bounds the per-market in-memory trade history.
const recentTradeCap = 512

// Config carries the engine's wiring. Store and Sink are optional; a nil
// Store runs the engine purely in memory.
type Config struct {
	Admin common.Address
	Mode  market.SettlementMode // default mode for new markets
	Store *store.Store
	Sink  EventSink
}

// Engine is the matching and settlement core. Every public operation takes
// the engine mutex, so the packages underneath (book, registry, ledgers,
// balances) stay lock-free and their state transitions are serial.
type Engine struct {
	mu    sync.Mutex
	log   *zap.Logger
	clock *util.LogicalClock

	admin common.Address
	mode  market.SettlementMode

	registry *market.Registry
	books    map[string]*orderbook.OrderBook
	balances *account.Manager
	trades   map[string][]Trade

	db   *store.Store
	sink EventSink
}

func NewEngine(log *zap.Logger, cfg Config) *Engine {
	return &Engine{
		log:      log,
		clock:    util.NewLogicalClock(),
		admin:    cfg.Admin,
		mode:     cfg.Mode,
		registry: market.NewRegistry(),
		books:    make(map[string]*orderbook.OrderBook),
		balances: account.NewManager(),
		trades:   make(map[string][]Trade),
		db:       cfg.Store,
		sink:     cfg.Sink,
	}
}

// SetSink installs the event sink after construction. The API server needs
// the engine to exist before it can build its hub.
func (e *Engine) SetSink(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// CreateMarket registers a new binary-outcome market and opens its book.
// Only the configured admin may create markets.
func (e *Engine) CreateMarket(caller common.Address, question, optionA, optionB string, mode market.SettlementMode) (*market.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	id := e.registry.NextID()
	m := market.New(id, question, optionA, optionB, mode, e.clock.Next())
	if err := e.registry.Register(m); err != nil {
		return nil, err
	}
	e.books[id] = orderbook.NewOrderBook(id)

	if err := e.withBatch(func(b *store.Batch) error {
		return b.SaveMarket(marketRecord(m))
	}); err != nil {
		return nil, err
	}

	e.log.Info("market created",
		zap.String("market", id),
		zap.String("question", question),
		zap.String("mode", mode.String()))
	e.emit(Event{Type: EventMarketCreated, MarketID: id, Time: m.CreatedAt})
	return m, nil
}

// PauseMarket and ResumeMarket gate order flow without touching the book.
func (e *Engine) PauseMarket(caller common.Address, marketID string) error {
	return e.setMarketStatus(caller, marketID, market.Paused)
}

func (e *Engine) ResumeMarket(caller common.Address, marketID string) error {
	return e.setMarketStatus(caller, marketID, market.Active)
}

// ResolveMarket closes a market permanently. Resting orders stay in the
// book but no new flow is accepted.
func (e *Engine) ResolveMarket(caller common.Address, marketID string) error {
	return e.setMarketStatus(caller, marketID, market.Resolved)
}

func (e *Engine) setMarketStatus(caller common.Address, marketID string, status market.Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.registry.UpdateStatus(marketID, status); err != nil {
		return err
	}
	m, _ := e.registry.Get(marketID)
	if err := e.withBatch(func(b *store.Batch) error {
		return b.SaveMarket(marketRecord(m))
	}); err != nil {
		return err
	}
	e.log.Info("market status changed",
		zap.String("market", marketID),
		zap.String("status", status.String()))
	return nil
}

// CreateUserBalance opens a trader's cash account in one market.
func (e *Engine) CreateUserBalance(trader common.Address, marketID string) (*account.UserBalance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.registry.Get(marketID); err != nil {
		return nil, err
	}
	bal, err := e.balances.Create(trader, marketID)
	if err != nil {
		return nil, err
	}
	if err := e.withBatch(func(b *store.Batch) error {
		return b.SaveBalance(bal)
	}); err != nil {
		return nil, err
	}
	e.log.Info("balance created",
		zap.String("market", marketID),
		zap.String("trader", trader.Hex()))
	return bal, nil
}

// Deposit adds free cash to a trader's balance.
func (e *Engine) Deposit(trader common.Address, marketID string, amount int64) (*account.UserBalance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bal, err := e.balances.Deposit(trader, marketID, amount)
	if err != nil {
		return nil, err
	}
	if err := e.withBatch(func(b *store.Batch) error {
		return b.SaveBalance(bal)
	}); err != nil {
		return nil, err
	}
	e.log.Info("deposit",
		zap.String("market", marketID),
		zap.String("trader", trader.Hex()),
		zap.Int64("amount", amount),
		zap.Int64("balance", bal.Balance))
	return bal, nil
}

// Withdraw removes free cash. Collateral locked under resting bids is held
// in the market vault and is not withdrawable.
func (e *Engine) Withdraw(trader common.Address, marketID string, amount int64) (*account.UserBalance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bal, err := e.balances.Withdraw(trader, marketID, amount)
	if err != nil {
		return nil, err
	}
	if err := e.withBatch(func(b *store.Batch) error {
		return b.SaveBalance(bal)
	}); err != nil {
		return nil, err
	}
	e.log.Info("withdraw",
		zap.String("market", marketID),
		zap.String("trader", trader.Hex()),
		zap.Int64("amount", amount),
		zap.Int64("balance", bal.Balance))
	return bal, nil
}

// IssueShares mints outcome shares to a trader. Share issuance (splitting
// collateral into complete A+B sets, resolution payouts) lives outside the
// matching core, so this is the admin hook that layer calls into.
func (e *Engine) IssueShares(caller, trader common.Address, marketID string, opt orderbook.Option, qty int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	m, err := e.registry.Get(marketID)
	if err != nil {
		return err
	}
	if opt != orderbook.OptionA && opt != orderbook.OptionB {
		return orderbook.ErrInvalidOption
	}
	if qty <= 0 {
		return fmt.Errorf("%w: %d", orderbook.ErrInvalidQuantity, qty)
	}
	m.Ledger(opt).Credit(trader, qty)

	if err := e.withBatch(func(b *store.Batch) error {
		return b.SaveShare(shareRecord(m, opt, trader))
	}); err != nil {
		return err
	}
	e.log.Info("shares issued",
		zap.String("market", marketID),
		zap.String("trader", trader.Hex()),
		zap.String("option", opt.String()),
		zap.Int64("qty", qty))
	return nil
}

// PlaceOrder validates, funds, matches, and settles a new limit order. All
// validation happens before any state changes; a returned error means
// nothing moved. Returns the resting order (possibly closed) and the fills
// it produced.
func (e *Engine) PlaceOrder(trader common.Address, marketID string, opt orderbook.Option, side orderbook.Side, price, qty int64) (*orderbook.Order, []orderbook.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.registry.Get(marketID)
	if err != nil {
		return nil, nil, err
	}
	if !m.IsActive() {
		return nil, nil, fmt.Errorf("%w: %s is %s", market.ErrMarketInactive, marketID, m.Status)
	}
	if opt != orderbook.OptionA && opt != orderbook.OptionB {
		return nil, nil, orderbook.ErrInvalidOption
	}
	if side != orderbook.Bid && side != orderbook.Ask {
		return nil, nil, orderbook.ErrInvalidSide
	}
	if price < 1 || price > 99 {
		return nil, nil, fmt.Errorf("%w: %d", orderbook.ErrInvalidPrice, price)
	}
	if qty <= 0 {
		return nil, nil, fmt.Errorf("%w: %d", orderbook.ErrInvalidQuantity, qty)
	}
	// price*qty must stay representable; a wrapped product would mint
	// negative collateral.
	if qty > math.MaxInt64/price {
		return nil, nil, fmt.Errorf("%w: %d at price %d overflows", orderbook.ErrInvalidQuantity, qty, price)
	}
	if _, err := e.balances.Get(trader, marketID); err != nil {
		return nil, nil, err
	}

	book := e.books[marketID]
	o := &orderbook.Order{
		Trader:    trader,
		MarketID:  marketID,
		Option:    opt,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		CreatedAt: e.clock.Next(),
		Status:    orderbook.StatusOpen,
	}

	switch side {
	case orderbook.Bid:
		cost := price * qty
		if _, err := e.balances.Debit(trader, marketID, cost); err != nil {
			return nil, nil, err
		}
		m.DepositVault(cost)
		o.LockedCollateral = cost
	case orderbook.Ask:
		if err := m.Ledger(opt).Lock(trader, qty); err != nil {
			return nil, nil, err
		}
	}

	id, fills := book.Place(o)
	e.emit(Event{Type: EventOrderPlaced, MarketID: marketID, Time: o.CreatedAt, Order: orderEvent(o)})

	trades, err := e.settleFills(m, fills)
	if err != nil {
		// A settlement failure is a broken accounting invariant, not a
		// user error. Surface it loudly; state may be inconsistent.
		e.log.Error("settlement failed",
			zap.String("market", marketID),
			zap.Uint64("order", id),
			zap.Error(err))
		return o, fills, err
	}

	if err := e.persistOrderFlow(m, book, o, fills, trades); err != nil {
		return o, fills, err
	}

	e.log.Info("order placed",
		zap.String("market", marketID),
		zap.Uint64("order", id),
		zap.String("trader", trader.Hex()),
		zap.String("option", opt.String()),
		zap.String("side", side.String()),
		zap.Int64("price", price),
		zap.Int64("qty", qty),
		zap.Int("fills", len(fills)))
	return o, fills, nil
}

// PlaceOrderCLI is PlaceOrder with the compact wire encoding used by the
// command-line and signed-payload paths: option and side arrive as u8.
func (e *Engine) PlaceOrderCLI(trader common.Address, marketID string, optionByte, sideByte byte, price, qty int64) (*orderbook.Order, []orderbook.Fill, error) {
	opt, err := orderbook.OptionFromByte(optionByte)
	if err != nil {
		return nil, nil, err
	}
	side, err := orderbook.SideFromByte(sideByte)
	if err != nil {
		return nil, nil, err
	}
	return e.PlaceOrder(trader, marketID, opt, side, price, qty)
}

// CancelOrder removes a resting order and releases what it still holds:
// unfilled bid collateral back to the trader's balance, unfilled ask shares
// back to available. The filled portion of a partially filled order is
// untouched.
func (e *Engine) CancelOrder(trader common.Address, marketID string, orderID uint64) (*orderbook.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.registry.Get(marketID)
	if err != nil {
		return nil, err
	}
	book := e.books[marketID]
	o, err := book.Cancel(orderID, trader)
	if err != nil {
		return nil, err
	}
	remaining := o.Remaining()

	var refund int64
	switch o.Side {
	case orderbook.Bid:
		refund = o.LockedCollateral
		if refund > 0 {
			if err := m.PayFromVault(refund); err != nil {
				return nil, err
			}
			if _, err := e.balances.Credit(trader, marketID, refund); err != nil {
				return nil, err
			}
			o.LockedCollateral = 0
		}
	case orderbook.Ask:
		if remaining > 0 {
			if err := m.Ledger(o.Option).Unlock(trader, remaining); err != nil {
				return nil, err
			}
		}
	}

	if err := e.withBatch(func(b *store.Batch) error {
		if err := b.DeleteOrder(marketID, orderID); err != nil {
			return err
		}
		if o.Side == orderbook.Bid {
			bal, err := e.balances.Get(trader, marketID)
			if err != nil {
				return err
			}
			if err := b.SaveBalance(bal); err != nil {
				return err
			}
		} else {
			if err := b.SaveShare(shareRecord(m, o.Option, trader)); err != nil {
				return err
			}
		}
		return b.SaveMarket(marketRecord(m))
	}); err != nil {
		return nil, err
	}

	now := e.clock.Next()
	e.emit(Event{Type: EventOrderCancelled, MarketID: marketID, Time: now, Order: orderEvent(o)})
	if refund > 0 {
		e.emit(Event{Type: EventOrderRefunded, MarketID: marketID, Time: now, Order: &OrderEvent{
			ID:     o.ID,
			Trader: trader,
			Option: o.Option.String(),
			Side:   o.Side.String(),
			Refund: refund,
		}})
	}
	e.log.Info("order cancelled",
		zap.String("market", marketID),
		zap.Uint64("order", orderID),
		zap.String("trader", trader.Hex()),
		zap.Int64("refund", refund))
	return o, nil
}

// ClaimSettlement moves a trader's accrued deferred payouts from the market
// vault into their free balance. A zero claim is not an error.
func (e *Engine) ClaimSettlement(trader common.Address, marketID string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.registry.Get(marketID)
	if err != nil {
		return 0, err
	}
	amount, err := m.ClaimPayout(trader)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, nil
	}
	bal, err := e.balances.Credit(trader, marketID, amount)
	if err != nil {
		return 0, err
	}

	if err := e.withBatch(func(b *store.Batch) error {
		if err := b.SaveBalance(bal); err != nil {
			return err
		}
		return b.SaveMarket(marketRecord(m))
	}); err != nil {
		return 0, err
	}

	e.emit(Event{Type: EventSettlementClaimed, MarketID: marketID, Time: e.clock.Next(), Settlement: &SettlementEvent{
		Trader:   trader,
		Amount:   amount,
		Deferred: true,
	}})
	e.log.Info("settlement claimed",
		zap.String("market", marketID),
		zap.String("trader", trader.Hex()),
		zap.Int64("amount", amount))
	return amount, nil
}

// ---- reads ----

// Position is a trader's full standing in one market.
type Position struct {
	Trader        common.Address       `json:"trader"`
	MarketID      string               `json:"market_id"`
	Balance       int64                `json:"balance"`
	OptionA       market.SharePosition `json:"option_a"`
	OptionB       market.SharePosition `json:"option_b"`
	PendingPayout int64                `json:"pending_payout"`
}

func (e *Engine) GetMarket(marketID string) (*market.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Get(marketID)
}

func (e *Engine) ListMarkets() []*market.Market {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.List()
}

func (e *Engine) GetOrder(marketID string, orderID uint64) (*orderbook.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, ok := e.books[marketID]
	if !ok {
		return nil, market.ErrMarketNotFound
	}
	o, ok := book.Get(orderID)
	if !ok {
		return nil, orderbook.ErrOrderNotFound
	}
	return o, nil
}

// TopBid returns the best bid price for an outcome, 0 when the side is empty.
func (e *Engine) TopBid(marketID string, opt orderbook.Option) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, ok := e.books[marketID]
	if !ok {
		return 0, market.ErrMarketNotFound
	}
	return book.TopBid(opt), nil
}

// TopAsk returns the best ask price for an outcome, 0 when the side is empty.
func (e *Engine) TopAsk(marketID string, opt orderbook.Option) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, ok := e.books[marketID]
	if !ok {
		return 0, market.ErrMarketNotFound
	}
	return book.TopAsk(opt), nil
}

// Depth counts orders per side across both outcomes, filled history
// included, so the numbers only shrink on cancellation.
func (e *Engine) Depth(marketID string) (bids, asks int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, ok := e.books[marketID]
	if !ok {
		return 0, 0, market.ErrMarketNotFound
	}
	bids, asks = book.Depth()
	return bids, asks, nil
}

// Levels returns the aggregated price ladder for one outcome, bids and asks
// each sorted best-first.
func (e *Engine) Levels(marketID string, opt orderbook.Option) (bids, asks []orderbook.PriceLevel, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, ok := e.books[marketID]
	if !ok {
		return nil, nil, market.ErrMarketNotFound
	}
	return book.BidLevels(opt), book.AskLevels(opt), nil
}

// Orders returns every order the book still remembers, oldest first.
func (e *Engine) Orders(marketID string) ([]*orderbook.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, ok := e.books[marketID]
	if !ok {
		return nil, market.ErrMarketNotFound
	}
	return book.Orders(), nil
}

// UserPosition reports a trader's balance, share holdings, and pending
// deferred payout in one market.
func (e *Engine) UserPosition(trader common.Address, marketID string) (Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.registry.Get(marketID)
	if err != nil {
		return Position{}, err
	}
	pos := Position{
		Trader:        trader,
		MarketID:      marketID,
		OptionA:       m.Ledger(orderbook.OptionA).Position(trader),
		OptionB:       m.Ledger(orderbook.OptionB).Position(trader),
		PendingPayout: m.PendingPayout(trader),
	}
	if bal, err := e.balances.Get(trader, marketID); err == nil {
		pos.Balance = bal.Balance
	}
	return pos, nil
}

// RecentTrades returns up to limit executions in a market, newest first.
func (e *Engine) RecentTrades(marketID string, limit int) []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	hist := e.trades[marketID]
	if limit <= 0 || limit > len(hist) {
		limit = len(hist)
	}
	out := make([]Trade, 0, limit)
	for i := len(hist) - 1; i >= len(hist)-limit; i-- {
		out = append(out, hist[i])
	}
	return out
}

// ---- internals ----

func (e *Engine) requireAdmin(caller common.Address) error {
	if e.admin != (common.Address{}) && caller != e.admin {
		return fmt.Errorf("%w: admin only", orderbook.ErrUnauthorized)
	}
	return nil
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		e.sink.Publish(ev)
	}
}

func (e *Engine) withBatch(fn func(b *store.Batch) error) error {
	if e.db == nil {
		return nil
	}
	b := e.db.NewBatch()
	defer b.Close()
	if err := fn(b); err != nil {
		return err
	}
	return b.Commit()
}

func orderEvent(o *orderbook.Order) *OrderEvent {
	return &OrderEvent{
		ID:       o.ID,
		Trader:   o.Trader,
		Option:   o.Option.String(),
		Side:     o.Side.String(),
		Price:    o.Price,
		Quantity: o.Quantity,
		Filled:   o.Filled,
	}
}

func marketRecord(m *market.Market) store.MarketRecord {
	rec := store.MarketRecord{
		ID:          m.ID,
		Question:    m.Question,
		OptionAName: m.OptionAName,
		OptionBName: m.OptionBName,
		Status:      int8(m.Status),
		Mode:        int8(m.Mode),
		CreatedAt:   m.CreatedAt,
		Vault:       m.Vault,
	}
	if pool := m.PoolSnapshot(); len(pool) > 0 {
		rec.Pool = make(map[string]int64, len(pool))
		for trader, amt := range pool {
			rec.Pool[trader.Hex()] = amt
		}
	}
	return rec
}

func shareRecord(m *market.Market, opt orderbook.Option, trader common.Address) store.ShareRecord {
	pos := m.Ledger(opt).Position(trader)
	return store.ShareRecord{
		MarketID: m.ID,
		Option:   opt.Byte(),
		Trader:   trader,
		Total:    pos.Total,
		Locked:   pos.Locked,
	}
}
