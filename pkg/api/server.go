package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"duomarket/pkg/crypto"
	"duomarket/pkg/exchange"
	"duomarket/pkg/exchange/market"
	"duomarket/pkg/exchange/orderbook"
)

// Server exposes the exchange over REST plus a WebSocket event stream.
type Server struct {
	engine *exchange.Engine
	log    *zap.Logger
	router *mux.Router
	hub    *Hub
}

// NewServer wires a server around an engine and installs the hub as the
// engine's event sink.
func NewServer(engine *exchange.Engine, log *zap.Logger) *Server {
	s := &Server{
		engine: engine,
		log:    log,
		router: mux.NewRouter(),
		hub:    NewHub(log),
	}
	engine.SetSink(s.hub)
	s.setupRoutes()
	return s
}

// Router returns the configured handler, for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/markets", s.handleListMarkets).Methods("GET")
	api.HandleFunc("/markets", s.handleCreateMarket).Methods("POST")
	api.HandleFunc("/markets/{id}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{id}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{id}/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/markets/{id}/trades", s.handleGetTrades).Methods("GET")

	api.HandleFunc("/balances", s.handleCreateBalance).Methods("POST")
	api.HandleFunc("/balances/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/balances/withdraw", s.handleWithdraw).Methods("POST")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	api.HandleFunc("/shares/issue", s.handleIssueShares).Methods("POST")
	api.HandleFunc("/settlements/claim", s.handleClaim).Methods("POST")

	api.HandleFunc("/accounts/{address}/position", s.handleGetPosition).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and blocks serving HTTP.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Write Handlers
// ==============================

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	creator, ok := s.verifySigned(w, req.Creator, req.Signature,
		crypto.MarketDigest(req.Question, req.OptionA, req.OptionB, req.Mode, req.Nonce))
	if !ok {
		return
	}
	mode := market.Immediate
	if req.Mode == 1 {
		mode = market.Deferred
	}

	m, err := s.engine.CreateMarket(creator, req.Question, req.OptionA, req.OptionB, mode)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, marketInfo(m))
}

func (s *Server) handleCreateBalance(w http.ResponseWriter, r *http.Request) {
	var req CreateBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := parseAddress(w, req.Trader)
	if !ok {
		return
	}

	bal, err := s.engine.CreateUserBalance(trader, req.MarketID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, BalanceInfo{Trader: bal.Trader.Hex(), MarketID: bal.MarketID, Balance: bal.Balance})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := parseAddress(w, req.Trader)
	if !ok {
		return
	}

	bal, err := s.engine.Deposit(trader, req.MarketID, req.Amount)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, BalanceInfo{Trader: bal.Trader.Hex(), MarketID: bal.MarketID, Balance: bal.Balance})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := s.verifySigned(w, req.Trader, req.Signature,
		crypto.WithdrawDigest(req.MarketID, req.Amount, req.Nonce))
	if !ok {
		return
	}

	bal, err := s.engine.Withdraw(trader, req.MarketID, req.Amount)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, BalanceInfo{Trader: bal.Trader.Hex(), MarketID: bal.MarketID, Balance: bal.Balance})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := s.verifySigned(w, req.Trader, req.Signature,
		crypto.OrderDigest(req.MarketID, req.Option, req.Side, req.Price, req.Qty, req.Nonce))
	if !ok {
		return
	}

	// TODO: track nonces per address so a captured request cannot be replayed.
	o, fills, err := s.engine.PlaceOrderCLI(trader, req.MarketID, req.Option, req.Side, req.Price, req.Qty)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	trades := make([]TradeInfo, len(fills))
	for i, f := range fills {
		trades[i] = TradeInfo{
			TakerOrder: f.TakerID,
			MakerOrder: f.MakerID,
			Buyer:      f.Buyer.Hex(),
			Seller:     f.Seller.Hex(),
			Option:     f.Option.String(),
			Price:      f.Price,
			Qty:        f.Qty,
			Cross:      f.Cross,
		}
	}
	respondJSON(w, SubmitOrderResponse{
		OrderID: o.ID,
		Status:  o.Status.String(),
		Filled:  o.Filled,
		Trades:  trades,
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := s.verifySigned(w, req.Trader, req.Signature,
		crypto.CancelDigest(req.MarketID, req.OrderID, req.Nonce))
	if !ok {
		return
	}

	o, err := s.engine.CancelOrder(trader, req.MarketID, req.OrderID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, orderInfo(o))
}

func (s *Server) handleIssueShares(w http.ResponseWriter, r *http.Request) {
	var req IssueSharesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	admin, ok := s.verifySigned(w, req.Admin, req.Signature,
		crypto.IssueDigest(req.MarketID, req.Trader, req.Option, req.Qty, req.Nonce))
	if !ok {
		return
	}
	trader, ok := parseAddress(w, req.Trader)
	if !ok {
		return
	}
	opt, err := orderbook.OptionFromByte(req.Option)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	if err := s.engine.IssueShares(admin, trader, req.MarketID, opt, req.Qty); err != nil {
		s.respondEngineError(w, err)
		return
	}
	pos, err := s.engine.UserPosition(trader, req.MarketID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, SharePositionInfo{
		Total:     positionFor(pos, opt).Total,
		Locked:    positionFor(pos, opt).Locked,
		Available: positionFor(pos, opt).Available(),
	})
}

func positionFor(pos exchange.Position, opt orderbook.Option) market.SharePosition {
	if opt == orderbook.OptionA {
		return pos.OptionA
	}
	return pos.OptionB
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := s.verifySigned(w, req.Trader, req.Signature,
		crypto.ClaimDigest(req.MarketID, req.Nonce))
	if !ok {
		return
	}

	amount, err := s.engine.ClaimSettlement(trader, req.MarketID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	resp := ClaimResponse{Trader: trader.Hex(), Amount: amount}
	if pos, err := s.engine.UserPosition(trader, req.MarketID); err == nil {
		resp.Balance = pos.Balance
	}
	respondJSON(w, resp)
}

// ==============================
// Read Handlers
// ==============================

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.engine.ListMarkets()
	response := make([]MarketInfo, len(markets))
	for i, m := range markets {
		response[i] = marketInfo(m)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.GetMarket(mux.Vars(r)["id"])
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, marketInfo(m))
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	snapshot := OrderbookSnapshot{MarketID: id, Timestamp: time.Now().UnixMilli()}
	for _, opt := range []orderbook.Option{orderbook.OptionA, orderbook.OptionB} {
		bids, asks, err := s.engine.Levels(id, opt)
		if err != nil {
			s.respondEngineError(w, err)
			return
		}
		side := BookSide{Bids: priceLevels(bids), Asks: priceLevels(asks)}
		if opt == orderbook.OptionA {
			snapshot.OptionA = side
		} else {
			snapshot.OptionB = side
		}
	}
	bidDepth, askDepth, err := s.engine.Depth(id)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	snapshot.BidDepth = bidDepth
	snapshot.AskDepth = askDepth
	respondJSON(w, snapshot)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.engine.Orders(mux.Vars(r)["id"])
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = orderInfo(o)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.engine.GetMarket(id); err != nil {
		s.respondEngineError(w, err)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	trades := s.engine.RecentTrades(id, limit)
	response := make([]TradeInfo, len(trades))
	for i, t := range trades {
		response[i] = TradeInfo{
			TakerOrder: t.TakerOrder,
			MakerOrder: t.MakerOrder,
			Buyer:      t.Buyer.Hex(),
			Seller:     t.Seller.Hex(),
			Option:     t.Option.String(),
			Price:      t.Price,
			Qty:        t.Qty,
			Cross:      t.Cross,
			Time:       t.Time,
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	trader, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	marketID := r.URL.Query().Get("market")
	if marketID == "" {
		respondError(w, http.StatusBadRequest, "missing market query parameter", "")
		return
	}

	pos, err := s.engine.UserPosition(trader, marketID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, PositionInfo{
		Trader:   pos.Trader.Hex(),
		MarketID: pos.MarketID,
		Balance:  pos.Balance,
		OptionA: SharePositionInfo{
			Total: pos.OptionA.Total, Locked: pos.OptionA.Locked, Available: pos.OptionA.Available(),
		},
		OptionB: SharePositionInfo{
			Total: pos.OptionB.Total, Locked: pos.OptionB.Locked, Available: pos.OptionB.Available(),
		},
		PendingPayout: pos.PendingPayout,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

// verifySigned parses the trader address, decodes the signature, and checks
// it recovers to the trader over digest. Writes the error response itself.
func (s *Server) verifySigned(w http.ResponseWriter, addressStr, sigHex string, digest []byte) (common.Address, bool) {
	trader, ok := parseAddress(w, addressStr)
	if !ok {
		return common.Address{}, false
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		respondError(w, http.StatusBadRequest, "invalid signature encoding", "")
		return common.Address{}, false
	}
	if !crypto.VerifySignature(trader, digest, sig) {
		respondError(w, http.StatusUnauthorized, "signature verification failed", "")
		return common.Address{}, false
	}
	return trader, true
}

func parseAddress(w http.ResponseWriter, addressStr string) (common.Address, bool) {
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", addressStr)
		return common.Address{}, false
	}
	return common.HexToAddress(addressStr), true
}

func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, exchange.ErrMarketNotFound),
		errors.Is(err, exchange.ErrOrderNotFound),
		errors.Is(err, exchange.ErrBalanceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, exchange.ErrInsufficientSettlementFunds):
		status = http.StatusInternalServerError
	}
	respondError(w, status, err.Error(), "")
}

func marketInfo(m *market.Market) MarketInfo {
	return MarketInfo{
		ID:        m.ID,
		Question:  m.Question,
		OptionA:   m.OptionAName,
		OptionB:   m.OptionBName,
		Status:    m.Status.String(),
		Mode:      m.Mode.String(),
		CreatedAt: m.CreatedAt,
		Vault:     m.Vault,
	}
}

func orderInfo(o *orderbook.Order) OrderInfo {
	return OrderInfo{
		ID:        o.ID,
		Trader:    o.Trader.Hex(),
		Option:    o.Option.String(),
		Side:      o.Side.String(),
		Price:     o.Price,
		Qty:       o.Quantity,
		Filled:    o.Filled,
		Remaining: o.Remaining(),
		Status:    o.Status.String(),
		CreatedAt: o.CreatedAt,
	}
}

func priceLevels(levels []orderbook.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, level := range levels {
		out[i] = PriceLevel{Price: level.Price, Size: level.Qty}
	}
	return out
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}
