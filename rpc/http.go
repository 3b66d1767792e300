package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"yieldvault/core/state"
	"yieldvault/native/vault"
	"yieldvault/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "VAULT_RPC_TOKEN"

	requestsPerSecond = 10
	requestBurst      = 20
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the vault engine over a JSON-RPC 2.0 endpoint. Privileged
// methods require the bearer token from VAULT_RPC_TOKEN; every client is
// rate-limited by remote address.
type Server struct {
	engine *vault.Engine
	states *state.Manager
	logger *slog.Logger

	authToken string
	metrics   *metrics.VaultMetrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires an RPC server over the engine and its state manager.
func NewServer(engine *vault.Engine, states *state.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		states:    states,
		logger:    logger,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		metrics:   metrics.Vault(),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Router builds the HTTP handler: the JSON-RPC endpoint, a liveness probe and
// the Prometheus scrape endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Start serves the router on the given address and blocks.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) limiter(remote string) *rate.Limiter {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if lim, ok := s.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst)
	s.limiters[host] = lim
	return lim
}

// requireAuth checks the bearer token for privileged methods. A server
// started without a configured token refuses every privileged call rather
// than running open.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.limiter(r.RemoteAddr).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON body", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	handler(w, r, &req)
}

type rpcHandler func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) methods() map[string]rpcHandler {
	return map[string]rpcHandler{
		"vault_initialize":             s.handleInitialize,
		"vault_deposit":                s.handleDeposit,
		"vault_withdraw":               s.handleWithdraw,
		"vault_harvest":                s.handleHarvest,
		"vault_claimProfit":            s.handleClaimProfit,
		"vault_setWithdrawalDelay":     s.handleSetWithdrawalDelay,
		"vault_setHarvestDelay":        s.handleSetHarvestDelay,
		"vault_setFixedRate":           s.handleSetFixedRate,
		"vault_getTotalHoldings":       s.handleGetTotalHoldings,
		"vault_getTotalFloat":          s.handleGetTotalFloat,
		"vault_getBalance":             s.handleGetBalance,
		"vault_getBalanceOfUnderlying": s.handleGetBalanceOfUnderlying,
		"vault_convertToShares":        s.handleConvertToShares,
		"vault_convertToUnderlying":    s.handleConvertToUnderlying,
		"vault_getVenueBalance":        s.handleGetVenueBalance,
		"vault_getState":               s.handleGetState,
		"vault_getEvents":              s.handleGetEvents,
	}
}
