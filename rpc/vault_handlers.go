package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"yieldvault/crypto"
	nativecommon "yieldvault/native/common"
	"yieldvault/native/vault"
)

type addressParam struct {
	Address string `json:"address"`
}

type amountParam struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type callerParam struct {
	Caller string `json:"caller"`
}

type delayParam struct {
	Caller  string `json:"caller"`
	Seconds uint64 `json:"seconds"`
}

type rateParam struct {
	Caller string `json:"caller"`
	// Rate is the ray-scaled (1e27) per-second growth target.
	Rate string `json:"rate"`
}

type quoteParam struct {
	Amount string `json:"amount"`
}

type depositResult struct {
	SharesMinted string `json:"sharesMinted"`
}

type withdrawResult struct {
	Requested string `json:"requested"`
	Paid      string `json:"paid"`
}

type harvestResult struct {
	FeeSharesMinted string `json:"feeSharesMinted"`
}

type claimResult struct {
	Paid string `json:"paid"`
}

type stateResult struct {
	Initialized                bool   `json:"initialized"`
	TotalShares                string `json:"totalShares"`
	TotalDelegatedHoldings     string `json:"totalDelegatedHoldings"`
	WithdrawalDelaySeconds     uint64 `json:"withdrawalDelaySeconds"`
	HarvestDelaySeconds        uint64 `json:"harvestDelaySeconds"`
	PendingHarvestDelaySeconds uint64 `json:"pendingHarvestDelaySeconds"`
	LastHarvestUnix            int64  `json:"lastHarvestUnix"`
	RatePerSecond              string `json:"ratePerSecond"`
}

type eventResult struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return nil
}

func parseAddress(raw string) (crypto.Address, *RPCError) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, &RPCError{Code: codeInvalidParams, Message: "invalid address", Data: raw}
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, *RPCError) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid amount", Data: raw}
	}
	return value, nil
}

func formatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// engineError maps sentinel engine failures onto JSON-RPC error codes.
// Validation failures keep the invalid-params code so clients can distinguish
// their own mistakes from engine state.
func engineError(err error) *RPCError {
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, vault.ErrZeroAmount),
		errors.Is(err, vault.ErrZeroShares),
		errors.Is(err, vault.ErrInvalidRate),
		errors.Is(err, vault.ErrZeroDelay),
		errors.Is(err, vault.ErrDelayTooLong):
		return &RPCError{Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, nativecommon.ErrModulePaused):
		return &RPCError{Code: codeServerError, Message: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: err.Error()}
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, method string, err error) {
	s.metrics.ObserveRejected(method)
	rpcErr := engineError(err)
	writeError(w, http.StatusOK, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
}

// refreshTotals pushes the post-operation accounting gauges. Failures are
// ignored: the gauges are best effort and the operation already succeeded.
func (s *Server) refreshTotals() {
	holdings, err := s.engine.TotalHoldings()
	if err != nil {
		return
	}
	shares, err := s.engine.TotalShares()
	if err != nil {
		return
	}
	s.metrics.SetTotals(holdings, shares)
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params callerParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.Initialize(caller); err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	s.logger.Info("vault initialized", "caller", params.Caller)
	writeResult(w, req.ID, true)
}

func (s *Server) handleDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params amountParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	shares, err := s.engine.Deposit(caller, amount)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	s.metrics.ObserveDeposit()
	s.refreshTotals()
	writeResult(w, req.ID, depositResult{SharesMinted: formatBig(shares)})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params amountParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	paid, err := s.engine.Withdraw(caller, amount)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	s.metrics.ObserveWithdrawal(paid.Cmp(amount) < 0)
	s.refreshTotals()
	writeResult(w, req.ID, withdrawResult{Requested: formatBig(amount), Paid: formatBig(paid)})
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params callerParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	minted, err := s.engine.Harvest(caller)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	s.metrics.ObserveHarvest(minted)
	s.refreshTotals()
	writeResult(w, req.ID, harvestResult{FeeSharesMinted: formatBig(minted)})
}

func (s *Server) handleClaimProfit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params callerParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	paid, err := s.engine.ClaimProfit(caller)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	s.metrics.ObserveClaim()
	s.refreshTotals()
	writeResult(w, req.ID, claimResult{Paid: formatBig(paid)})
}

func (s *Server) handleSetWithdrawalDelay(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params delayParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.SetWithdrawalDelay(caller, params.Seconds); err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetHarvestDelay(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params delayParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.SetHarvestDelay(caller, params.Seconds); err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetFixedRate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params rateParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := parseAddress(params.Caller)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	rate, rpcErr := parseAmount(params.Rate)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.SetFixedRate(caller, rate); err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetTotalHoldings(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	holdings, err := s.engine.TotalHoldings()
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, formatBig(holdings))
}

func (s *Server) handleGetTotalFloat(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	float, err := s.engine.TotalFloat()
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, formatBig(float))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	balance, err := s.engine.BalanceOf(addr)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, formatBig(balance))
}

func (s *Server) handleGetBalanceOfUnderlying(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	underlying, err := s.engine.BalanceOfUnderlying(addr)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, formatBig(underlying))
}

func (s *Server) handleConvertToShares(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params quoteParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	shares, err := s.engine.ConvertToShares(amount)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, formatBig(shares))
}

func (s *Server) handleConvertToUnderlying(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params quoteParam
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	shares, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	underlying, err := s.engine.ConvertToUnderlying(shares)
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, formatBig(underlying))
}

func (s *Server) handleGetVenueBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	balance, err := s.engine.VenueBalanceOfUnderlying()
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	writeResult(w, req.ID, formatBig(balance))
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	st, err := s.engine.State()
	if err != nil {
		s.writeEngineError(w, req.ID, req.Method, err)
		return
	}
	result := stateResult{
		Initialized:                st.Initialized,
		TotalShares:                formatBig(st.TotalShares),
		TotalDelegatedHoldings:     formatBig(st.TotalDelegatedHoldings),
		WithdrawalDelaySeconds:     st.WithdrawalDelaySeconds,
		HarvestDelaySeconds:        st.HarvestDelaySeconds,
		PendingHarvestDelaySeconds: st.PendingHarvestDelaySeconds,
		LastHarvestUnix:            st.LastHarvestUnix,
		RatePerSecond:              formatBig(st.RatePerSecond),
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	recorded := s.states.Events()
	results := make([]eventResult, 0, len(recorded))
	for _, evt := range recorded {
		if evt == nil {
			continue
		}
		results = append(results, eventResult{Type: evt.Type, Attributes: evt.Attributes})
	}
	writeResult(w, req.ID, results)
}
