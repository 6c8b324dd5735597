// Package isolationd exposes the read-only HTTP surface for the isolation
// subsystem: valuation queries, action building for off-chain tooling and
// operational health. Conversions themselves run in-process inside the margin
// engine; nothing here mutates protocol state.
package isolationd

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	nativecommon "isomargin/native/common"
	"isomargin/native/isolation"
	"isomargin/native/pricing"
	"isomargin/observability/metrics"
)

// Server wires the pricing oracles and trader action builders behind HTTP.
type Server struct {
	log *slog.Logger

	mu      sync.RWMutex
	oracles map[common.Address]oracleEntry

	wrapper   *isolation.Wrapper
	unwrapper *isolation.Unwrapper
	ledger    *isolation.PositionLedger
}

type oracleEntry struct {
	kind   string
	oracle pricing.PriceOracle
}

// New constructs an empty server; callers register oracles and traders before
// serving.
func New(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:     log,
		oracles: make(map[common.Address]oracleEntry),
	}
}

// RegisterOracle exposes a token's valuation under /v1/price. Kind labels the
// metrics ("pt", "yt", "lp").
func (s *Server) RegisterOracle(kind string, token common.Address, oracle pricing.PriceOracle) {
	if s == nil || oracle == nil {
		return
	}
	s.mu.Lock()
	s.oracles[token] = oracleEntry{kind: kind, oracle: oracle}
	s.mu.Unlock()
}

// SetTraders wires the trader pair used by the action-builder routes.
func (s *Server) SetTraders(wrapper *isolation.Wrapper, unwrapper *isolation.Unwrapper) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.wrapper = wrapper
	s.unwrapper = unwrapper
	s.mu.Unlock()
}

// SetLedger wires the position ledger backing the position route.
func (s *Server) SetLedger(ledger *isolation.PositionLedger) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.ledger = ledger
	s.mu.Unlock()
}

// Handler builds the chi router for the service.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.health)
	r.Get("/v1/price/{token}", s.getPrice)
	r.Get("/v1/position/{vault}", s.getPosition)
	r.Post("/v1/actions/wrap", s.buildWrap)
	r.Post("/v1/actions/unwrap", s.buildUnwrap)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type priceResponse struct {
	Token string       `json:"token"`
	Kind  string       `json:"kind"`
	Value *hexutil.Big `json:"value"`
	Wad   string       `json:"wad"`
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")
	if !common.IsHexAddress(raw) {
		metrics.Isolation().ObserveRequestError("price")
		writeError(w, http.StatusBadRequest, nativecommon.NewError("isolationd", nativecommon.CodeInvalidToken, "token %q is not a hex address", raw))
		return
	}
	token := common.HexToAddress(raw)

	s.mu.RLock()
	entry, ok := s.oracles[token]
	s.mu.RUnlock()
	if !ok {
		metrics.Isolation().ObserveRequestError("price")
		writeError(w, http.StatusNotFound, nativecommon.NewError("isolationd", nativecommon.CodeInvalidToken, "no oracle registered for %s", token.Hex()))
		return
	}

	value, err := entry.oracle.GetPrice(token)
	metrics.Isolation().ObservePriceQuery(entry.kind, err)
	if err != nil {
		s.log.Warn("price query failed", "token", token.Hex(), "kind", entry.kind, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		Token: token.Hex(),
		Kind:  entry.kind,
		Value: (*hexutil.Big)(value),
		Wad:   value.String(),
	})
}

type positionResponse struct {
	Vault      string       `json:"vault"`
	Owner      string       `json:"owner"`
	SubAccount uint64       `json:"subAccount"`
	Token      string       `json:"token"`
	Balance    *hexutil.Big `json:"balance"`
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "vault")
	if !common.IsHexAddress(raw) {
		metrics.Isolation().ObserveRequestError("position")
		writeError(w, http.StatusBadRequest, nativecommon.NewError("isolationd", nativecommon.CodeInvalidToken, "vault %q is not a hex address", raw))
		return
	}
	vault := common.HexToAddress(raw)

	s.mu.RLock()
	ledger := s.ledger
	s.mu.RUnlock()
	if ledger == nil {
		writeError(w, http.StatusNotImplemented, nativecommon.NewError("isolationd", nativecommon.CodeNotImplemented, "position ledger not configured"))
		return
	}
	position, err := ledger.Get(vault)
	if err != nil {
		metrics.Isolation().ObserveRequestError("position")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if position == nil {
		writeError(w, http.StatusNotFound, nativecommon.NewError("isolationd", nativecommon.CodeInvalidToken, "no position for vault %s", vault.Hex()))
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		Vault:      vault.Hex(),
		Owner:      position.Owner.Hex(),
		SubAccount: position.SubAccount,
		Token:      position.Token.Hex(),
		Balance:    (*hexutil.Big)(position.Balance),
	})
}

type actionsRequest struct {
	PrimaryAccountID     uint64         `json:"primaryAccountId"`
	OtherAccountID       uint64         `json:"otherAccountId"`
	PrimaryAccountOwner  string         `json:"primaryAccountOwner"`
	PrimaryAccountNumber uint64         `json:"primaryAccountNumber"`
	OtherAccountOwner    string         `json:"otherAccountOwner"`
	OtherAccountNumber   uint64         `json:"otherAccountNumber"`
	OutputMarket         uint64         `json:"outputMarket"`
	InputMarket          uint64         `json:"inputMarket"`
	MinOutputAmount      *hexutil.Big   `json:"minOutputAmount"`
	InputAmount          *hexutil.Big   `json:"inputAmount"`
	OrderData            hexutil.Bytes  `json:"orderData"`
}

func (req actionsRequest) params() (isolation.ConversionParams, error) {
	params := isolation.ConversionParams{
		PrimaryAccountID:     req.PrimaryAccountID,
		OtherAccountID:       req.OtherAccountID,
		PrimaryAccountNumber: req.PrimaryAccountNumber,
		OtherAccountNumber:   req.OtherAccountNumber,
		OutputMarket:         req.OutputMarket,
		InputMarket:          req.InputMarket,
		OrderData:            req.OrderData,
	}
	if !common.IsHexAddress(req.PrimaryAccountOwner) || !common.IsHexAddress(req.OtherAccountOwner) {
		return params, nativecommon.NewError("isolationd", nativecommon.CodeInvalidOriginator, "account owners must be hex addresses")
	}
	params.PrimaryAccountOwner = common.HexToAddress(req.PrimaryAccountOwner)
	params.OtherAccountOwner = common.HexToAddress(req.OtherAccountOwner)
	if req.MinOutputAmount != nil {
		params.MinOutputAmount = req.MinOutputAmount.ToInt()
	}
	if req.InputAmount != nil {
		params.InputAmount = req.InputAmount.ToInt()
	}
	return params, nil
}

type actionResponse struct {
	Type              string        `json:"type"`
	AccountID         uint64        `json:"accountId"`
	OtherAccountID    uint64        `json:"otherAccountId"`
	PrimaryMarketID   uint64        `json:"primaryMarketId"`
	SecondaryMarketID uint64        `json:"secondaryMarketId"`
	Amount            *hexutil.Big  `json:"amount"`
	OtherAddress      string        `json:"otherAddress"`
	Data              hexutil.Bytes `json:"data,omitempty"`
}

func renderActions(actions []isolation.Action) []actionResponse {
	out := make([]actionResponse, 0, len(actions))
	for _, action := range actions {
		out = append(out, actionResponse{
			Type:              action.Type.String(),
			AccountID:         action.AccountID,
			OtherAccountID:    action.OtherAccountID,
			PrimaryMarketID:   action.PrimaryMarketID,
			SecondaryMarketID: action.SecondaryMarketID,
			Amount:            (*hexutil.Big)(action.Amount),
			OtherAddress:      action.OtherAddress.Hex(),
			Data:              action.Data,
		})
	}
	return out
}

func (s *Server) buildWrap(w http.ResponseWriter, r *http.Request) {
	s.buildActions(w, r, "wrap", func(params isolation.ConversionParams) ([]isolation.Action, error) {
		s.mu.RLock()
		wrapper := s.wrapper
		s.mu.RUnlock()
		if wrapper == nil {
			return nil, nativecommon.NewError("isolationd", nativecommon.CodeNotImplemented, "wrapper trader not configured")
		}
		return wrapper.CreateActionsForWrapping(params)
	})
}

func (s *Server) buildUnwrap(w http.ResponseWriter, r *http.Request) {
	s.buildActions(w, r, "unwrap", func(params isolation.ConversionParams) ([]isolation.Action, error) {
		s.mu.RLock()
		unwrapper := s.unwrapper
		s.mu.RUnlock()
		if unwrapper == nil {
			return nil, nativecommon.NewError("isolationd", nativecommon.CodeNotImplemented, "unwrapper trader not configured")
		}
		return unwrapper.CreateActionsForUnwrapping(params)
	})
}

func (s *Server) buildActions(w http.ResponseWriter, r *http.Request, direction string, build func(isolation.ConversionParams) ([]isolation.Action, error)) {
	var req actionsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		metrics.Isolation().ObserveRequestError(direction)
		writeError(w, http.StatusBadRequest, nativecommon.NewError("isolationd", nativecommon.CodeInvalidOrderData, "decode request: %v", err))
		return
	}
	params, err := req.params()
	if err == nil {
		var actions []isolation.Action
		actions, err = build(params)
		metrics.Isolation().ObserveActionBuild(direction, err)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"actions": renderActions(actions)})
			return
		}
	}
	metrics.Isolation().ObserveRequestError(direction)
	s.log.Warn("action build failed", "direction", direction, "err", err)
	writeError(w, statusFor(err), err)
}

func statusFor(err error) int {
	var moduleErr *nativecommon.Error
	if !errors.As(err, &moduleErr) {
		return http.StatusInternalServerError
	}
	switch moduleErr.Code {
	case nativecommon.CodeUnauthorized:
		return http.StatusForbidden
	case nativecommon.CodeNotImplemented:
		return http.StatusNotImplemented
	case nativecommon.CodeOracleNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	payload := map[string]string{"error": err.Error()}
	var moduleErr *nativecommon.Error
	if errors.As(err, &moduleErr) {
		payload["code"] = string(moduleErr.Code)
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
