// Package httpapi exposes the server over HTTP: the terminal sync protocol
// plus back-office card endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/server/auth"
	"github.com/dmitrijs2005/farekeeper/internal/server/models"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farekeeper_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "farekeeper_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	syncedTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farekeeper_synced_transactions_total",
		Help: "Transactions settled through sync, labeled by verdict",
	}, []string{"status"})
)

// Reconciler accepts heartbeats and transaction batches from terminals.
type Reconciler interface {
	Heartbeat(ctx context.Context, terminalID string, pending int) (time.Time, error)
	ProcessBatch(ctx context.Context, terminalID string, batch []syncapi.Transaction) (*syncapi.SyncResponse, error)
	Terminals(ctx context.Context) ([]*models.Terminal, error)
}

// CardLedger serves the back-office card endpoints.
type CardLedger interface {
	GetCard(ctx context.Context, id string) (*models.Card, error)
	Topup(ctx context.Context, cardID string, amount int64) (*models.Card, error)
	Transactions(ctx context.Context, cardID string) ([]*models.Transaction, error)
}

type Handler struct {
	reconciler    Reconciler
	ledger        CardLedger
	secretKey     []byte
	tokenValidity time.Duration
	logger        logging.Logger
}

func NewHandler(r Reconciler, l CardLedger, secretKey []byte, tokenValidity time.Duration, logger logging.Logger) *Handler {
	return &Handler{
		reconciler:    r,
		ledger:        l,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
		logger:        logger,
	}
}

// RegisterTerminal issues a token for the terminal ID the device presents.
// Terminals self-register on first contact.
func (h *Handler) RegisterTerminal(w http.ResponseWriter, r *http.Request) {
	var req syncapi.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/terminals/register")
		return
	}
	if req.TerminalID == "" {
		h.respondError(w, http.StatusBadRequest, "terminal_id is required", "POST", "/terminals/register")
		return
	}

	token, err := auth.GenerateToken(req.TerminalID, h.secretKey, h.tokenValidity)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Token generation failed", "POST", "/terminals/register")
		return
	}

	h.logger.Info(r.Context(), "terminal registered", "terminal_id", req.TerminalID)
	h.respondJSON(w, http.StatusOK, syncapi.RegisterResponse{TerminalID: req.TerminalID, Token: token},
		"POST", "/terminals/register")
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/heartbeat"))
	defer timer.ObserveDuration()

	var req syncapi.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/heartbeat")
		return
	}
	if req.TerminalID != terminalIDFromContext(r.Context()) {
		h.respondError(w, http.StatusForbidden, "terminal_id does not match token", "POST", "/heartbeat")
		return
	}

	serverTime, err := h.reconciler.Heartbeat(r.Context(), req.TerminalID, req.Pending)
	if err != nil {
		h.logger.Error(r.Context(), "heartbeat failed", "terminal_id", req.TerminalID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "POST", "/heartbeat")
		return
	}

	h.respondJSON(w, http.StatusOK, syncapi.HeartbeatResponse{ServerTime: serverTime}, "POST", "/heartbeat")
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/sync"))
	defer timer.ObserveDuration()

	var req syncapi.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/sync")
		return
	}
	if req.TerminalID != terminalIDFromContext(r.Context()) {
		h.respondError(w, http.StatusForbidden, "terminal_id does not match token", "POST", "/sync")
		return
	}

	resp, err := h.reconciler.ProcessBatch(r.Context(), req.TerminalID, req.Transactions)
	if err != nil {
		h.logger.Error(r.Context(), "sync failed", "terminal_id", req.TerminalID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "POST", "/sync")
		return
	}

	for _, result := range resp.Results {
		syncedTransactionsTotal.WithLabelValues(string(result.Status)).Inc()
	}

	h.respondJSON(w, http.StatusOK, resp, "POST", "/sync")
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	card, err := h.ledger.GetCard(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "Card not found", "GET", "/cards/{id}")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/cards/{id}")
		return
	}

	h.respondJSON(w, http.StatusOK, card, "GET", "/cards/{id}")
}

type topupRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) TopupCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req topupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/cards/{id}/topup")
		return
	}

	card, err := h.ledger.Topup(r.Context(), id, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidAmount):
			h.respondError(w, http.StatusUnprocessableEntity, "Positive amount required", "POST", "/cards/{id}/topup")
		case errors.Is(err, common.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "Card not found", "POST", "/cards/{id}/topup")
		default:
			h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "POST", "/cards/{id}/topup")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, card, "POST", "/cards/{id}/topup")
}

type transactionView struct {
	ID         string    `json:"transaction_id"`
	CardID     string    `json:"card_id"`
	TerminalID string    `json:"terminal_id,omitempty"`
	Kind       string    `json:"kind"`
	Amount     int64     `json:"amount"`
	Seq        int64     `json:"seq,omitempty"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (h *Handler) ListCardTransactions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	history, err := h.ledger.Transactions(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/cards/{id}/transactions")
		return
	}

	views := make([]transactionView, 0, len(history))
	for _, txn := range history {
		views = append(views, transactionView{
			ID:         txn.ID,
			CardID:     txn.CardID,
			TerminalID: txn.TerminalID,
			Kind:       string(txn.Kind),
			Amount:     txn.Amount,
			Seq:        txn.Seq,
			Status:     string(txn.Status),
			Reason:     txn.Reason,
			CreatedAt:  txn.CreatedAt,
			RecordedAt: txn.RecordedAt,
		})
	}

	h.respondJSON(w, http.StatusOK, views, "GET", "/cards/{id}/transactions")
}

func (h *Handler) ListTerminals(w http.ResponseWriter, r *http.Request) {
	fleet, err := h.reconciler.Terminals(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", "GET", "/terminals")
		return
	}
	h.respondJSON(w, http.StatusOK, fleet, "GET", "/terminals")
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, message, method, endpoint string) {
	h.respondJSON(w, code, syncapi.ErrorResponse{Error: message}, method, endpoint)
}
