package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the full route table. Registration is open; the sync
// protocol endpoints require a terminal token; the card and fleet endpoints
// are for back-office use.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/terminals/register", h.RegisterTerminal).Methods(http.MethodPost)

	protected := apiV1.NewRoute().Subrouter()
	protected.Use(h.AuthMiddleware)
	protected.HandleFunc("/heartbeat", h.Heartbeat).Methods(http.MethodPost)
	protected.HandleFunc("/sync", h.Sync).Methods(http.MethodPost)

	apiV1.HandleFunc("/terminals", h.ListTerminals).Methods(http.MethodGet)
	apiV1.HandleFunc("/cards/{id}", h.GetCard).Methods(http.MethodGet)
	apiV1.HandleFunc("/cards/{id}/transactions", h.ListCardTransactions).Methods(http.MethodGet)
	apiV1.HandleFunc("/cards/{id}/topup", h.TopupCard).Methods(http.MethodPost)

	return r
}
