package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MelihSuissefocus/Depotix/internal/catalog"
	"github.com/MelihSuissefocus/Depotix/internal/ledger"
	"github.com/MelihSuissefocus/Depotix/internal/observability"
	"github.com/MelihSuissefocus/Depotix/internal/orders"
	"github.com/MelihSuissefocus/Depotix/internal/partners"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	LedgerHandler   *ledger.Handler
	CatalogHandler  *catalog.Handler
	PartnersHandler *partners.Handler
	OrdersHandler   *orders.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Depotix defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Everything under /api requires a resolved actor identity.
	r.Group(func(r chi.Router) {
		r.Use(identityMiddleware(params.Logger))
		if params.LedgerHandler != nil {
			params.LedgerHandler.Routes(r)
		}
		if params.CatalogHandler != nil {
			params.CatalogHandler.Routes(r)
		}
		if params.PartnersHandler != nil {
			params.PartnersHandler.Routes(r)
		}
		if params.OrdersHandler != nil {
			params.OrdersHandler.Routes(r)
		}
	})

	return r
}
