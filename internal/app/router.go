package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versatilewordsmith/footwear-accounting/internal/catalog"
	"github.com/versatilewordsmith/footwear-accounting/internal/ledger"
	"github.com/versatilewordsmith/footwear-accounting/internal/observability"
	"github.com/versatilewordsmith/footwear-accounting/internal/partners"
	"github.com/versatilewordsmith/footwear-accounting/internal/purchases"
	"github.com/versatilewordsmith/footwear-accounting/internal/sales"
	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
	"github.com/versatilewordsmith/footwear-accounting/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	PartnersHandler  *partners.Handler
	CatalogHandler   *catalog.Handler
	StockHandler     *stock.Handler
	SalesHandler     *sales.Handler
	PurchasesHandler *purchases.Handler
	LedgerHandler    *ledger.Handler
	JobsHandler      *jobs.Handler
	Pool             *pgxpool.Pool
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with back-office defaults.
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
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/partners", params.PartnersHandler.MountRoutes)
	r.Route("/catalog", params.CatalogHandler.MountRoutes)
	r.Route("/stock", params.StockHandler.MountRoutes)
	r.Route("/sales", params.SalesHandler.MountRoutes)
	r.Route("/purchases", params.PurchasesHandler.MountRoutes)
	r.Route("/ledger", params.LedgerHandler.MountRoutes)
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
