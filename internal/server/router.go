package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerkit/paytrack/internal/config"
	"github.com/ledgerkit/paytrack/internal/fx"
	"github.com/ledgerkit/paytrack/internal/handlers"
	"github.com/ledgerkit/paytrack/internal/httpx"
	"github.com/ledgerkit/paytrack/internal/logger"
	"github.com/ledgerkit/paytrack/internal/processor"
	"github.com/ledgerkit/paytrack/internal/repository"
	"github.com/ledgerkit/paytrack/internal/services"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config, rates fx.RateProvider) http.Handler {
	store := repository.NewGormStore(db)
	reconciler := services.NewReconciler(store, logger.WithComponent("reconciler"))
	suggester := services.NewSuggester(store)
	dashboard := services.NewDashboard(store, rates, cfg.FxTimeout, logger.WithComponent("dashboard"))

	var droppedEvents atomic.Int64
	ingestor := services.NewIngestor(store, reconciler, logger.WithComponent("ingest"),
		services.WithDroppedHook(func(string) { droppedEvents.Add(1) }))

	clients := processor.NewFactory(cfg.ProcessorBaseURL, func(ctx context.Context, workspaceID uint) (processor.Credentials, error) {
		ws, err := store.GetWorkspace(ctx, workspaceID)
		if err != nil {
			return processor.Credentials{}, err
		}
		return processor.Credentials{AccountID: ws.ProcessorAccountID, APIKey: ws.ProcessorAPIKey}, nil
	}, 5*time.Minute)

	ih := handlers.NewInvoiceHandler(store, reconciler)
	ph := handlers.NewPaymentHandler(store, reconciler, clients, logger.WithComponent("payments"))
	mh := handlers.NewMatchHandler(reconciler, suggester)
	wh := handlers.NewWebhookHandler(ingestor, logger.WithComponent("webhooks"))
	dh := handlers.NewDashboardHandler(dashboard)
	eh := handlers.NewExtractionHandler(store)

	mux := http.NewServeMux()

	//revive:disable:unused-parameter simple handlers intentionally ignore *http.Request
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]int64{"webhook_events_dropped": droppedEvents.Load()})
	})
	//revive:enable:unused-parameter

	mux.HandleFunc("/invoices", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ih.List(w, r)
		case http.MethodPost:
			ih.Create(w, r)
		default:
			methodNotAllowed(w, "GET,POST")
		}
	})
	mux.HandleFunc("/invoices/approve", postOnly(ih.Approve))
	mux.HandleFunc("/invoices/from-extraction", postOnly(ih.FromExtraction))
	mux.HandleFunc("/extractions", postOnly(eh.Create))

	mux.HandleFunc("/payments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ph.List(w, r)
		case http.MethodPost:
			ph.Create(w, r)
		default:
			methodNotAllowed(w, "GET,POST")
		}
	})
	mux.HandleFunc("/payments/delete", postOnly(ph.Delete))
	mux.HandleFunc("/payments/refresh", postOnly(ph.Refresh))

	mux.HandleFunc("/matches", postOnly(mh.Create))
	mux.HandleFunc("/matches/update", postOnly(mh.Update))
	mux.HandleFunc("/matches/delete", postOnly(mh.Delete))
	mux.HandleFunc("/matches/suggest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, "GET")
			return
		}
		mh.Suggest(w, r)
	})

	mux.HandleFunc("/webhooks/payments", postOnly(wh.Handle))

	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, "GET")
			return
		}
		dh.Show(w, r)
	})

	return withRecover(withLogging(mux))
}

func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, "POST")
			return
		}
		h(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := logger.WithRequestID(uuid.NewString())
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log := logger.WithComponent("server")
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
