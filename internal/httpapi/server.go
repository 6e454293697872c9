// Package httpapi exposes search, catalog and custom-ID operations over
// HTTP with a chi router.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/Aman-CERP/invsearch/internal/async"
	"github.com/Aman-CERP/invsearch/internal/catalog"
	"github.com/Aman-CERP/invsearch/internal/config"
	"github.com/Aman-CERP/invsearch/internal/customid"
	"github.com/Aman-CERP/invsearch/internal/search"
	"github.com/Aman-CERP/invsearch/internal/telemetry"
)

// Rebuilder rebuilds the whole index from the system of record.
type Rebuilder interface {
	RebuildAll(ctx context.Context) (int, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API. Metrics and IndexProgress may be
// nil.
type Deps struct {
	Search        *search.Service
	Catalog       *catalog.Catalog
	CustomID      *customid.Service
	Indexer       Rebuilder
	Store         Pinger
	Metrics       *telemetry.QueryMetrics
	IndexProgress *async.Progress
}

type api struct {
	Deps
}

// NewRouter builds the handler with the standard middleware stack:
// request id, real IP, request logging, panic recovery, per-IP rate limit,
// CORS and a request deadline.
func NewRouter(cfg config.ServerConfig, timeout time.Duration, deps Deps) http.Handler {
	a := &api{Deps: deps}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger,
		middleware.Recoverer,
	)
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}
	r.Use(corsHandler(cfg.CORSOrigins), middleware.Timeout(timeout))

	r.Get("/healthz", a.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Get("/", a.search)
			r.Get("/suggest", a.suggest)
			r.Post("/reindex", a.reindex)
			r.Get("/stats", a.stats)
		})

		r.Post("/inventories", a.createInventory)
		r.Route("/inventories/{inventoryID}", func(r chi.Router) {
			r.Put("/", a.updateInventory)
			r.Delete("/", a.deleteInventory)
			r.Get("/fields", a.listFields)
			r.Post("/fields", a.addField)
			r.Post("/items", a.createItem)

			r.Route("/custom-id", func(r chi.Router) {
				r.Get("/elements", a.listElements)
				r.Post("/elements", a.addElement)
				r.Post("/elements/reorder", a.reorderElements)
				r.Put("/elements/{elementID}", a.updateElement)
				r.Delete("/elements/{elementID}", a.deleteElement)
				r.Get("/preview", a.previewCustomID)
				r.Post("/validate", a.validateCustomID)
			})
		})

		r.Put("/items/{itemID}", a.updateItem)
		r.Delete("/items/{itemID}", a.deleteItem)
	})
	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http_request",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)))
	})
}

// NewServer returns an *http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http_server_started", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("http_server_stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
