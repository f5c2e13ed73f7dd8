package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"ledger/internal/app/accounts"
	"ledger/internal/app/transactions"
	"ledger/internal/config"
	accounts_http "ledger/internal/handler/http/accounts"
	transactions_http "ledger/internal/handler/http/transactions"
	"ledger/internal/metrics"
)

func NewRouter(
	cfg *config.Config,
	accountService accounts.AccountService,
	transactionService transactions.TransactionService,
	m *metrics.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger.With(zap.String("component", "HTTP")), m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.HTTPWriteTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ledger service is healthy!"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	accounts_http.RegisterRoutes(r, accountService, logger)
	transactions_http.RegisterRoutes(r, transactionService, logger)

	return r
}

// requestLogger logs each request once it completes and records its latency
// under the matched route pattern.
func requestLogger(logger *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				elapsed := time.Since(start)
				route := "unmatched"
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				m.ObserveHTTP(r.Method, route, status, elapsed)
				logger.Info("Request served",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("route", route),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", elapsed))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
