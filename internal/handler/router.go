package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/parknote/internal/expiry"
	"github.com/hitoshi/parknote/internal/metrics"
	"github.com/hitoshi/parknote/internal/middleware"
	"github.com/hitoshi/parknote/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	TokenVerifier     middleware.TokenVerifier

	// 監視
	HealthChecker HealthChecker
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer

	// サービス
	AuthService    AuthServiceInterface
	ParkingService ParkingServiceInterface
	Geocoder       ReverseGeocoder
	ExpiryPolicy   expiry.Policy
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS → (Auth)
//
// /api/auth/* と /health, /metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:    model.ErrCodeNotFound,
			Message: "Route not found",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, &model.APIError{
			Code:    model.ErrCodeValidation,
			Message: "Method not allowed",
		})
	})

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	parkingHandler := NewParkingHandler(deps.ParkingService, deps.ExpiryPolicy)

	r.Route("/api", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))

			r.Route("/parking", func(r chi.Router) {
				r.Get("/", parkingHandler.ListNotes)
				r.Post("/", parkingHandler.CreateNote)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", parkingHandler.GetNote)
					r.Put("/", parkingHandler.UpdateNote)
					r.Delete("/", parkingHandler.DeleteNote)
				})
			})

			if deps.Geocoder != nil {
				r.Get("/geocode/reverse", NewGeocodeHandler(deps.Geocoder).Reverse)
			}
		})
	})

	return r
}
