package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/parknote/internal/handler"
	"github.com/hitoshi/parknote/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// newMetricsRegistry はランタイムとプロセスのコレクタを登録済みのレジストリを生成する。
// APIサーバーとワーカーで同じ構成を使う。
func newMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// newWorkerRouter はワーカー用の管理エンドポイントを持つルーターを構築する。
// /metrics でクリーンアップジョブのメトリクスを、/health でストレージの疎通を返す。
func newWorkerRouter(gatherer prometheus.Gatherer, checker handler.HealthChecker) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handler.NewHealthHandler(checker))
	r.Handle("/metrics", metrics.Handler(gatherer))
	return r
}

// serveWorkerMetrics はワーカーの管理サーバーをバックグラウンドで起動する。
// ctxがキャンセルされるとサーバーを停止し、返されたチャネルがクローズされる。
func serveWorkerMetrics(ctx context.Context, addr string, h http.Handler) <-chan struct{} {
	server := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		slog.Info("worker metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server failed", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	return done
}
