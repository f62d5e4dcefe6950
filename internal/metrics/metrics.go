package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-blur/internal/model"
)

var (
	results = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blur_worker_results_total",
		Help: "Number of processed work requests by result status.",
	}, []string{"status"})

	duration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blur_worker_duration_seconds",
		Help:    "Time spent running a work request.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)

// ObserveResult records the outcome and duration of a work request.
func ObserveResult(status model.Status, d time.Duration) {
	results.WithLabelValues(string(status)).Inc()
	duration.Observe(d.Seconds())
}

// Serve starts an http server for metrics and blocks until ctx is done.
func Serve(ctx context.Context, listenAddress string) {
	router := http.NewServeMux()
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              listenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Err(err).Msg("metrics http server stopped")
		}
	}()

	zlog.Logger.Info().Str("addr", listenAddress).Msg("metrics http server listening")

	<-ctx.Done()

	if err := server.Close(); err != nil {
		zlog.Logger.Err(err).Msg("error shutting down metrics http server")
	}
}
