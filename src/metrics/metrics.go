package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_notifier_events_total",
			Help: "Total number of stage events received, by outcome",
		},
		[]string{"transport", "outcome"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_notifier_deliveries_total",
			Help: "Total number of webhook deliveries, by result",
		},
		[]string{"result"},
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_notifier_delivery_duration_seconds",
			Help:    "Duration of webhook deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_notifier_in_flight",
			Help: "Events currently being processed",
		},
	)
)

// Serve exposes /metrics on bind until ctx is done.
func Serve(ctx context.Context, bind string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logrus.Infof("metrics listening on %s", bind)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Error("metrics server: ", err)
	}
}
