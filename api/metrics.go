package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/forecast-split/split"
	"github.com/warp/forecast-split/timeseries"
)

// Recorder exposes validation metrics on its own registry, so several
// handlers (one per test) never collide on registration.
type Recorder struct {
	registry    *prometheus.Registry
	validations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	savedPlans  prometheus.Gauge
}

// NewRecorder creates a recorder with Go runtime collectors attached.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_split_validations_total",
				Help: "Validator invocations by kind, outcome and rule code",
			},
			[]string{"kind", "outcome", "code"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecast_split_validation_duration_seconds",
				Help:    "Duration of validation and partition calls in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"kind"},
		),
		savedPlans: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_split_saved_plans",
			Help: "Number of split plans in the store",
		}),
	}
}

// RecordValidation counts one validator call and observes its latency.
func (r *Recorder) RecordValidation(kind string, err error, elapsed time.Duration) {
	r.validations.WithLabelValues(kind, outcomeOf(err), codeOf(err)).Inc()
	r.latency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordSavedPlans sets the saved plan gauge.
func (r *Recorder) RecordSavedPlans(n int) {
	r.savedPlans.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeAccepted
	case split.IsClientError(err):
		return outcomeRejected
	default:
		return outcomeError
	}
}

// codeOf extends split.CodeOf with the frequency error, which has no rule.
func codeOf(err error) string {
	if err == nil {
		return ""
	}
	if code := split.CodeOf(err); code != "" {
		return string(code)
	}
	if errors.Is(err, timeseries.ErrInvalidFrequency) {
		return "invalid_frequency"
	}
	return ""
}
