// Package metrics exports login outcomes and provider latency to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-sso/pkg/events"
)

// Recorder is an events.Subscriber and a provider.Observer.
type Recorder struct {
	aborted   *prometheus.CounterVec
	succeeded *prometheus.CounterVec
	provider  *prometheus.HistogramVec
	gatherer  prometheus.Gatherer
}

// NewRecorder registers the SSO metrics on reg. A nil reg uses a fresh
// registry.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		aborted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_login_aborted_total",
			Help: "Aborted login attempts by realm and reason.",
		}, []string{"realm", "reason"}),
		succeeded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_login_succeeded_total",
			Help: "Successful logins by realm.",
		}, []string{"realm"}),
		provider: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sso_provider_request_duration_seconds",
			Help:    "Duration of identity provider requests.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op", "outcome"}),
		gatherer: reg,
	}
}

func (r *Recorder) OnLoginAborted(_ context.Context, e events.LoginAborted) error {
	r.aborted.WithLabelValues(e.Realm.String(), e.Reason.String()).Inc()
	return nil
}

func (r *Recorder) OnLoginSucceeded(_ context.Context, e events.LoginSucceeded) error {
	r.succeeded.WithLabelValues(e.Realm.String()).Inc()
	return nil
}

// ObserveProviderRequest records one provider call.
func (r *Recorder) ObserveProviderRequest(op, outcome string, d time.Duration) {
	r.provider.WithLabelValues(op, outcome).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
