package worker

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/revsim/internal/dynamo"
)

var (
	// requestsTotal counts worker operations by operation and result
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revsim_worker_requests_total",
		Help: "Worker operations by operation and result",
	}, []string{"op", "result"})

	// opDuration tracks time spent holding the compute resource
	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "revsim_worker_op_duration_seconds",
		Help:    "Time spent holding the compute resource per operation",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
	}, []string{"op"})

	// lockWait tracks time spent waiting for the compute resource
	lockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "revsim_worker_lock_wait_seconds",
		Help:    "Time spent waiting for the compute resource",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	// liveSessions is the number of retained sessions
	liveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "revsim_worker_live_sessions",
		Help: "Number of sessions waiting for a backward pass",
	})

	// stepsTotal counts integrator steps by direction
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revsim_worker_steps_total",
		Help: "Integrator steps executed by direction",
	}, []string{"direction"})
)

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dynamo.ErrSessionNotFound):
		return "not_found"
	case dynamo.IsConfigError(err):
		return "invalid"
	}
	return "error"
}
