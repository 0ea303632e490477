package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	labelOperation = "operation"
	labelOutcome   = "outcome"
	labelReason    = "reason"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Registry holds every codemate collector plus the Go and process
// collectors.
var Registry = prometheus.NewRegistry()

var operationCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "codemate_operations_total",
	Help: "The number of operations handled, by outcome",
}, []string{labelOperation, labelOutcome})

var operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "codemate_operation_duration_seconds",
	Help:    "The time it takes to complete each operation",
	Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
}, []string{labelOperation})

var testCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "codemate_tests_total",
	Help: "The number of test cases run by validation, by outcome",
}, []string{labelOutcome})

var rejectedCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "codemate_rejected_total",
	Help: "The number of requests rejected before reaching a worker",
}, []string{labelReason})

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		operationCounters,
		operationDuration,
		testCounters,
		rejectedCounters,
	)
}

// Observe records one finished operation.
func Observe(operation, outcome string, elapsed time.Duration) {
	operationCounters.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func ObserveTests(passing, failing int) {
	testCounters.WithLabelValues(OutcomeSuccess).Add(float64(passing))
	testCounters.WithLabelValues(OutcomeFailure).Add(float64(failing))
}

// Reject counts a request turned away by rate limiting, sanitization or a
// full queue.
func Reject(reason string) {
	rejectedCounters.WithLabelValues(reason).Inc()
}
