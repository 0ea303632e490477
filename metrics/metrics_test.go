package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(operationCounters.WithLabelValues("execute", OutcomeSuccess))

	Observe("execute", OutcomeSuccess, 3*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(operationCounters.WithLabelValues("execute", OutcomeSuccess)))
}

func TestObserveTests(t *testing.T) {
	passed := testutil.ToFloat64(testCounters.WithLabelValues(OutcomeSuccess))
	failed := testutil.ToFloat64(testCounters.WithLabelValues(OutcomeFailure))

	ObserveTests(3, 1)

	assert.Equal(t, passed+3, testutil.ToFloat64(testCounters.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, failed+1, testutil.ToFloat64(testCounters.WithLabelValues(OutcomeFailure)))
}

func TestRegistryGathers(t *testing.T) {
	Reject("ratelimit")

	families, err := Registry.Gather()
	assert.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["codemate_rejected_total"])
	assert.True(t, names["go_goroutines"])
}
