package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	before := testutil.ToFloat64(transitions.WithLabelValues("sitter", "confirmed"))
	IncTransition("sitter", "confirmed")
	assert.Equal(t, before+1, testutil.ToFloat64(transitions.WithLabelValues("sitter", "confirmed")))

	assert.NotPanics(t, func() {
		ObserveGateway("update_status", "ok", 150*time.Millisecond)
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(gatewayRequests.WithLabelValues("update_status", "ok")))
}
