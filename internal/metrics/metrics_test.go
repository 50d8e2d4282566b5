package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCounters(t *testing.T) {
	Register()
	Register()

	c := transitions.WithLabelValues("confirm", "PAYMENT_NOT_COMPLETED")
	before := counterValue(t, c)
	IncTransition("confirm", "PAYMENT_NOT_COMPLETED")
	assert.Equal(t, before+1, counterValue(t, c))

	c = autoCompleteBookings.WithLabelValues("completed")
	before = counterValue(t, c)
	AddAutoCompleteBookings("completed", 3)
	AddAutoCompleteBookings("completed", 0)
	assert.Equal(t, before+3, counterValue(t, c))
}
