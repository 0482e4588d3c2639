package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")

	m.BookingOutcome("booked")
	m.BookingOutcome("booked")
	m.BookingOutcome("slot_taken")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BookingOutcomes.WithLabelValues("booked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingOutcomes.WithLabelValues("slot_taken")))
}

func TestCacheAndHTTP(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")

	m.CacheResult(true)
	m.CacheResult(false)
	m.CacheResult(false)
	m.ObserveHTTP(http.MethodPost, "/api/v1/appointments", http.StatusConflict, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AvailabilityCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AvailabilityCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/v1/appointments", "4xx")))
}

func TestRegistriesAreIndependent(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop()
		Nop()
	})
}
