package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	req := require.New(t)
	m := New()

	m.ObserveAppend(time.Now(), nil)
	m.ObserveAppend(time.Now(), errors.New("disk full"))
	m.RecordEvent("send", nil)
	m.RecordDelivery(nil)
	m.RecordDelivery(errors.New("gone"))
	m.RecordDelivery(errors.New("gone"))
	m.SetConnections(3)

	req.Equal(1.0, testutil.ToFloat64(m.StoreAppends.WithLabelValues("ok")))
	req.Equal(1.0, testutil.ToFloat64(m.StoreAppends.WithLabelValues("error")))
	req.Equal(1.0, testutil.ToFloat64(m.RelayEvents.WithLabelValues("send", "ok")))
	req.Equal(1.0, testutil.ToFloat64(m.PresenceDeliveries.WithLabelValues("ok")))
	req.Equal(2.0, testutil.ToFloat64(m.PresenceDeliveries.WithLabelValues("failed")))
	req.Equal(3.0, testutil.ToFloat64(m.PresenceConnections))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveAppend(time.Now(), nil)
		m.RecordEvent("join", nil)
		m.RecordDelivery(nil)
		m.SetConnections(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	req := require.New(t)
	m := New()
	m.SetConnections(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "chatrelay_presence_connections 2")
}
