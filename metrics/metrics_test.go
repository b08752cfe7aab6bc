package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.ObserveFetch(time.Now(), nil)
	m.ObserveFetch(time.Now(), errors.New("boom"))
	m.StreamMessage()
	m.StreamMessage()
	m.DecodeError()
	m.Reconnect()
	m.SetStreamState(2)
	m.SetSeriesLength(500)
	m.PersistenceError("put")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryFetchErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StreamMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamDecodeErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamReconnects))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StreamState))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.SeriesLength))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistenceErrors.WithLabelValues("put")))

	// 두 번째 인스턴스도 등록 충돌 없이 생성
	require.NotPanics(t, func() { New() })
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch(time.Now(), nil)
		m.StreamMessage()
		m.DecodeError()
		m.Reconnect()
		m.SetStreamState(1)
		m.SetSeriesLength(1)
		m.ObserveIndicators(time.Now())
		m.RenderError()
		m.PersistenceError("get")
	})
	assert.Nil(t, m.Registry())
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.StreamMessage()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "klinechart_stream_messages_total 1")
}
