// Package metrics : Prometheus collectors. nil *Metrics 에 대한 호출은 전부 no-op
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HistoryFetchDur    prometheus.Histogram
	HistoryFetchErrors prometheus.Counter

	StreamMessages     prometheus.Counter
	StreamDecodeErrors prometheus.Counter
	StreamReconnects   prometheus.Counter
	StreamState        prometheus.Gauge

	SeriesLength        prometheus.Gauge
	IndicatorComputeDur prometheus.Histogram

	RenderErrors      prometheus.Counter
	PersistenceErrors *prometheus.CounterVec // labels: op
}

// New : 전용 registry 에 등록 (테스트마다 새로 만들어도 중복 등록 없음)
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HistoryFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "klinechart_history_fetch_duration_seconds",
			Help:    "REST /klines history load latency",
			Buckets: prometheus.DefBuckets,
		}),
		HistoryFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinechart_history_fetch_errors_total",
			Help: "History loads that ended with a FetchError",
		}),
		StreamMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinechart_stream_messages_total",
			Help: "Messages read from the kline stream",
		}),
		StreamDecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinechart_stream_decode_errors_total",
			Help: "Stream messages dropped because they could not be decoded",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinechart_stream_reconnects_total",
			Help: "Reconnects scheduled after a transport failure",
		}),
		StreamState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "klinechart_stream_state",
			Help: "0=disconnected 1=connecting 2=connected 3=errored 4=closed 5=backoff",
		}),
		SeriesLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "klinechart_series_length",
			Help: "Candles currently held by the chart",
		}),
		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "klinechart_indicator_compute_duration_seconds",
			Help:    "Full indicator recompute latency",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		RenderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinechart_render_errors_total",
			Help: "Chart panes that failed to render",
		}),
		PersistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinechart_persistence_errors_total",
			Help: "Preference store failures",
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HistoryFetchDur,
		m.HistoryFetchErrors,
		m.StreamMessages,
		m.StreamDecodeErrors,
		m.StreamReconnects,
		m.StreamState,
		m.SeriesLength,
		m.IndicatorComputeDur,
		m.RenderErrors,
		m.PersistenceErrors,
	)
	return m
}

// Handler : /metrics 용
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveFetch(start time.Time, err error) {
	if m == nil {
		return
	}
	m.HistoryFetchDur.Observe(time.Since(start).Seconds())
	if err != nil {
		m.HistoryFetchErrors.Inc()
	}
}

func (m *Metrics) StreamMessage() {
	if m == nil {
		return
	}
	m.StreamMessages.Inc()
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.StreamDecodeErrors.Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.StreamReconnects.Inc()
}

func (m *Metrics) SetStreamState(state int) {
	if m == nil {
		return
	}
	m.StreamState.Set(float64(state))
}

func (m *Metrics) SetSeriesLength(n int) {
	if m == nil {
		return
	}
	m.SeriesLength.Set(float64(n))
}

func (m *Metrics) ObserveIndicators(start time.Time) {
	if m == nil {
		return
	}
	m.IndicatorComputeDur.Observe(time.Since(start).Seconds())
}

func (m *Metrics) RenderError() {
	if m == nil {
		return
	}
	m.RenderErrors.Inc()
}

func (m *Metrics) PersistenceError(op string) {
	if m == nil {
		return
	}
	m.PersistenceErrors.WithLabelValues(op).Inc()
}
