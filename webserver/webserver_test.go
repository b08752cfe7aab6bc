package webserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"klinechart/chart"
	"klinechart/chartview"
	"klinechart/metrics"
	"klinechart/model"
	"klinechart/store"
	"klinechart/utils/fiberhelper/response"
	"klinechart/utils/json"
	"klinechart/utils/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetOutput(io.Discard)
}

type fakeSwitcher struct {
	controller *chart.Controller
	calls      []model.Market
	err        error
}

func (f *fakeSwitcher) SwitchMarket(_ context.Context, market model.Market) error {
	f.calls = append(f.calls, market)
	if f.err != nil {
		return f.err
	}
	f.controller.Reset(market)
	return nil
}

type fixture struct {
	ws         *WebServer
	controller *chart.Controller
	switcher   *fakeSwitcher
	prefs      *store.Preferences
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	m := metrics.New()
	prefs := store.NewPreferences(store.NewMemoryStore(), m)
	c, err := chart.NewController(model.DefaultMarket(), 100, model.DefaultIndicatorConfigs(),
		chart.WithMetrics(m),
		chart.WithChartTypeHook(func(ct model.ChartType) { _ = prefs.SaveChartType(context.Background(), ct) }),
	)
	require.NoError(t, err)
	candles := make([]model.Candle, 30)
	for i := range candles {
		candles[i] = model.Candle{OpenTime: int64(i+1) * 900_000, Open: 10, High: 12, Low: 9, Close: 11 + float64(i%3), Volume: 5, IsFinal: true}
	}
	require.NoError(t, c.LoadHistory(candles))

	sw := &fakeSwitcher{controller: c}
	ws := NewWebServer(":0", c, sw, prefs, chartview.NewRenderer("klinechart", m), m)
	t.Cleanup(ws.Close)
	return fixture{ws: ws, controller: c, switcher: sw, prefs: prefs}
}

func (f fixture) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.ws.App().Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestCandlesAndIndicators(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/candles", "")
	require.Equal(t, http.StatusOK, status)
	var candles struct {
		Market  model.Market   `json:"market"`
		Candles []model.Candle `json:"candles"`
	}
	require.NoError(t, json.Unmarshal(body, &candles))
	assert.Equal(t, "BTCUSDT", candles.Market.Symbol)
	assert.Len(t, candles.Candles, 30)

	status, body = f.do(t, http.MethodGet, "/api/indicators", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"registered":["rsi-default","volume-default"]`)
}

func TestIndicatorConfigRoutes(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/indicators/rsi", `{"period":7,"overbought":80,"oversold":20,"show":true}`)
	require.Equal(t, http.StatusOK, status, string(body))
	var created model.RSIConfig
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Len(t, f.controller.Configs().RSI, 2)

	status, body = f.do(t, http.MethodPost, "/api/indicators/rsi", `{"period":7,"overbought":20,"oversold":80}`)
	assert.Equal(t, http.StatusBadRequest, status)
	var errResp response.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "invalid_config", errResp.Code)

	status, body = f.do(t, http.MethodPost, "/api/indicators/"+created.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"show":false`)

	status, _ = f.do(t, http.MethodDelete, "/api/indicators/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = f.do(t, http.MethodDelete, "/api/indicators/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPut, "/api/indicators/config", `{"rsi":[],"volume":[]}`)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, f.controller.Snapshot().Indicators)

	status, _ = f.do(t, http.MethodPut, "/api/indicators/config", `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpsertVolumeRoute(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodPost, "/api/indicators/volume", `{"id":"volume-default","show":true,"opacity":0.9}`)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, 0.9, f.controller.Configs().Volume[0].Opacity)
}

func TestSwitchMarket(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPut, "/api/market", `{"symbol":"ethusdt","interval":"1h"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	require.Len(t, f.switcher.calls, 1)
	assert.Equal(t, 1000, f.switcher.calls[0].Limit)
	assert.Equal(t, "ETHUSDT", f.controller.Market().Symbol)

	f.switcher.err = &model.FetchError{Symbol: "X", Interval: "1h", StatusCode: 400, Err: errors.New("bad symbol")}
	status, _ = f.do(t, http.MethodPut, "/api/market", `{"symbol":"x","interval":"1h"}`)
	assert.Equal(t, http.StatusBadGateway, status)

	status, body = f.do(t, http.MethodGet, "/api/market", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"symbol":"ETHUSDT"`)
}

func TestTimeframeRoutes(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPut, "/api/timeframes/pinned/1m", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"pinned":["1m","15m","1h","4h","1d","1w"]`)

	status, _ = f.do(t, http.MethodDelete, "/api/timeframes/pinned/1w", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"1m", "15m", "1h", "4h", "1d"}, f.prefs.Pinned())

	status, _ = f.do(t, http.MethodPut, "/api/timeframes/pinned/7m", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodGet, "/api/timeframes", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"all":["1m","5m","15m","30m","1h","4h","1d","1w","1M"]`)
}

func TestChartTypeRoutes(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/chart-type", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"chartType":"candle","all":["line","area","bar","candle"]}`, string(body))

	status, body = f.do(t, http.MethodPut, "/api/chart-type", `{"chartType":"area"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"chartType":"area"}`, string(body))
	assert.Equal(t, model.ChartTypeArea, f.controller.ChartType())
	assert.Equal(t, model.ChartTypeArea, f.prefs.ChartType())

	status, body = f.do(t, http.MethodPut, "/api/chart-type", `{"chartType":"renko"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	var errResp response.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "invalid_config", errResp.Code)
	assert.Equal(t, model.ChartTypeArea, f.controller.ChartType())

	status, body = f.do(t, http.MethodGet, "/chart", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), "candlestick")
}

func TestPagesAndMetrics(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "BTCUSDT@15m")

	status, body = f.do(t, http.MethodGet, "/chart", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "echarts")

	status, body = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "klinechart_series_length")

	status, _ = f.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestSSESendsSnapshot(t *testing.T) {
	f := newFixture(t)
	go func() {
		time.Sleep(300 * time.Millisecond)
		f.ws.Close()
	}()

	status, body := f.do(t, http.MethodGet, "/sse", "")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(string(body), "data: "))
	assert.Contains(t, string(body), `"type":"snapshot"`)
}

func TestBrokerPublish(t *testing.T) {
	b := newBroker()
	ch, ok := b.add()
	require.True(t, ok)
	assert.Equal(t, 1, b.count())

	b.publish([]byte("a"))
	assert.Equal(t, []byte("a"), <-ch)

	// 꽉 찬 client 때문에 publish 가 막히지 않는다
	for i := 0; i < sseBufferSize+10; i++ {
		b.publish([]byte("x"))
	}
	assert.Len(t, ch, sseBufferSize)

	b.remove(ch)
	assert.Equal(t, 0, b.count())

	b.close()
	b.close()
	_, ok = b.add()
	assert.False(t, ok)
}

func TestControllerEventsReachBroker(t *testing.T) {
	f := newFixture(t)
	ch, ok := f.ws.broker.add()
	require.True(t, ok)

	f.controller.SetStatus(chart.Status{Connection: "connected", Message: "connected"})
	select {
	case msg := <-ch:
		assert.Contains(t, string(msg), `"type":"status"`)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}
