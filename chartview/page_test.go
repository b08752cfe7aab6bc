package chartview

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"klinechart/chart"
	"klinechart/indicator"
	"klinechart/metrics"
	"klinechart/model"
	"klinechart/utils/log"

	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetOutput(io.Discard)
}

func snapshot(t *testing.T, n int) chart.Snapshot {
	t.Helper()
	c, err := chart.NewController(model.DefaultMarket(), 500, model.DefaultIndicatorConfigs())
	require.NoError(t, err)
	candles := make([]model.Candle, n)
	for i := range candles {
		price := 100 + float64(i%9)
		candles[i] = model.Candle{OpenTime: int64(i+1) * 900_000, Open: price - 1, High: price + 2, Low: price - 2, Close: price, Volume: float64(10 + i), IsFinal: true}
	}
	require.NoError(t, c.LoadHistory(candles))
	return c.Snapshot()
}

func TestRenderAllPanes(t *testing.T) {
	var buf bytes.Buffer
	errs, err := NewRenderer("klinechart", nil).Render(&buf, snapshot(t, 60))
	require.NoError(t, err)
	assert.Empty(t, errs)

	out := buf.String()
	assert.Contains(t, out, "BTCUSDT@15m")
	assert.Contains(t, out, "RSI (14)")
	assert.Contains(t, out, "Volume")
	assert.NotContains(t, out, "render-error")
}

func TestCandlePaneFollowsChartType(t *testing.T) {
	tests := []struct {
		chartType model.ChartType
		want      string
		area      bool
	}{
		{model.ChartTypeCandle, types.ChartKline, false},
		{model.ChartTypeLine, types.ChartLine, false},
		{model.ChartTypeArea, types.ChartLine, true},
		{model.ChartTypeBar, types.ChartBar, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.chartType), func(t *testing.T) {
			snap := snapshot(t, 40)
			snap.ChartType = tt.chartType

			built := buildCandlePane(snap)
			require.Len(t, built, 1)
			assert.Equal(t, tt.want, built[0].Type())

			var buf bytes.Buffer
			errs, err := NewRenderer("klinechart", nil).Render(&buf, snap)
			require.NoError(t, err)
			assert.Empty(t, errs)
			if tt.area {
				assert.Contains(t, buf.String(), "areaStyle")
			} else {
				assert.NotContains(t, buf.String(), "areaStyle")
			}
		})
	}
}

func TestCloseData(t *testing.T) {
	candles := []model.Candle{
		{OpenTime: 1, Open: 10, Close: 12},
		{OpenTime: 2, Open: 12, Close: 11},
	}
	line := closeData(candles)
	assert.Equal(t, 12.0, line[0].Value)
	assert.Equal(t, 11.0, line[1].Value)

	bars := closeBarData(candles)
	assert.Equal(t, upColor, bars[0].ItemStyle.Color)
	assert.Equal(t, downColor, bars[1].ItemStyle.Color)
}

func TestRenderEmptySeries(t *testing.T) {
	var buf bytes.Buffer
	errs, err := NewRenderer("klinechart", nil).Render(&buf, snapshot(t, 0))
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.NotEmpty(t, buf.String())
}

func TestRenderContainsPanic(t *testing.T) {
	m := metrics.New()
	r := NewRenderer("klinechart", m).WithPane(Pane{
		Name: "broken",
		Build: func(chart.Snapshot) []components.Charter {
			panic(errors.New("series length mismatch"))
		},
	}).WithPane(Pane{
		Name: "strings",
		Build: func(chart.Snapshot) []components.Charter {
			panic("boom")
		},
	})

	var buf bytes.Buffer
	errs, err := r.Render(&buf, snapshot(t, 30))
	require.NoError(t, err)
	require.Len(t, errs, 2)

	var rerr *model.RenderError
	require.ErrorAs(t, errs[0], &rerr)
	assert.Equal(t, "broken", rerr.Pane)
	assert.Contains(t, errs[1].Error(), "boom")

	out := buf.String()
	assert.Contains(t, out, "render-error")
	assert.Contains(t, out, "series length mismatch")
	assert.Contains(t, out, "RSI (14)")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RenderErrors))
}

func TestWithOpacity(t *testing.T) {
	assert.Equal(t, "rgba(0,177,93,0.5)", withOpacity("#00b15d", 0.5))
	assert.Equal(t, "#00b15d", withOpacity("#00b15d", 1))
	assert.Equal(t, "red", withOpacity("red", 0.5))
}

func TestLineDataSkipsWarmup(t *testing.T) {
	data := lineData(indicator.IndicatorMetric{Values: model.Series[float64]{50, 50, 61.5}, Warmup: 2})
	require.Len(t, data, 3)
	assert.Equal(t, missing, data[0].Value)
	assert.Equal(t, missing, data[1].Value)
	assert.Equal(t, 61.5, data[2].Value)
}
