package indicator

import (
	"math"
	"math/rand"
	"testing"

	"klinechart/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIWarmupAndBounds(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	closes := make([]float64, 300)
	price := 100.0
	for i := range closes {
		price += r.Float64()*4 - 2
		if price < 1 {
			price = 1
		}
		closes[i] = price
	}

	for _, period := range []int{1, 2, 14, len(closes) - 1} {
		for _, rsi := range []model.Series[float64]{RSI(closes, period), WilderRSI(closes, period)} {
			require.Len(t, rsi, len(closes))
			for i := 0; i < period; i++ {
				assert.Equal(t, RSIWarmup, rsi[i], "period %d index %d", period, i)
			}
			assertPercent(t, rsi, period)
		}
	}
}

func TestRSIExtremeMagnitudes(t *testing.T) {
	inputs := [][]float64{
		{0, math.MaxFloat64, 0, math.MaxFloat64, 0},
		{math.MaxFloat64, 0, math.MaxFloat64, 0, math.MaxFloat64, 0},
		{math.SmallestNonzeroFloat64, math.MaxFloat64, math.MaxFloat64 / 2, math.MaxFloat64, 1},
	}
	for _, closes := range inputs {
		for _, period := range []int{1, 2, 4, len(closes) - 1} {
			assertPercent(t, RSI(closes, period), period)
			assertPercent(t, WilderRSI(closes, period), period)
		}
	}

	// 같은 크기의 등락이 반복되면 중립
	rsi := RSI([]float64{0, math.MaxFloat64, 0, math.MaxFloat64, 0}, 4)
	assert.InDelta(t, 50.0, rsi[4], 1e-9)
}

func assertPercent(t *testing.T, rsi model.Series[float64], period int) {
	t.Helper()
	for i, v := range rsi {
		assert.False(t, math.IsNaN(v), "period %d index %d is NaN", period, i)
		assert.GreaterOrEqual(t, v, 0.0, "period %d index %d", period, i)
		assert.LessOrEqual(t, v, 100.0, "period %d index %d", period, i)
	}
}

func TestRSIMonotonicIncreaseIs100(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	rsi := RSI(closes, 14)
	for i := 14; i < len(rsi); i++ {
		assert.Equal(t, 100.0, rsi[i])
	}
	wilder := WilderRSI(closes, 14)
	assert.InDelta(t, 100.0, wilder.Last(0), 1e-9)
}

func TestRSIMonotonicDecreaseIsZero(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(200 - i)
	}
	rsi := RSI(closes, 5)
	assert.Equal(t, 0.0, rsi.Last(0))
}

func TestRSIKnownValue(t *testing.T) {
	// 최근 2개 변화: +2, -1 -> avgGain 1, avgLoss 0.5 -> RS 2 -> 66.67
	rsi := RSI([]float64{10, 12, 11}, 2)
	assert.Equal(t, []float64{50, 50}, []float64(rsi[:2]))
	assert.InDelta(t, 66.6666, rsi[2], 1e-3)
}

func TestRSIShortInput(t *testing.T) {
	assert.Empty(t, RSI(nil, 14))
	assert.Equal(t, []float64{50, 50, 50}, []float64(RSI([]float64{1, 2, 3}, 14)))
	assert.Equal(t, []float64{50, 50, 50}, []float64(WilderRSI([]float64{1, 2, 3}, 14)))
	assert.Len(t, WilderRSI([]float64{1, 2, 3}, 1), 3)
}

func TestSMA(t *testing.T) {
	sma := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.Equal(t, []float64{0, 0, 2, 3, 4}, []float64(sma))

	constant := make([]float64, 50)
	for i := range constant {
		constant[i] = 42.5
	}
	for i, v := range SMA(constant, 20) {
		if i < 19 {
			assert.Equal(t, 0.0, v)
			continue
		}
		assert.InDelta(t, 42.5, v, 1e-9)
	}
	assert.Equal(t, []float64{0, 0}, []float64(SMA([]float64{1, 2}, 0)))
}

func TestEMA(t *testing.T) {
	constant := []float64{5, 5, 5, 5, 5, 5}
	ema := EMA(constant, 3)
	assert.Equal(t, 0.0, ema[0])
	assert.Equal(t, 0.0, ema[1])
	for i := 2; i < len(ema); i++ {
		assert.InDelta(t, 5.0, ema[i], 1e-9)
	}

	assert.Equal(t, []float64{0, 0}, []float64(EMA([]float64{1, 2}, 3)))
	assert.Equal(t, []float64{1, 2}, []float64(EMA([]float64{1, 2}, 1)))
}

func testCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		open := float64(100 + i)
		closePrice := open + 1
		if i%2 == 1 {
			closePrice = open - 1
		}
		out[i] = model.Candle{
			OpenTime: int64(i+1) * 60_000,
			Open:     open, High: open + 2, Low: open - 2, Close: closePrice,
			Volume: float64(10 + i), IsFinal: true,
		}
	}
	return out
}

func TestComputeRSI(t *testing.T) {
	candles := testCandles(40)
	cfg := model.DefaultRSIConfig()
	ind := ComputeRSI(candles, cfg)

	assert.Equal(t, cfg.ID, ind.ID)
	assert.Equal(t, model.KindRSI, ind.Kind)
	assert.Equal(t, 14, ind.Warmup)
	require.Len(t, ind.Metrics, 1)
	assert.Len(t, ind.Metrics[0].Values, len(candles))
	assert.Equal(t, model.OpenTimes(candles), ind.Time)
	require.Len(t, ind.Levels, 2)
	assert.Equal(t, 70.0, ind.Levels[0].Value)
	assert.Equal(t, 30.0, ind.Levels[1].Value)

	cfg.Smoothing = model.SmoothingWilder
	wilder := ComputeRSI(candles, cfg)
	assert.Len(t, wilder.Metrics[0].Values, len(candles))
}

func TestComputeVolume(t *testing.T) {
	candles := testCandles(60)
	cfg := model.DefaultVolumeConfig()
	ind := ComputeVolume(candles, cfg)

	assert.Equal(t, model.KindVolume, ind.Kind)
	// MA50 은 숨김
	require.Len(t, ind.Metrics, 2)
	bars := ind.Metrics[0]
	assert.Equal(t, StyleBar, bars.Style)
	assert.Equal(t, cfg.UpColor, bars.Colors[0])
	assert.Equal(t, cfg.DownColor, bars.Colors[1])
	assert.Equal(t, 0.5, bars.Opacity)

	ma := ind.Metrics[1]
	assert.Equal(t, "MA20", ma.Name)
	assert.Equal(t, 19, ma.Warmup)
	assert.InDelta(t, (10.0+29.0)/2, ma.Values[19], 1e-9)

	cfg.MovingAverages[1].Show = true
	cfg.MovingAverages[1].Type = model.MATypeEMA
	ind = ComputeVolume(candles, cfg)
	require.Len(t, ind.Metrics, 3)
	assert.Equal(t, "EMA50", ind.Metrics[2].Name)
}

func TestComputeAllSkipsHidden(t *testing.T) {
	candles := testCandles(30)
	cfgs := model.DefaultIndicatorConfigs()
	extra := model.RSIConfig{ID: "rsi-2", Period: 7, Overbought: 80, Oversold: 20}.Normalize()
	extra.Show = false
	cfgs.RSI = append(cfgs.RSI, extra)

	all := ComputeAll(candles, cfgs)
	require.Len(t, all, 2)
	assert.Equal(t, "rsi-default", all[0].ID)
	assert.Equal(t, "volume-default", all[1].ID)

	assert.Empty(t, ComputeAll(candles, model.IndicatorConfigs{}))
}
