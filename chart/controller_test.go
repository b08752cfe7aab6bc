package chart

import (
	"io"
	"sync"
	"testing"

	"klinechart/model"
	"klinechart/utils/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetOutput(io.Discard)
}

func candle(t int64, close float64, final bool) model.Candle {
	return model.Candle{OpenTime: t, Open: close - 1, High: close + 1, Low: close - 2, Close: close, Volume: 10, IsFinal: final}
}

func history(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = candle(int64(i+1)*60_000, 100+float64(i%7), true)
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func newTestController(t *testing.T, maxPoints int) (*Controller, *eventLog) {
	t.Helper()
	c, err := NewController(model.DefaultMarket(), maxPoints, model.DefaultIndicatorConfigs())
	require.NoError(t, err)
	events := &eventLog{}
	c.Subscribe(events.listen)
	return c, events
}

func TestNewControllerValidates(t *testing.T) {
	_, err := NewController(model.DefaultMarket(), 0, model.DefaultIndicatorConfigs())
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	bad := model.DefaultIndicatorConfigs()
	bad.RSI[0].Period = 0
	_, err = NewController(model.DefaultMarket(), 10, bad)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestLoadHistoryComputesIndicators(t *testing.T) {
	c, events := newTestController(t, 500)
	require.NoError(t, c.LoadHistory(history(50)))

	snap := c.Snapshot()
	assert.Len(t, snap.Candles, 50)
	require.Len(t, snap.Indicators, 2)
	for _, ind := range snap.Indicators {
		for _, m := range ind.Metrics {
			assert.Len(t, m.Values, 50, ind.ID)
		}
	}
	assert.Equal(t, []string{"rsi-default", "volume-default"}, snap.Registered)
	assert.Equal(t, []EventType{EventReset, EventIndicators}, events.types())
}

func TestOnCandleMergesAndRecomputes(t *testing.T) {
	c, events := newTestController(t, 30)
	require.NoError(t, c.LoadHistory(history(30)))
	before := c.Snapshot()

	last := before.Candles[len(before.Candles)-1]
	require.NoError(t, c.OnCandle(candle(last.OpenTime, 150, false)))
	snap := c.Snapshot()
	assert.Len(t, snap.Candles, 30)
	assert.Equal(t, 150.0, snap.Candles[29].Close)
	assert.NotEqual(t, before.Indicators[0].Metrics[0].Values.Last(0), snap.Indicators[0].Metrics[0].Values.Last(0))

	require.NoError(t, c.OnCandle(candle(last.OpenTime+60_000, 151, false)))
	snap = c.Snapshot()
	assert.Len(t, snap.Candles, 30)
	assert.Equal(t, last.OpenTime+60_000, snap.Candles[29].OpenTime)
	assert.Equal(t, before.Candles[1].OpenTime, snap.Candles[0].OpenTime)

	types := events.types()
	assert.Equal(t, []EventType{EventCandle, EventIndicators, EventCandle, EventIndicators}, types[len(types)-4:])
}

func TestOnCandleRejectsLateAndInvalid(t *testing.T) {
	c, _ := newTestController(t, 100)
	require.NoError(t, c.LoadHistory(history(10)))

	err := c.OnCandle(candle(60_000*5, 1, false))
	assert.ErrorIs(t, err, model.ErrOutOfOrder)
	assert.Len(t, c.Snapshot().Candles, 10)

	bad := candle(60_000*11, 1, false)
	bad.Volume = -1
	assert.Error(t, c.OnCandle(bad))
	assert.Len(t, c.Snapshot().Candles, 10)
}

func TestUpsertRSI(t *testing.T) {
	var saved []model.IndicatorConfigs
	c, err := NewController(model.DefaultMarket(), 100, model.DefaultIndicatorConfigs(),
		WithConfigHook(func(cfgs model.IndicatorConfigs) { saved = append(saved, cfgs) }))
	require.NoError(t, err)
	require.NoError(t, c.LoadHistory(history(40)))

	added, err := c.UpsertRSI(model.RSIConfig{Show: true, Period: 7, Overbought: 80, Oversold: 20})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Len(t, c.Configs().RSI, 2)
	assert.Len(t, c.Snapshot().Indicators, 3)

	added.Period = 21
	_, err = c.UpsertRSI(added)
	require.NoError(t, err)
	cfgs := c.Configs()
	require.Len(t, cfgs.RSI, 2)
	assert.Equal(t, 21, cfgs.RSI[1].Period)

	_, err = c.UpsertRSI(model.RSIConfig{ID: "volume-default", Period: 14, Overbought: 70, Oversold: 30})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	_, err = c.UpsertRSI(model.RSIConfig{Period: 0, Overbought: 70, Oversold: 30})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	assert.Len(t, saved, 2)
}

func TestUpsertVolume(t *testing.T) {
	c, _ := newTestController(t, 100)
	vol := model.DefaultVolumeConfig()
	vol.Opacity = 0.8
	vol.MovingAverages[1].Show = true
	_, err := c.UpsertVolume(vol)
	require.NoError(t, err)

	cfgs := c.Configs()
	require.Len(t, cfgs.Volume, 1)
	assert.Equal(t, 0.8, cfgs.Volume[0].Opacity)
	assert.True(t, cfgs.Volume[0].MovingAverages[1].Show)
}

func TestToggleAndRemoveIndicator(t *testing.T) {
	c, _ := newTestController(t, 100)
	require.NoError(t, c.LoadHistory(history(20)))

	shown, err := c.ToggleIndicator("rsi-default")
	require.NoError(t, err)
	assert.False(t, shown)
	snap := c.Snapshot()
	assert.Equal(t, []string{"volume-default"}, snap.Registered)
	require.Len(t, snap.Indicators, 1)

	shown, err = c.ToggleIndicator("rsi-default")
	require.NoError(t, err)
	assert.True(t, shown)
	assert.Equal(t, []string{"volume-default", "rsi-default"}, c.Snapshot().Registered)

	require.NoError(t, c.RemoveIndicator("volume-default"))
	assert.Empty(t, c.Configs().Volume)
	assert.Equal(t, []string{"rsi-default"}, c.Snapshot().Registered)

	assert.ErrorIs(t, c.RemoveIndicator("volume-default"), ErrIndicatorNotFound)
	_, err = c.ToggleIndicator("nope")
	assert.ErrorIs(t, err, ErrIndicatorNotFound)
}

func TestSetConfigs(t *testing.T) {
	c, events := newTestController(t, 100)
	require.NoError(t, c.SetConfigs(model.IndicatorConfigs{}))
	assert.Empty(t, c.Snapshot().Indicators)
	assert.Empty(t, c.Snapshot().Registered)
	assert.Contains(t, events.types(), EventIndicators)

	bad := model.DefaultIndicatorConfigs()
	bad.Volume[0].Opacity = 3
	assert.ErrorIs(t, c.SetConfigs(bad), model.ErrInvalidConfig)
	assert.Empty(t, c.Configs().RSI)
}

func TestStatusAndReset(t *testing.T) {
	c, events := newTestController(t, 100)
	require.NoError(t, c.LoadHistory(history(20)))

	c.SetStatus(Status{Connection: "errored", Message: "Connection lost - reconnecting..."})
	snap := c.Snapshot()
	assert.Equal(t, "errored", snap.Status.Connection)
	assert.False(t, snap.Status.At.IsZero())

	c.Reset(model.Market{Symbol: "ethusdt", Interval: "1h", Limit: 500})
	snap = c.Snapshot()
	assert.Empty(t, snap.Candles)
	assert.Equal(t, "ETHUSDT", snap.Market.Symbol)
	// 빈 시리즈여도 보이는 지표는 길이 0 으로 남는다
	require.Len(t, snap.Indicators, 2)
	assert.Empty(t, snap.Indicators[0].Metrics[0].Values)

	types := events.types()
	assert.Contains(t, types, EventStatus)
	assert.Equal(t, EventReset, types[len(types)-2])
}

func TestChartType(t *testing.T) {
	var saved []model.ChartType
	c, err := NewController(model.DefaultMarket(), 100, model.DefaultIndicatorConfigs(),
		WithChartTypeHook(func(ct model.ChartType) { saved = append(saved, ct) }))
	require.NoError(t, err)
	events := &eventLog{}
	c.Subscribe(events.listen)
	assert.Equal(t, model.ChartTypeCandle, c.Snapshot().ChartType)

	require.NoError(t, c.SetChartType(model.ChartTypeArea))
	assert.Equal(t, model.ChartTypeArea, c.ChartType())
	// 같은 값은 저장/이벤트 없음
	require.NoError(t, c.SetChartType(model.ChartTypeArea))
	assert.ErrorIs(t, c.SetChartType("renko"), model.ErrInvalidConfig)

	assert.Equal(t, []model.ChartType{model.ChartTypeArea}, saved)
	assert.Equal(t, []EventType{EventChartType}, events.types())

	// market 전환 후에도 유지
	c.Reset(model.Market{Symbol: "ETHUSDT", Interval: "1h", Limit: 10})
	assert.Equal(t, model.ChartTypeArea, c.Snapshot().ChartType)
}

func TestNewControllerChartType(t *testing.T) {
	c, err := NewController(model.DefaultMarket(), 10, model.DefaultIndicatorConfigs(), WithChartType(model.ChartTypeBar))
	require.NoError(t, err)
	assert.Equal(t, model.ChartTypeBar, c.ChartType())

	_, err = NewController(model.DefaultMarket(), 10, model.DefaultIndicatorConfigs(), WithChartType("renko"))
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestUnsubscribe(t *testing.T) {
	c, err := NewController(model.DefaultMarket(), 100, model.DefaultIndicatorConfigs())
	require.NoError(t, err)
	events := &eventLog{}
	unsubscribe := c.Subscribe(events.listen)
	c.SetStatus(Status{Connection: "connected"})
	unsubscribe()
	c.SetStatus(Status{Connection: "errored"})
	assert.Len(t, events.types(), 1)
}

func TestConcurrentCandles(t *testing.T) {
	c, _ := newTestController(t, 50)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = c.OnCandle(candle(int64(i)*60_000, float64(100+g), i%2 == 0))
			}
		}(g)
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.LessOrEqual(t, len(snap.Candles), 50)
	for i := 1; i < len(snap.Candles); i++ {
		assert.Less(t, snap.Candles[i-1].OpenTime, snap.Candles[i].OpenTime)
	}
}
