package indicator

import (
	"math"

	"klinechart/model"

	"github.com/markcheno/go-talib"
)

// RSIWarmup : period 이전 구간에 채우는 값 (중립)
const RSIWarmup = 50.0

type MetricStyle string

const (
	StyleBar  MetricStyle = "bar"
	StyleLine MetricStyle = "line"
)

// IndicatorMetric : 하나의 pane 에 그려지는 선/막대 하나
type IndicatorMetric struct {
	Name    string                `json:"name"`
	Color   string                `json:"color"`
	Style   MetricStyle           `json:"style"` // default: line
	Width   float64               `json:"width,omitempty"`
	Opacity float64               `json:"opacity,omitempty"`
	Values  model.Series[float64] `json:"values"`
	// Colors : 막대별 색 (거래량 상승/하락). 비어있으면 Color 사용
	Colors []string `json:"colors,omitempty"`
	// Warmup : 이 index 전까지는 의미 없는 값
	Warmup int `json:"warmup"`
}

// Level : RSI 과매수/과매도 같은 수평선
type Level struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

type ChartIndicator struct {
	ID        string              `json:"id"`
	Kind      model.IndicatorKind `json:"kind"`
	GroupName string              `json:"groupName"`
	Time      []int64             `json:"time"`
	Metrics   []IndicatorMetric   `json:"metrics"`
	Overlay   bool                `json:"overlay"`
	Warmup    int                 `json:"warmup"`
	Levels    []Level             `json:"levels,omitempty"`
}

// RSI : 구간 단순평균 RSI. i < period 는 RSIWarmup, avgLoss 가 0 이면 100
func RSI(closes []float64, period int) model.Series[float64] {
	rsi := make(model.Series[float64], len(closes))
	for i := range rsi {
		rsi[i] = RSIWarmup
	}
	if period < 1 {
		return rsi
	}

	// 변화량과 평균 모두 나눈 뒤 더한다. 유한한 입력이면 합이 Inf 로 넘치지 않는다
	scale := 2 * float64(period)
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i]/scale - closes[i-1]/scale
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	for i := period; i < len(closes); i++ {
		avgGain := 0.0
		avgLoss := 0.0
		for j := i - period + 1; j <= i; j++ {
			avgGain += gains[j]
			avgLoss += losses[j]
		}

		if avgLoss == 0 {
			rsi[i] = 100
		} else {
			rs := avgGain / avgLoss
			rsi[i] = clampPercent(100 - (100 / (1 + rs)))
		}
	}
	return rsi
}

// WilderRSI : TA-Lib Wilder 평활 RSI. warm-up 처리는 RSI 와 동일
func WilderRSI(closes []float64, period int) model.Series[float64] {
	// talib 은 period < 2 를 계산하지 않고, 길이가 period 이하면 index 를 벗어난다
	if period < 2 || len(closes) <= period {
		return RSI(closes, period)
	}
	raw := talib.Rsi(closes, period)
	rsi := make(model.Series[float64], len(closes))
	for i := range rsi {
		if i < period {
			rsi[i] = RSIWarmup
			continue
		}
		rsi[i] = clampPercent(raw[i])
	}
	return rsi
}

// SMA : 최근 period 개의 평균. i < period-1 은 0
func SMA(values []float64, period int) model.Series[float64] {
	sma := make(model.Series[float64], len(values))
	if period < 1 {
		return sma
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			sma[i] = sum / float64(period)
		}
	}
	return sma
}

// EMA : TA-Lib EMA (첫 값은 SMA 시드). i < period-1 은 0
func EMA(values []float64, period int) model.Series[float64] {
	ema := make(model.Series[float64], len(values))
	switch {
	case period < 1 || len(values) < period:
		return ema
	case period == 1:
		copy(ema, values)
		return ema
	}
	copy(ema, talib.Ema(values, period))
	for i := 0; i < period-1; i++ {
		ema[i] = 0
	}
	return ema
}

// clampPercent : [0,100] 으로 자르고 NaN 은 중립값
func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return RSIWarmup
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
