package chartview

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"klinechart/indicator"
	"klinechart/model"
	"klinechart/utils/tools"

	"github.com/go-echarts/go-echarts/v2/opts"
)

// missing : echarts 가 건너뛰는 값 (warm-up 구간)
const missing = "-"

// timeAxis : 봉 간격에 맞춘 x축 라벨
func timeAxis(candles []model.Candle, interval string) []string {
	layout := tools.AxisTimeLayout(interval)
	out := make([]string, len(candles))
	for i, c := range candles {
		out[i] = c.Time().UTC().Format(layout)
	}
	return out
}

func lineData(m indicator.IndicatorMetric) []opts.LineData {
	out := make([]opts.LineData, len(m.Values))
	for i, v := range m.Values {
		if i < m.Warmup {
			out[i] = opts.LineData{Value: missing}
			continue
		}
		out[i] = opts.LineData{Value: v}
	}
	return out
}

// closeData : line / area 차트용 종가
func closeData(candles []model.Candle) []opts.LineData {
	out := make([]opts.LineData, len(candles))
	for i, c := range candles {
		out[i] = opts.LineData{Value: c.Close}
	}
	return out
}

// closeBarData : bar 차트용 종가. 상승/하락 색
func closeBarData(candles []model.Candle) []opts.BarData {
	out := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := downColor
		if c.Bullish() {
			color = upColor
		}
		out[i] = opts.BarData{Value: c.Close, ItemStyle: &opts.ItemStyle{Color: color}}
	}
	return out
}

// levelData : 수평선 하나를 시리즈 길이만큼
func levelData(value float64, n int) []opts.LineData {
	out := make([]opts.LineData, n)
	for i := range out {
		out[i] = opts.LineData{Value: value}
	}
	return out
}

func barData(m indicator.IndicatorMetric) []opts.BarData {
	out := make([]opts.BarData, len(m.Values))
	for i, v := range m.Values {
		color := m.Color
		if i < len(m.Colors) && m.Colors[i] != "" {
			color = m.Colors[i]
		}
		out[i] = opts.BarData{Value: v, ItemStyle: &opts.ItemStyle{Color: withOpacity(color, m.Opacity)}}
	}
	return out
}

// withOpacity : "#rrggbb" + opacity -> "rgba(r,g,b,a)". 해석 못 하면 원래 색
func withOpacity(hex string, opacity float64) string {
	if opacity <= 0 || opacity >= 1 {
		return hex
	}
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return hex
	}
	rgb, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return hex
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", rgb>>16&0xff, rgb>>8&0xff, rgb&0xff,
		strconv.FormatFloat(opacity, 'f', -1, 64))
}

func lastUpdate(candles []model.Candle) string {
	if len(candles) == 0 {
		return "no data"
	}
	return candles[len(candles)-1].Time().UTC().Format(time.RFC3339)
}
