package model

import (
	"fmt"
	"slices"
	"strings"
)

// AllTimeframes : 화면에서 고를 수 있는 timeframe (표시 순서 그대로)
var AllTimeframes = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w", "1M"}

// DefaultPinnedTimeframes : 저장된 값이 없을 때 상단 바에 고정되는 timeframe
var DefaultPinnedTimeframes = []string{"15m", "1h", "4h", "1d", "1w"}

// Market : 차트가 보고 있는 대상
type Market struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Interval string `json:"interval" yaml:"interval"`
	Limit    int    `json:"limit" yaml:"limit"`
}

func DefaultMarket() Market {
	return Market{Symbol: "BTCUSDT", Interval: "15m", Limit: 1000}
}

// IsTimeframe : AllTimeframes 에 있는지
func IsTimeframe(tf string) bool {
	return slices.Contains(AllTimeframes, tf)
}

// CanonicalTimeframes : 중복/알 수 없는 값 제거 후 AllTimeframes 순서로 정렬
func CanonicalTimeframes(tfs []string) []string {
	out := make([]string, 0, len(tfs))
	for _, tf := range AllTimeframes {
		if slices.Contains(tfs, tf) {
			out = append(out, tf)
		}
	}
	return out
}

func (m Market) String() string {
	return fmt.Sprintf("%s@%s", strings.ToUpper(m.Symbol), m.Interval)
}
