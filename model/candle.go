package model

import (
	"fmt"
	"math"
	"time"
)

// Candle : OHLCV 한 개. OpenTime(ms)이 시리즈 내 유일 키
type Candle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`

	// 봉 구간이 끝나서 더 이상 바뀌지 않는 경우 true
	IsFinal bool `json:"isFinal"`
}

// Time : OpenTime(ms) -> time.Time
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime)
}

// Validate : 가격/거래량은 유한한 음이 아닌 수여야 함
func (c Candle) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"open", c.Open},
		{"high", c.High},
		{"low", c.Low},
		{"close", c.Close},
		{"volume", c.Volume},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("candle %d: %s is not finite", c.OpenTime, f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("candle %d: %s is negative (%v)", c.OpenTime, f.name, f.value)
		}
	}
	return nil
}

// Bullish : 종가 >= 시가 (거래량 막대 색 결정용)
func (c Candle) Bullish() bool {
	return c.Close >= c.Open
}

// Closes : 종가만 뽑아서 Series로
func Closes(candles []Candle) Series[float64] {
	out := make(Series[float64], len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes : 거래량만 뽑아서 Series로
func Volumes(candles []Candle) Series[float64] {
	out := make(Series[float64], len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// OpenTimes : x축(time)용
func OpenTimes(candles []Candle) []int64 {
	out := make([]int64, len(candles))
	for i, c := range candles {
		out[i] = c.OpenTime
	}
	return out
}

// KlineEvent : Binance `<symbol>@kline_<interval>` 스트림 메시지
type KlineEvent struct {
	EventType string   `json:"e"`
	EventTime int64    `json:"E"`
	Symbol    string   `json:"s"`
	Kline     *WSKline `json:"k"`
}

// WSKline : KlineEvent 안의 `k` 객체. 가격/거래량은 문자열(decimal)로 온다
type WSKline struct {
	StartTime int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	IsFinal   bool   `json:"x"`
}
