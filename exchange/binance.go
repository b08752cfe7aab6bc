package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"klinechart/model"
	"klinechart/utils/json"
	"klinechart/utils/log"
	"klinechart/utils/resty"
	"klinechart/utils/tools"

	"github.com/shopspring/decimal"
)

const (
	binanceBaseREST = "https://api.binance.com/api/v3"
	binanceBaseWS   = "wss://stream.binance.com:9443/ws"

	MaxKlineLimit = 1000
)

// 숫자는 json.Number 로 받아서 decimal 로 파싱. kline 필드는 "t"/"T", "e"/"E" 처럼 대소문자로만 구분된다
var klineJSON = json.Strict

type Binance struct {
	restBase   string
	streamBase string
	resty      resty.RestyClient
}

type BinanceOption func(*Binance)

func WithRestBase(base string) BinanceOption {
	return func(b *Binance) {
		b.restBase = strings.TrimRight(base, "/")
	}
}

func WithStreamBase(base string) BinanceOption {
	return func(b *Binance) {
		b.streamBase = strings.TrimRight(base, "/")
	}
}

// WithRestyClient : 테스트에서 mock client 주입
func WithRestyClient(client resty.RestyClient) BinanceOption {
	return func(b *Binance) {
		b.resty = client
	}
}

func NewBinance(opts ...BinanceOption) *Binance {
	b := &Binance{
		restBase:   binanceBaseREST,
		streamBase: binanceBaseWS,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.resty == nil {
		b.resty = resty.NewDefaultRestyClientWithRetryCount(false, 2, 10*time.Second)
	}
	return b
}

// StreamURL : {streamBase}/{symbol 소문자}@kline_{interval}
func (b *Binance) StreamURL(symbol, interval string) string {
	return fmt.Sprintf("%s/%s@kline_%s", b.streamBase, strings.ToLower(symbol), interval)
}

// CandlesByLimit : (REST) /klines 최근 limit 개. 오래된 순 정렬, 전부 IsFinal
func (b *Binance) CandlesByLimit(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	fail := func(status int, err error) error {
		return &model.FetchError{Symbol: symbol, Interval: interval, StatusCode: status, Err: err}
	}

	if symbol == "" {
		return nil, fail(0, errors.New("empty symbol"))
	}
	if err := tools.ValidateInterval(interval); err != nil {
		return nil, fail(0, err)
	}
	if limit < 1 || limit > MaxKlineLimit {
		return nil, fail(0, fmt.Errorf("limit must be within 1..%d, got %d", MaxKlineLimit, limit))
	}

	resp, err := b.resty.
		MakeRequest(ctx, nil, nil).
		Get(b.restBase+"/klines",
			resty.QueryParam{Key: "symbol", Value: symbol},
			resty.QueryParam{Key: "interval", Value: interval},
			resty.QueryParam{Key: "limit", Value: limit},
		)
	if err != nil {
		status := 0
		if resp != nil && resp.RawResponse != nil {
			status = resp.StatusCode()
		}
		return nil, fail(status, fmt.Errorf("request klines: %w", err))
	}
	if resp.IsError() {
		return nil, fail(resp.StatusCode(), fmt.Errorf("klines responded %s", strings.TrimSpace(resp.String())))
	}

	candles, err := decodeKlines(resp.Body())
	if err != nil {
		return nil, fail(resp.StatusCode(), err)
	}
	log.Infof("[HISTORY] %s %s loaded %d candles", symbol, interval, len(candles))
	return candles, nil
}

func decodeKlines(body []byte) ([]model.Candle, error) {
	if trimmed := strings.TrimSpace(string(body)); !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("klines payload is not an array: %.64q", trimmed)
	}
	var rows []json.RawMessage
	if err := klineJSON.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("klines payload is not an array: %w", err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for i, raw := range rows {
		var row []any
		if err := klineJSON.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("row %d is not an array: %w", i, err)
		}
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d has %d fields, want at least 6", i, len(row))
		}
		values := make([]decimal.Decimal, 6)
		for j := 0; j < 6; j++ {
			d, err := parseDecimal(row[j])
			if err != nil {
				return nil, fmt.Errorf("row %d field %d: %w", i, j, err)
			}
			values[j] = d
		}
		c := model.Candle{
			OpenTime: values[0].IntPart(),
			Open:     values[1].InexactFloat64(),
			High:     values[2].InexactFloat64(),
			Low:      values[3].InexactFloat64(),
			Close:    values[4].InexactFloat64(),
			Volume:   values[5].InexactFloat64(),
			IsFinal:  true,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		candles = append(candles, c)
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
	return candles, nil
}

func parseDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(t)
	case json.Number:
		return decimal.NewFromString(t.String())
	case float64:
		return decimal.NewFromFloat(t), nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected value %v (%T)", v, v)
	}
}
