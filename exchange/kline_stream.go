package exchange

import (
	"fmt"

	"klinechart/model"

	"github.com/shopspring/decimal"
)

// DecodeKlineMessage : `<symbol>@kline_<interval>` push 메시지 -> model.Candle
//
// `k` 가 없는 메시지(구독 ack 등)는 model.ErrNoKline, 깨진 메시지는 *model.DecodeError
func DecodeKlineMessage(msg []byte) (model.Candle, error) {
	var event model.KlineEvent
	if err := klineJSON.Unmarshal(msg, &event); err != nil {
		return model.Candle{}, &model.DecodeError{Payload: string(msg), Err: err}
	}
	if event.Kline == nil {
		return model.Candle{}, model.ErrNoKline
	}

	k := event.Kline
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"o", k.Open, new(float64)},
		{"h", k.High, new(float64)},
		{"l", k.Low, new(float64)},
		{"c", k.Close, new(float64)},
		{"v", k.Volume, new(float64)},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return model.Candle{}, &model.DecodeError{Payload: string(msg), Err: fmt.Errorf("field %s: %w", f.name, err)}
		}
		*f.dst = d.InexactFloat64()
	}

	c := model.Candle{
		OpenTime: k.StartTime,
		Open:     *fields[0].dst,
		High:     *fields[1].dst,
		Low:      *fields[2].dst,
		Close:    *fields[3].dst,
		Volume:   *fields[4].dst,
		IsFinal:  k.IsFinal,
	}
	if err := c.Validate(); err != nil {
		return model.Candle{}, &model.DecodeError{Payload: string(msg), Err: err}
	}
	return c, nil
}
