// Package series : 길이 제한이 있는 candle 시리즈 병합 (순수 함수)
package series

import (
	"fmt"
	"sort"

	"klinechart/model"
)

const DefaultMaxPoints = 500

// Merge : 새 candle 을 시리즈에 반영한 새 slice 를 돌려준다. 입력 slice 는 건드리지 않음
//
//   - 마지막 봉과 OpenTime 이 같으면 교체 (확정/미확정 무관)
//   - 더 최신이면 뒤에 붙이고 maxPoints 초과분은 앞에서 버림
//   - 더 과거면 model.ErrOutOfOrder
func Merge(candles []model.Candle, c model.Candle, maxPoints int) ([]model.Candle, error) {
	if maxPoints < 1 {
		return nil, fmt.Errorf("%w: maxPoints must be >= 1, got %d", model.ErrInvalidConfig, maxPoints)
	}
	n := len(candles)
	if n > 0 {
		last := candles[n-1]
		switch {
		case c.OpenTime == last.OpenTime:
			out := make([]model.Candle, n)
			copy(out, candles)
			out[n-1] = c
			return out, nil
		case c.OpenTime < last.OpenTime:
			return nil, fmt.Errorf("%w: got %d, last %d", model.ErrOutOfOrder, c.OpenTime, last.OpenTime)
		}
	}

	start := 0
	if n+1 > maxPoints {
		start = n + 1 - maxPoints
	}
	out := make([]model.Candle, 0, n+1-start)
	out = append(out, candles[start:]...)
	out = append(out, c)
	return out, nil
}

// FromHistory : 정렬, OpenTime 중복 제거(뒤에 온 것 우선), 최신 maxPoints 개만 유지
func FromHistory(candles []model.Candle, maxPoints int) ([]model.Candle, error) {
	if maxPoints < 1 {
		return nil, fmt.Errorf("%w: maxPoints must be >= 1, got %d", model.ErrInvalidConfig, maxPoints)
	}
	sorted := make([]model.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenTime < sorted[j].OpenTime
	})

	out := make([]model.Candle, 0, len(sorted))
	for _, c := range sorted {
		if k := len(out); k > 0 && out[k-1].OpenTime == c.OpenTime {
			out[k-1] = c
			continue
		}
		out = append(out, c)
	}
	if len(out) > maxPoints {
		out = out[len(out)-maxPoints:]
	}
	return out, nil
}
