package model

import (
	"fmt"
	"slices"
)

// ChartType : 메인 pane(가격) 을 그리는 방식
type ChartType string

const (
	ChartTypeLine   ChartType = "line"
	ChartTypeArea   ChartType = "area"
	ChartTypeBar    ChartType = "bar"
	ChartTypeCandle ChartType = "candle"
)

const DefaultChartType = ChartTypeCandle

// ChartTypes : 선택 가능한 값 (표시 순서)
var ChartTypes = []ChartType{ChartTypeLine, ChartTypeArea, ChartTypeBar, ChartTypeCandle}

func (t ChartType) Validate() error {
	if !slices.Contains(ChartTypes, t) {
		return fmt.Errorf("%w: unknown chart type %q", ErrInvalidConfig, t)
	}
	return nil
}
