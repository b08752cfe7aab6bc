package indicator

import (
	"fmt"

	"klinechart/model"
)

// ComputeRSI : RSI pane 하나. Time/Values 는 candles 와 index 1:1
func ComputeRSI(candles []model.Candle, cfg model.RSIConfig) ChartIndicator {
	closes := model.Closes(candles)
	var values model.Series[float64]
	if cfg.Smoothing == model.SmoothingWilder {
		values = WilderRSI(closes, cfg.Period)
	} else {
		values = RSI(closes, cfg.Period)
	}

	warmup := min(cfg.Period, len(candles))
	return ChartIndicator{
		ID:        cfg.ID,
		Kind:      model.KindRSI,
		GroupName: fmt.Sprintf("%s (%d)", cfg.Name, cfg.Period),
		Time:      model.OpenTimes(candles),
		Metrics: []IndicatorMetric{{
			Name:   cfg.Name,
			Color:  cfg.LineColor,
			Style:  StyleLine,
			Width:  cfg.LineSize,
			Values: values,
			Warmup: warmup,
		}},
		Warmup: warmup,
		Levels: []Level{
			{Name: "Overbought", Value: cfg.Overbought, Color: cfg.OverboughtLineColor},
			{Name: "Oversold", Value: cfg.Oversold, Color: cfg.OversoldLineColor},
		},
	}
}

// ComputeVolume : 거래량 막대(상승/하락 색) + 보이는 이동평균선
func ComputeVolume(candles []model.Candle, cfg model.VolumeConfig) ChartIndicator {
	volumes := model.Volumes(candles)
	colors := make([]string, len(candles))
	for i, c := range candles {
		if c.Bullish() {
			colors[i] = cfg.UpColor
		} else {
			colors[i] = cfg.DownColor
		}
	}

	metrics := []IndicatorMetric{{
		Name:    cfg.Name,
		Color:   cfg.UpColor,
		Style:   StyleBar,
		Opacity: cfg.Opacity,
		Values:  volumes,
		Colors:  colors,
	}}
	for _, ma := range cfg.MovingAverages {
		if !ma.Show {
			continue
		}
		var values model.Series[float64]
		name := fmt.Sprintf("MA%d", ma.Period)
		if ma.Type == model.MATypeEMA {
			values = EMA(volumes, ma.Period)
			name = fmt.Sprintf("EMA%d", ma.Period)
		} else {
			values = SMA(volumes, ma.Period)
		}
		metrics = append(metrics, IndicatorMetric{
			Name:   name,
			Color:  ma.Color,
			Style:  StyleLine,
			Width:  1,
			Values: values,
			Warmup: min(ma.Period-1, len(candles)),
		})
	}

	return ChartIndicator{
		ID:        cfg.ID,
		Kind:      model.KindVolume,
		GroupName: cfg.Name,
		Time:      model.OpenTimes(candles),
		Metrics:   metrics,
	}
}

// ComputeAll : Show 인 인스턴스만 RSI -> Volume 순서로
func ComputeAll(candles []model.Candle, cfgs model.IndicatorConfigs) []ChartIndicator {
	out := make([]ChartIndicator, 0, len(cfgs.RSI)+len(cfgs.Volume))
	for _, cfg := range cfgs.RSI {
		if cfg.Show {
			out = append(out, ComputeRSI(candles, cfg))
		}
	}
	for _, cfg := range cfgs.Volume {
		if cfg.Show {
			out = append(out, ComputeVolume(candles, cfg))
		}
	}
	return out
}
