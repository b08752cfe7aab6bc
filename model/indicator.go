package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IndicatorKind string

const (
	KindRSI    IndicatorKind = "rsi"
	KindVolume IndicatorKind = "volume"
)

// RSISmoothing : simple = 구간 단순평균, wilder = TA-Lib Wilder 평활
type RSISmoothing string

const (
	SmoothingSimple RSISmoothing = "simple"
	SmoothingWilder RSISmoothing = "wilder"
)

type MAType string

const (
	MATypeSMA MAType = "sma"
	MATypeEMA MAType = "ema"
)

const (
	MinLineSize = 0.5
	MaxLineSize = 5.0
)

// RSIConfig : RSI 인스턴스 하나의 사용자 설정
type RSIConfig struct {
	ID                  string       `json:"id" yaml:"id"`
	Name                string       `json:"name" yaml:"name"`
	Show                bool         `json:"show" yaml:"show"`
	Period              int          `json:"period" yaml:"period"`
	Overbought          float64      `json:"overbought" yaml:"overbought"`
	Oversold            float64      `json:"oversold" yaml:"oversold"`
	LineColor           string       `json:"lineColor" yaml:"line_color"`
	LineSize            float64      `json:"lineSize" yaml:"line_size"`
	OverboughtLineColor string       `json:"overboughtLineColor" yaml:"overbought_line_color"`
	OversoldLineColor   string       `json:"oversoldLineColor" yaml:"oversold_line_color"`
	Smoothing           RSISmoothing `json:"smoothing,omitempty" yaml:"smoothing"`
}

// MovingAverageConfig : 거래량 위에 겹쳐 그리는 이동평균선
type MovingAverageConfig struct {
	ID     string `json:"id" yaml:"id"`
	Show   bool   `json:"show" yaml:"show"`
	Period int    `json:"period" yaml:"period"`
	Color  string `json:"color" yaml:"color"`
	Type   MAType `json:"type,omitempty" yaml:"type"`
}

// VolumeConfig : 거래량 인스턴스 하나의 사용자 설정
type VolumeConfig struct {
	ID             string                `json:"id" yaml:"id"`
	Name           string                `json:"name" yaml:"name"`
	Show           bool                  `json:"show" yaml:"show"`
	UpColor        string                `json:"upColor" yaml:"up_color"`
	DownColor      string                `json:"downColor" yaml:"down_color"`
	Opacity        float64               `json:"opacity" yaml:"opacity"`
	MovingAverages []MovingAverageConfig `json:"movingAverages" yaml:"moving_averages"`
}

// IndicatorConfigs : 차트 하나에 붙은 모든 지표 설정 (저장 단위)
type IndicatorConfigs struct {
	RSI    []RSIConfig    `json:"rsi" yaml:"rsi"`
	Volume []VolumeConfig `json:"volume" yaml:"volume"`
}

func DefaultRSIConfig() RSIConfig {
	return RSIConfig{
		ID:                  "rsi-default",
		Name:                "RSI",
		Show:                true,
		Period:              14,
		Overbought:          70,
		Oversold:            30,
		LineColor:           "#2962FF",
		LineSize:            2,
		OverboughtLineColor: "#ff5b5a",
		OversoldLineColor:   "#00b15d",
		Smoothing:           SmoothingSimple,
	}
}

func DefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{
		ID:        "volume-default",
		Name:      "Volume",
		Show:      true,
		UpColor:   "#00b15d",
		DownColor: "#ff5b5a",
		Opacity:   0.5,
		MovingAverages: []MovingAverageConfig{
			{ID: "volume-default-ma20", Show: true, Period: 20, Color: "#f0b90b", Type: MATypeSMA},
			{ID: "volume-default-ma50", Show: false, Period: 50, Color: "#2962FF", Type: MATypeSMA},
		},
	}
}

func DefaultIndicatorConfigs() IndicatorConfigs {
	return IndicatorConfigs{
		RSI:    []RSIConfig{DefaultRSIConfig()},
		Volume: []VolumeConfig{DefaultVolumeConfig()},
	}
}

// Normalize : 비어있는 값 채우기 (id 발급, 기본 색, line size clamp)
func (c RSIConfig) Normalize() RSIConfig {
	def := DefaultRSIConfig()
	if c.ID == "" {
		c.ID = "rsi-" + uuid.NewString()
	}
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.LineColor == "" {
		c.LineColor = def.LineColor
	}
	if c.OverboughtLineColor == "" {
		c.OverboughtLineColor = def.OverboughtLineColor
	}
	if c.OversoldLineColor == "" {
		c.OversoldLineColor = def.OversoldLineColor
	}
	if c.Smoothing == "" {
		c.Smoothing = SmoothingSimple
	}
	if c.LineSize == 0 {
		c.LineSize = def.LineSize
	}
	c.LineSize = lo.Clamp(c.LineSize, MinLineSize, MaxLineSize)
	return c
}

func (c RSIConfig) Validate() error {
	if c.Period < 1 {
		return fmt.Errorf("%w: rsi %s period must be >= 1, got %d", ErrInvalidConfig, c.ID, c.Period)
	}
	if c.Oversold < 0 || c.Overbought > 100 || c.Oversold >= c.Overbought {
		return fmt.Errorf("%w: rsi %s needs 0 <= oversold < overbought <= 100, got %v/%v",
			ErrInvalidConfig, c.ID, c.Oversold, c.Overbought)
	}
	switch c.Smoothing {
	case SmoothingSimple, SmoothingWilder:
	default:
		return fmt.Errorf("%w: rsi %s unknown smoothing %q", ErrInvalidConfig, c.ID, c.Smoothing)
	}
	return nil
}

func (c VolumeConfig) Normalize() VolumeConfig {
	def := DefaultVolumeConfig()
	if c.ID == "" {
		c.ID = "volume-" + uuid.NewString()
	}
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.UpColor == "" {
		c.UpColor = def.UpColor
	}
	if c.DownColor == "" {
		c.DownColor = def.DownColor
	}
	c.MovingAverages = lo.Map(c.MovingAverages, func(ma MovingAverageConfig, i int) MovingAverageConfig {
		if ma.ID == "" {
			ma.ID = fmt.Sprintf("%s-ma%d-%d", c.ID, ma.Period, i)
		}
		if ma.Type == "" {
			ma.Type = MATypeSMA
		}
		if ma.Color == "" {
			ma.Color = def.MovingAverages[0].Color
		}
		return ma
	})
	return c
}

func (c VolumeConfig) Validate() error {
	if c.Opacity < 0 || c.Opacity > 1 {
		return fmt.Errorf("%w: volume %s opacity must be within [0,1], got %v", ErrInvalidConfig, c.ID, c.Opacity)
	}
	for _, ma := range c.MovingAverages {
		if ma.Period < 1 {
			return fmt.Errorf("%w: volume %s ma %s period must be >= 1", ErrInvalidConfig, c.ID, ma.ID)
		}
		switch ma.Type {
		case MATypeSMA, MATypeEMA:
		default:
			return fmt.Errorf("%w: volume %s ma %s unknown type %q", ErrInvalidConfig, c.ID, ma.ID, ma.Type)
		}
	}
	return nil
}

// Normalize : 모든 인스턴스 Normalize
func (c IndicatorConfigs) Normalize() IndicatorConfigs {
	return IndicatorConfigs{
		RSI:    lo.Map(c.RSI, func(r RSIConfig, _ int) RSIConfig { return r.Normalize() }),
		Volume: lo.Map(c.Volume, func(v VolumeConfig, _ int) VolumeConfig { return v.Normalize() }),
	}
}

// Validate : 각 인스턴스 검증 + id 중복 검사
func (c IndicatorConfigs) Validate() error {
	for _, r := range c.RSI {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for _, v := range c.Volume {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	ids := c.IDs()
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return fmt.Errorf("%w: duplicate indicator ids %s", ErrInvalidConfig, strings.Join(dup, ","))
	}
	return nil
}

// IDs : RSI -> Volume 순서의 인스턴스 id 목록
func (c IndicatorConfigs) IDs() []string {
	ids := make([]string, 0, len(c.RSI)+len(c.Volume))
	for _, r := range c.RSI {
		ids = append(ids, r.ID)
	}
	for _, v := range c.Volume {
		ids = append(ids, v.ID)
	}
	return ids
}

// Kind : id로 인스턴스 종류 찾기
func (c IndicatorConfigs) Kind(id string) (IndicatorKind, bool) {
	if lo.ContainsBy(c.RSI, func(r RSIConfig) bool { return r.ID == id }) {
		return KindRSI, true
	}
	if lo.ContainsBy(c.Volume, func(v VolumeConfig) bool { return v.ID == id }) {
		return KindVolume, true
	}
	return "", false
}

// Clone : slice 공유 없이 복사
func (c IndicatorConfigs) Clone() IndicatorConfigs {
	out := IndicatorConfigs{
		RSI:    append([]RSIConfig(nil), c.RSI...),
		Volume: make([]VolumeConfig, len(c.Volume)),
	}
	for i, v := range c.Volume {
		v.MovingAverages = append([]MovingAverageConfig(nil), v.MovingAverages...)
		out.Volume[i] = v
	}
	return out
}
