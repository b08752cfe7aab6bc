package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"klinechart/metrics"
	"klinechart/model"
	"klinechart/utils/json"
	"klinechart/utils/log"
)

const (
	KeyIndicators       = "klinechart:indicators"
	KeyPinnedTimeframes = "klinechart:pinned_timeframes"
	KeyChartType        = "klinechart:chart_type"
)

// Preferences : 지표 설정 + 고정 timeframe + chart type. 메모리 값이 기준이고 변경될 때마다 저장소에 기록.
// 저장소 실패는 로그만 남기고 메모리 값은 유지한다
type Preferences struct {
	mu         sync.RWMutex
	store      Store
	metrics    *metrics.Metrics
	indicators model.IndicatorConfigs
	pinned     []string
	chartType  model.ChartType
}

func NewPreferences(s Store, m *metrics.Metrics) *Preferences {
	return &Preferences{
		store:      s,
		metrics:    m,
		indicators: model.DefaultIndicatorConfigs(),
		pinned:     slices.Clone(model.DefaultPinnedTimeframes),
		chartType:  model.DefaultChartType,
	}
}

// Load : 시작할 때 한 번. 없거나 깨진 값은 기본값으로 대체하고 PersistenceError 목록을 돌려준다
func (p *Preferences) Load(ctx context.Context) []error {
	var errs []error

	indicators := model.DefaultIndicatorConfigs()
	if err := p.read(ctx, KeyIndicators, func(data []byte) error {
		loaded, err := json.DeserializeMessageBody[model.IndicatorConfigs](data)
		if err != nil {
			return err
		}
		loaded = loaded.Normalize()
		if err := loaded.Validate(); err != nil {
			return err
		}
		indicators = loaded
		return nil
	}); err != nil {
		errs = append(errs, err)
	}

	pinned := slices.Clone(model.DefaultPinnedTimeframes)
	if err := p.read(ctx, KeyPinnedTimeframes, func(data []byte) error {
		loaded, err := json.DeserializeMessageBody[[]string](data)
		if err != nil {
			return err
		}
		for _, tf := range loaded {
			if !model.IsTimeframe(tf) {
				return fmt.Errorf("%w: unknown timeframe %q", model.ErrInvalidConfig, tf)
			}
		}
		pinned = model.CanonicalTimeframes(loaded)
		return nil
	}); err != nil {
		errs = append(errs, err)
	}

	chartType := model.DefaultChartType
	if err := p.read(ctx, KeyChartType, func(data []byte) error {
		loaded, err := json.DeserializeMessageBody[model.ChartType](data)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		chartType = loaded
		return nil
	}); err != nil {
		errs = append(errs, err)
	}

	p.mu.Lock()
	p.indicators = indicators
	p.pinned = pinned
	p.chartType = chartType
	p.mu.Unlock()

	log.Infof("[PREFS] loaded %d rsi, %d volume, pinned %v, chart %s",
		len(indicators.RSI), len(indicators.Volume), pinned, chartType)
	return errs
}

func (p *Preferences) read(ctx context.Context, key string, decode func([]byte) error) error {
	data, err := p.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err == nil {
		err = decode(data)
	}
	if err != nil {
		perr := &model.PersistenceError{Key: key, Op: "load", Err: err}
		p.metrics.PersistenceError("load")
		log.Warnf("[PREFS] %v, using defaults", perr)
		return perr
	}
	return nil
}

func (p *Preferences) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err == nil {
		err = p.store.Put(ctx, key, data)
	}
	if err != nil {
		perr := &model.PersistenceError{Key: key, Op: "save", Err: err}
		p.metrics.PersistenceError("save")
		log.Errorf("[PREFS] %v", perr)
		return perr
	}
	return nil
}

func (p *Preferences) Indicators() model.IndicatorConfigs {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.indicators.Clone()
}

// SaveIndicators : 메모리 값은 항상 갱신. 반환 에러는 저장 실패 (PersistenceError)
func (p *Preferences) SaveIndicators(ctx context.Context, cfgs model.IndicatorConfigs) error {
	p.mu.Lock()
	p.indicators = cfgs.Clone()
	p.mu.Unlock()
	return p.write(ctx, KeyIndicators, cfgs)
}

func (p *Preferences) ChartType() model.ChartType {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.chartType
}

// SaveChartType : 알 수 없는 값은 ErrInvalidConfig. 그 외에는 SaveIndicators 와 같음
func (p *Preferences) SaveChartType(ctx context.Context, t model.ChartType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.chartType = t
	p.mu.Unlock()
	return p.write(ctx, KeyChartType, t)
}

func (p *Preferences) Pinned() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.pinned)
}

// Pin : 이미 고정된 값이면 아무것도 안 함
func (p *Preferences) Pin(ctx context.Context, tf string) ([]string, error) {
	return p.updatePinned(ctx, tf, func(cur []string) []string {
		return append(cur, tf)
	})
}

func (p *Preferences) Unpin(ctx context.Context, tf string) ([]string, error) {
	return p.updatePinned(ctx, tf, func(cur []string) []string {
		return slices.DeleteFunc(cur, func(s string) bool { return s == tf })
	})
}

func (p *Preferences) updatePinned(ctx context.Context, tf string, mutate func([]string) []string) ([]string, error) {
	if !model.IsTimeframe(tf) {
		return p.Pinned(), fmt.Errorf("%w: unknown timeframe %q", model.ErrInvalidConfig, tf)
	}

	p.mu.Lock()
	next := model.CanonicalTimeframes(mutate(slices.Clone(p.pinned)))
	if slices.Equal(next, p.pinned) {
		p.mu.Unlock()
		return next, nil
	}
	p.pinned = next
	p.mu.Unlock()

	return slices.Clone(next), p.write(ctx, KeyPinnedTimeframes, next)
}

func (p *Preferences) Close() error {
	return p.store.Close()
}
