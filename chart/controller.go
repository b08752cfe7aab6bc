package chart

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"klinechart/indicator"
	"klinechart/metrics"
	"klinechart/model"
	"klinechart/series"
	"klinechart/utils/log"
	"klinechart/utils/pointer"

	"github.com/samber/lo"
)

var ErrIndicatorNotFound = errors.New("indicator not found")

type EventType string

const (
	EventCandle     EventType = "candle"
	EventIndicators EventType = "indicators"
	EventStatus     EventType = "status"
	EventReset      EventType = "reset"
	EventChartType  EventType = "chart_type"
)

// Status : 화면 상단에 보여줄 연결/로딩 상태
type Status struct {
	Connection string    `json:"connection"`
	Message    string    `json:"message"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

type Event struct {
	Type       EventType                  `json:"type"`
	Market     model.Market               `json:"market"`
	Candle     *model.Candle              `json:"candle,omitempty"`
	Indicators []indicator.ChartIndicator `json:"indicators,omitempty"`
	Status     *Status                    `json:"status,omitempty"`
	ChartType  model.ChartType            `json:"chartType,omitempty"`
}

type Listener func(Event)

// Snapshot : 현재 상태 복사본. slice 는 Controller 가 교체만 하고 수정하지 않으므로 공유해도 안전
type Snapshot struct {
	Market     model.Market               `json:"market"`
	ChartType  model.ChartType            `json:"chartType"`
	MaxPoints  int                        `json:"maxPoints"`
	Candles    []model.Candle             `json:"candles"`
	Indicators []indicator.ChartIndicator `json:"indicators"`
	Configs    model.IndicatorConfigs     `json:"configs"`
	Status     Status                     `json:"status"`
	Registered []string                   `json:"registered"`
}

type Option func(*Controller)

// WithChartType : 시작할 때의 메인 pane 종류 (저장된 값)
func WithChartType(t model.ChartType) Option {
	return func(c *Controller) {
		c.chartType = t
	}
}

// WithChartTypeHook : chart type 이 바뀔 때 호출 (저장용). lock 밖에서 호출됨
func WithChartTypeHook(f func(model.ChartType)) Option {
	return func(c *Controller) {
		c.onChartTypeChange = f
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithConfigHook : 지표 설정이 바뀔 때마다 호출 (저장용). lock 밖에서 호출됨
func WithConfigHook(f func(model.IndicatorConfigs)) Option {
	return func(c *Controller) {
		c.onConfigChange = f
	}
}

// Controller : 차트 하나의 candle 시리즈 + 지표 설정 + 파생 지표.
// 모든 변경은 mu 아래에서 일어나고, 지표 계산은 recompute 한 곳에서만 한다
type Controller struct {
	mu         sync.Mutex
	market     model.Market
	chartType  model.ChartType
	maxPoints  int
	candles    []model.Candle
	configs    model.IndicatorConfigs
	indicators []indicator.ChartIndicator
	status     Status
	registry   *Registry

	metrics           *metrics.Metrics
	onConfigChange    func(model.IndicatorConfigs)
	onChartTypeChange func(model.ChartType)

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

func NewController(market model.Market, maxPoints int, configs model.IndicatorConfigs, opts ...Option) (*Controller, error) {
	if maxPoints < 1 {
		return nil, fmt.Errorf("%w: maxPoints must be >= 1, got %d", model.ErrInvalidConfig, maxPoints)
	}
	configs = configs.Normalize()
	if err := configs.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		market:    market,
		maxPoints: maxPoints,
		configs:   configs,
		registry:  NewRegistry(),
		listeners: make(map[int]Listener),
		status:    Status{Connection: "disconnected", At: time.Now()},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.chartType == "" {
		c.chartType = model.DefaultChartType
	}
	if err := c.chartType.Validate(); err != nil {
		return nil, err
	}
	c.recompute()
	return c, nil
}

// Subscribe : 이벤트 리스너 등록. 반환된 함수로 해제
func (c *Controller) Subscribe(l Listener) func() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) emit(events ...Event) {
	c.listenersMu.Lock()
	listeners := lo.Values(c.listeners)
	c.listenersMu.Unlock()

	for _, e := range events {
		for _, l := range listeners {
			l(e)
		}
	}
}

// recompute : 지표 계산의 유일한 진입점. mu 를 잡은 상태에서 호출
func (c *Controller) recompute() {
	start := time.Now()
	c.indicators = indicator.ComputeAll(c.candles, c.configs)
	c.registry.Sync(lo.Map(c.indicators, func(ci indicator.ChartIndicator, _ int) string { return ci.ID }))
	c.metrics.ObserveIndicators(start)
	c.metrics.SetSeriesLength(len(c.candles))
}

func (c *Controller) indicatorsEventLocked() Event {
	return Event{Type: EventIndicators, Market: c.market, Indicators: c.indicators}
}

func (c *Controller) Market() model.Market {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.market
}

func (c *Controller) ChartType() model.ChartType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chartType
}

// SetChartType : 메인 pane 종류 변경. 같은 값이면 아무것도 안 함
func (c *Controller) SetChartType(t model.ChartType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.chartType == t {
		c.mu.Unlock()
		return nil
	}
	c.chartType = t
	event := Event{Type: EventChartType, Market: c.market, ChartType: t}
	c.mu.Unlock()

	if c.onChartTypeChange != nil {
		c.onChartTypeChange(t)
	}
	c.emit(event)
	return nil
}

func (c *Controller) Configs() model.IndicatorConfigs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configs.Clone()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Market:     c.market,
		ChartType:  c.chartType,
		MaxPoints:  c.maxPoints,
		Candles:    c.candles,
		Indicators: c.indicators,
		Configs:    c.configs.Clone(),
		Status:     c.status,
		Registered: c.registry.IDs(),
	}
}

// LoadHistory : 시리즈 전체 교체 (정렬/중복제거/maxPoints)
func (c *Controller) LoadHistory(candles []model.Candle) error {
	loaded, err := series.FromHistory(candles, c.maxPoints)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.candles = loaded
	c.recompute()
	events := []Event{{Type: EventReset, Market: c.market}, c.indicatorsEventLocked()}
	c.mu.Unlock()

	log.Infof("[CHART] %s history loaded (%d candles)", c.market, len(loaded))
	c.emit(events...)
	return nil
}

// OnCandle : live candle 병합. 과거 봉은 버리고 model.ErrOutOfOrder
func (c *Controller) OnCandle(candle model.Candle) error {
	if err := candle.Validate(); err != nil {
		log.Warnf("[CHART] invalid candle dropped: %v", err)
		return err
	}

	c.mu.Lock()
	merged, err := series.Merge(c.candles, candle, c.maxPoints)
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, model.ErrOutOfOrder) {
			log.Errorf("[CHART] late candle received: %#v", candle)
		}
		return err
	}
	c.candles = merged
	c.recompute()
	events := []Event{{Type: EventCandle, Market: c.market, Candle: pointer.Create(candle)}, c.indicatorsEventLocked()}
	c.mu.Unlock()

	c.emit(events...)
	return nil
}

// SetConfigs : 지표 설정 전체 교체
func (c *Controller) SetConfigs(configs model.IndicatorConfigs) error {
	configs = configs.Normalize()
	if err := configs.Validate(); err != nil {
		return err
	}
	return c.updateConfigs(func(model.IndicatorConfigs) (model.IndicatorConfigs, error) {
		return configs, nil
	})
}

// UpsertRSI : id 가 같으면 교체, 없으면 추가
func (c *Controller) UpsertRSI(cfg model.RSIConfig) (model.RSIConfig, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return model.RSIConfig{}, err
	}
	err := c.updateConfigs(func(cur model.IndicatorConfigs) (model.IndicatorConfigs, error) {
		if kind, ok := cur.Kind(cfg.ID); ok && kind != model.KindRSI {
			return cur, fmt.Errorf("%w: id %s is already used by a %s indicator", model.ErrInvalidConfig, cfg.ID, kind)
		}
		_, idx, found := lo.FindIndexOf(cur.RSI, func(r model.RSIConfig) bool { return r.ID == cfg.ID })
		if found {
			cur.RSI[idx] = cfg
		} else {
			cur.RSI = append(cur.RSI, cfg)
		}
		return cur, nil
	})
	return cfg, err
}

func (c *Controller) UpsertVolume(cfg model.VolumeConfig) (model.VolumeConfig, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return model.VolumeConfig{}, err
	}
	err := c.updateConfigs(func(cur model.IndicatorConfigs) (model.IndicatorConfigs, error) {
		if kind, ok := cur.Kind(cfg.ID); ok && kind != model.KindVolume {
			return cur, fmt.Errorf("%w: id %s is already used by a %s indicator", model.ErrInvalidConfig, cfg.ID, kind)
		}
		_, idx, found := lo.FindIndexOf(cur.Volume, func(v model.VolumeConfig) bool { return v.ID == cfg.ID })
		if found {
			cur.Volume[idx] = cfg
		} else {
			cur.Volume = append(cur.Volume, cfg)
		}
		return cur, nil
	})
	return cfg, err
}

func (c *Controller) RemoveIndicator(id string) error {
	return c.updateConfigs(func(cur model.IndicatorConfigs) (model.IndicatorConfigs, error) {
		if _, ok := cur.Kind(id); !ok {
			return cur, fmt.Errorf("%w: %s", ErrIndicatorNotFound, id)
		}
		cur.RSI = lo.Reject(cur.RSI, func(r model.RSIConfig, _ int) bool { return r.ID == id })
		cur.Volume = lo.Reject(cur.Volume, func(v model.VolumeConfig, _ int) bool { return v.ID == id })
		return cur, nil
	})
}

// ToggleIndicator : Show 반전. 바뀐 뒤의 Show 값을 돌려준다
func (c *Controller) ToggleIndicator(id string) (bool, error) {
	var shown bool
	err := c.updateConfigs(func(cur model.IndicatorConfigs) (model.IndicatorConfigs, error) {
		for i := range cur.RSI {
			if cur.RSI[i].ID == id {
				cur.RSI[i].Show = !cur.RSI[i].Show
				shown = cur.RSI[i].Show
				return cur, nil
			}
		}
		for i := range cur.Volume {
			if cur.Volume[i].ID == id {
				cur.Volume[i].Show = !cur.Volume[i].Show
				shown = cur.Volume[i].Show
				return cur, nil
			}
		}
		return cur, fmt.Errorf("%w: %s", ErrIndicatorNotFound, id)
	})
	return shown, err
}

// updateConfigs : 설정 복사본에 mutate 적용 -> 검증 -> 교체 -> recompute -> 저장 hook
func (c *Controller) updateConfigs(mutate func(model.IndicatorConfigs) (model.IndicatorConfigs, error)) error {
	c.mu.Lock()
	next, err := mutate(c.configs.Clone())
	if err == nil {
		err = next.Validate()
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.configs = next
	c.recompute()
	saved := c.configs.Clone()
	event := c.indicatorsEventLocked()
	c.mu.Unlock()

	if c.onConfigChange != nil {
		c.onConfigChange(saved)
	}
	c.emit(event)
	return nil
}

func (c *Controller) SetStatus(st Status) {
	if st.At.IsZero() {
		st.At = time.Now()
	}
	c.mu.Lock()
	c.status = st
	event := Event{Type: EventStatus, Market: c.market, Status: pointer.Create(st)}
	c.mu.Unlock()

	c.emit(event)
}

// Reset : 다른 market 으로 전환. 시리즈를 비우고 지표도 다시 계산
func (c *Controller) Reset(market model.Market) {
	market.Symbol = strings.ToUpper(market.Symbol)
	c.mu.Lock()
	c.market = market
	c.candles = nil
	c.recompute()
	events := []Event{{Type: EventReset, Market: market}, c.indicatorsEventLocked()}
	c.mu.Unlock()

	log.Infof("[CHART] reset to %s", market)
	c.emit(events...)
}
