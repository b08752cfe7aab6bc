// Package app : exchange / feed / chart / store / web / notification 을 묶어서 실행
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"klinechart/chart"
	"klinechart/chartview"
	"klinechart/config"
	"klinechart/exchange"
	"klinechart/feed"
	"klinechart/metrics"
	"klinechart/model"
	"klinechart/notification"
	"klinechart/store"
	"klinechart/utils/log"
	"klinechart/utils/tools"
	"klinechart/webserver"

	"github.com/robfig/cron/v3"
)

const (
	MsgLoadingHistory = "Loading chart data..."
	MsgHistoryFailed  = "Failed to load chart data"

	saveTimeout = 5 * time.Second
)

// HistoryLoader : exchange.Binance
type HistoryLoader interface {
	CandlesByLimit(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
}

type Option func(*options)

type options struct {
	binanceOpts []exchange.BinanceOption
	streamOpts  []feed.StreamOption
	store       store.Store
	notifier    notification.Notifier
}

// WithBinanceOptions : REST base / resty client 교체 (테스트)
func WithBinanceOptions(opts ...exchange.BinanceOption) Option {
	return func(o *options) {
		o.binanceOpts = append(o.binanceOpts, opts...)
	}
}

// WithStreamOptions : dialer / timer 교체 (테스트)
func WithStreamOptions(opts ...feed.StreamOption) Option {
	return func(o *options) {
		o.streamOpts = append(o.streamOpts, opts...)
	}
}

// WithStore : 설정 대신 주어진 저장소 사용
func WithStore(s store.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

func WithNotifier(n notification.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// App : 차트 하나에 대한 전체 파이프라인
type App struct {
	cfg        *config.Config
	metrics    *metrics.Metrics
	history    HistoryLoader
	stream     *feed.StreamManager
	controller *chart.Controller
	prefs      *store.Preferences
	web        *webserver.WebServer
	notifier   notification.Notifier
	alerts     *notification.Queue
	cron       *cron.Cron

	// switchMu : market 전환은 한 번에 하나씩
	switchMu sync.Mutex

	notifyMu     sync.Mutex
	lastNotified feed.State
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	log.SetLevel(cfg.Log.Level)
	m := metrics.New()

	s := o.store
	if s == nil {
		s = openStore(cfg)
	}
	prefs := store.NewPreferences(s, m)
	prefs.Load(context.Background())

	a := &App{
		cfg:          cfg,
		metrics:      m,
		prefs:        prefs,
		notifier:     o.notifier,
		cron:         cron.New(cron.WithSeconds()),
		lastNotified: feed.Disconnected,
	}
	if a.notifier == nil {
		a.notifier = newNotifier(cfg)
	}

	controller, err := chart.NewController(cfg.Market, cfg.Chart.MaxPoints, prefs.Indicators(),
		chart.WithMetrics(m),
		chart.WithChartType(prefs.ChartType()),
		chart.WithConfigHook(a.saveIndicators),
		chart.WithChartTypeHook(a.saveChartType),
	)
	if err != nil {
		return nil, fmt.Errorf("create chart controller: %w", err)
	}
	a.controller = controller

	binance := exchange.NewBinance(append([]exchange.BinanceOption{
		exchange.WithRestBase(cfg.Exchange.RestBase),
		exchange.WithStreamBase(cfg.Exchange.StreamBase),
	}, o.binanceOpts...)...)
	a.history = binance

	a.stream = feed.NewStreamManager(binance.StreamURL, exchange.DecodeKlineMessage, a.onCandle, a.onStreamStatus,
		append([]feed.StreamOption{
			feed.WithDelays(cfg.Stream.ConnectTimeout, cfg.Stream.ReconnectDelay, cfg.Stream.SetupFailureDelay),
			feed.WithMetrics(m),
		}, o.streamOpts...)...,
	)

	if _, err := a.cron.AddFunc(cfg.Stream.WatchdogCron, a.watchdog); err != nil {
		return nil, fmt.Errorf("register stream watchdog: %w", err)
	}

	// 텔레그램이 느려도 candle / 스트림 경로는 기다리지 않는다
	a.alerts = notification.NewQueue(a.notifier, notification.DefaultQueueSize)
	a.web = webserver.NewWebServer(cfg.HTTP.Addr, controller, a, prefs, chartview.NewRenderer(cfg.Chart.Title, m), m)
	return a, nil
}

func (a *App) Controller() *chart.Controller   { return a.controller }
func (a *App) Preferences() *store.Preferences { return a.prefs }
func (a *App) Web() *webserver.WebServer       { return a.web }
func (a *App) Stream() *feed.StreamManager     { return a.stream }

// Start : 첫 market 로딩 + 구독 + watchdog. 웹서버는 Run 에서
func (a *App) Start(ctx context.Context) error {
	log.Infof("klinechart starting... (%s)", a.cfg.Market)
	if err := a.SwitchMarket(ctx, a.cfg.Market); err != nil {
		return err
	}
	a.cron.Start()
	return nil
}

// Run : Start 후 ctx 가 끝날 때까지 웹서버 실행, 끝나면 Stop
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Stop()
	log.Infof("open http://localhost%s/chart to see the chart", a.cfg.HTTP.Addr)
	return a.web.Start(ctx)
}

func (a *App) Stop() {
	log.Infof("klinechart stopping...")
	<-a.cron.Stop().Done()
	a.stream.Teardown()
	a.web.Close()
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := a.alerts.Close(ctx); err != nil {
		log.Warnf("[NOTIFY] pending notifications dropped: %v", err)
	}
	if err := a.prefs.Close(); err != nil {
		log.Warnf("[PREFS] close store: %v", err)
	}
	log.Infof("klinechart stopped.")
}

// SwitchMarket : 이전 스트림 정리 -> 시리즈 초기화 -> history 로딩 -> 새 스트림 구독.
// history 실패는 상태 메시지로만 남기고 스트림은 그대로 연다 (자동 재시도 없음)
func (a *App) SwitchMarket(ctx context.Context, market model.Market) error {
	market.Symbol = strings.ToUpper(strings.TrimSpace(market.Symbol))
	if market.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", model.ErrInvalidConfig)
	}
	if err := tools.ValidateInterval(market.Interval); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
	}
	if market.Limit < 1 || market.Limit > exchange.MaxKlineLimit {
		return fmt.Errorf("%w: limit must be within 1..%d, got %d", model.ErrInvalidConfig, exchange.MaxKlineLimit, market.Limit)
	}

	a.switchMu.Lock()
	defer a.switchMu.Unlock()

	// 이전 market 의 candle 이 새 시리즈에 섞이지 않도록 먼저 끊는다
	a.stream.Teardown()
	a.controller.Reset(market)
	a.controller.SetStatus(chart.Status{Connection: feed.Disconnected.String(), Message: MsgLoadingHistory})

	start := time.Now()
	candles, err := a.history.CandlesByLimit(ctx, market.Symbol, market.Interval, market.Limit)
	a.metrics.ObserveFetch(start, err)
	if err != nil {
		log.Errorf("[HISTORY] %v", err)
		a.controller.SetStatus(chart.Status{
			Connection: feed.Disconnected.String(),
			Message:    MsgHistoryFailed,
			Error:      err.Error(),
		})
		a.alerts.Enqueue(fmt.Sprintf("[%s] %s: %v", market, MsgHistoryFailed, err))
	} else if err := a.controller.LoadHistory(candles); err != nil {
		log.Errorf("[HISTORY] %v", err)
	}

	a.stream.Subscribe(market.Symbol, market.Interval)
	return nil
}

func (a *App) onCandle(c model.Candle) {
	if err := a.controller.OnCandle(c); err != nil {
		return
	}
	if !c.IsFinal {
		return
	}
	snap := a.controller.Snapshot()
	for _, msg := range levelCrossings(snap.Indicators) {
		a.alerts.Enqueue(fmt.Sprintf("[%s] %s", snap.Market, msg))
	}
}

// saveIndicators : controller 의 설정 변경 hook
func (a *App) saveIndicators(cfgs model.IndicatorConfigs) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	_ = a.prefs.SaveIndicators(ctx, cfgs)
}

func (a *App) saveChartType(t model.ChartType) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	_ = a.prefs.SaveChartType(ctx, t)
}

// watchdog : cron. 연결은 살아있는데 메시지가 안 오면 재연결
func (a *App) watchdog() {
	if a.stream.CheckStale(time.Now(), a.cfg.Stream.MaxSilence) {
		log.Warnf("[STREAM] no message for %s, forcing reconnect", a.cfg.Stream.MaxSilence)
	}
}
