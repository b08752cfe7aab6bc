// Package config : YAML 파일 + .env + 환경변수
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"klinechart/model"
	"klinechart/utils/tools"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	Market   model.Market `yaml:"market"`
	Exchange struct {
		RestBase   string `yaml:"rest_base"`
		StreamBase string `yaml:"stream_base"`
	} `yaml:"exchange"`
	Chart struct {
		Title     string `yaml:"title"`
		MaxPoints int    `yaml:"max_points"`
	} `yaml:"chart"`
	Stream struct {
		ConnectTimeout    time.Duration `yaml:"connect_timeout"`
		ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
		SetupFailureDelay time.Duration `yaml:"setup_failure_delay"`
		// WatchdogCron : robfig/cron 형식 (초 포함)
		WatchdogCron string        `yaml:"watchdog_cron"`
		MaxSilence   time.Duration `yaml:"max_silence"`
	} `yaml:"stream"`
	Store struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
		Redis      struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"store"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Notify struct {
		Telegram struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"notify"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load : .env(있으면) -> YAML(있으면) -> 환경변수 -> 기본값 -> 검증
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default : 파일/환경변수 없이 기본값만
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("KLINE_SYMBOL", &c.Market.Symbol)
	setString("KLINE_INTERVAL", &c.Market.Interval)
	setString("KLINE_HTTP_ADDR", &c.HTTP.Addr)
	setString("KLINE_LOG_LEVEL", &c.Log.Level)
	setString("KLINE_STORE", &c.Store.Driver)
	setString("KLINE_SQLITE_PATH", &c.Store.SQLitePath)
	setString("KLINE_REDIS_ADDR", &c.Store.Redis.Addr)
	setString("KLINE_REDIS_PASSWORD", &c.Store.Redis.Password)
	setString("TELEGRAM_BOT_TOKEN", &c.Notify.Telegram.BotToken)
	setString("TELEGRAM_CHAT_ID", &c.Notify.Telegram.ChatID)
	if err := setInt("KLINE_LIMIT", &c.Market.Limit); err != nil {
		return err
	}
	return setInt("KLINE_MAX_POINTS", &c.Chart.MaxPoints)
}

func (c *Config) applyDefaults() {
	def := model.DefaultMarket()
	c.Market.Symbol = strings.ToUpper(lo.Ternary(c.Market.Symbol == "", def.Symbol, c.Market.Symbol))
	c.Market.Interval = lo.Ternary(c.Market.Interval == "", def.Interval, c.Market.Interval)
	c.Market.Limit = lo.Ternary(c.Market.Limit == 0, def.Limit, c.Market.Limit)

	c.Exchange.RestBase = lo.Ternary(c.Exchange.RestBase == "", "https://api.binance.com/api/v3", c.Exchange.RestBase)
	c.Exchange.StreamBase = lo.Ternary(c.Exchange.StreamBase == "", "wss://stream.binance.com:9443/ws", c.Exchange.StreamBase)

	c.Chart.Title = lo.Ternary(c.Chart.Title == "", "klinechart", c.Chart.Title)
	c.Chart.MaxPoints = lo.Ternary(c.Chart.MaxPoints == 0, 500, c.Chart.MaxPoints)

	c.Stream.ConnectTimeout = lo.Ternary(c.Stream.ConnectTimeout == 0, 10*time.Second, c.Stream.ConnectTimeout)
	c.Stream.ReconnectDelay = lo.Ternary(c.Stream.ReconnectDelay == 0, 3*time.Second, c.Stream.ReconnectDelay)
	c.Stream.SetupFailureDelay = lo.Ternary(c.Stream.SetupFailureDelay == 0, 5*time.Second, c.Stream.SetupFailureDelay)
	c.Stream.WatchdogCron = lo.Ternary(c.Stream.WatchdogCron == "", "*/30 * * * * *", c.Stream.WatchdogCron)
	c.Stream.MaxSilence = lo.Ternary(c.Stream.MaxSilence == 0, 2*time.Minute, c.Stream.MaxSilence)

	c.Store.Driver = strings.ToLower(lo.Ternary(c.Store.Driver == "", StoreSQLite, c.Store.Driver))
	c.Store.SQLitePath = lo.Ternary(c.Store.SQLitePath == "", "data/klinechart.db", c.Store.SQLitePath)
	c.Store.Redis.Addr = lo.Ternary(c.Store.Redis.Addr == "", "localhost:6379", c.Store.Redis.Addr)

	c.HTTP.Addr = lo.Ternary(c.HTTP.Addr == "", ":8080", c.HTTP.Addr)
	c.Log.Level = lo.Ternary(c.Log.Level == "", "info", c.Log.Level)
}

// Validate : 시작 시점에만 호출. 여기서 실패하면 프로세스 종료
func (c *Config) Validate() error {
	if err := tools.ValidateInterval(c.Market.Interval); err != nil {
		return fmt.Errorf("market.interval: %w", err)
	}
	if c.Market.Limit < 1 || c.Market.Limit > 1000 {
		return fmt.Errorf("market.limit must be within 1..1000, got %d", c.Market.Limit)
	}
	if c.Chart.MaxPoints < 1 {
		return fmt.Errorf("chart.max_points must be >= 1, got %d", c.Chart.MaxPoints)
	}
	if c.Stream.ConnectTimeout < 0 || c.Stream.ReconnectDelay < 0 || c.Stream.SetupFailureDelay < 0 || c.Stream.MaxSilence < 0 {
		return fmt.Errorf("stream durations must not be negative")
	}
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("store.driver must be one of memory, sqlite, redis, got %q", c.Store.Driver)
	}
	if (c.Notify.Telegram.BotToken == "") != (c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram needs both bot_token and chat_id")
	}
	return nil
}

// TelegramEnabled : 토큰과 chat id 가 모두 있을 때
func (c *Config) TelegramEnabled() bool {
	return c.Notify.Telegram.BotToken != "" && c.Notify.Telegram.ChatID != ""
}
