package tools

import (
	"fmt"
	"time"
)

// BinanceIntervals : /klines, @kline_ 스트림이 받는 interval
var BinanceIntervals = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M"}

func ValidateInterval(interval string) error {
	if _, err := ParseTimeframeToDuration(interval); err != nil {
		return err
	}
	return nil
}

func ParseTimeframeToDuration(tf string) (time.Duration, error) {
	switch tf {
	case "1m":
		return time.Minute, nil
	case "3m":
		return 3 * time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "2h":
		return 2 * time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "6h":
		return 6 * time.Hour, nil
	case "8h":
		return 8 * time.Hour, nil
	case "12h":
		return 12 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "3d":
		return 3 * 24 * time.Hour, nil
	case "1w":
		return 7 * 24 * time.Hour, nil
	case "1M":
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported interval: %q", tf)
	}
}

// AxisTimeLayout : 봉 간격에 맞는 x축 라벨 포맷 (분/시간봉은 시각까지, 일봉 이상은 날짜만)
func AxisTimeLayout(interval string) string {
	d, err := ParseTimeframeToDuration(interval)
	if err != nil || d < 24*time.Hour {
		return "01-02 15:04"
	}
	return "2006-01-02"
}
