package app

import (
	"fmt"

	"klinechart/chart"
	"klinechart/config"
	"klinechart/feed"
	"klinechart/indicator"
	"klinechart/model"
	"klinechart/notification"
	"klinechart/utils/log"
)

// toChartStatus : 스트림 상태 -> 화면 상태
func toChartStatus(st feed.Status) chart.Status {
	out := chart.Status{
		Connection: st.State.String(),
		Message:    st.Message,
		At:         st.At,
	}
	if st.Err != nil {
		out.Error = st.Err.Error()
	}
	return out
}

func (a *App) onStreamStatus(st feed.Status) {
	a.metrics.SetStreamState(int(st.State))
	a.controller.SetStatus(toChartStatus(st))

	if a.shouldNotify(st.State) {
		text := fmt.Sprintf("[%s] %s", a.controller.Market(), st.Message)
		if st.Err != nil {
			text = fmt.Sprintf("%s (%v)", text, st.Err)
		}
		a.alerts.Enqueue(text)
	}
}

// shouldNotify : 연결됨 / 끊김 / 종료 로 바뀔 때만. 재연결 시도 중 반복되는 에러는 한 번만 보낸다
func (a *App) shouldNotify(state feed.State) bool {
	switch state {
	case feed.Connected, feed.Errored, feed.Closed:
	default:
		return false
	}

	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	if a.lastNotified == state {
		return false
	}
	a.lastNotified = state
	return true
}

// levelCrossings : 마지막 확정봉에서 RSI 가 과매수/과매도 선을 넘었는지
func levelCrossings(indicators []indicator.ChartIndicator) []string {
	var out []string
	for _, ind := range indicators {
		if ind.Kind != model.KindRSI || len(ind.Metrics) == 0 {
			continue
		}
		values := ind.Metrics[0].Values
		// warm-up 값과 비교하면 의미 없음
		if values.Length() < ind.Warmup+2 {
			continue
		}
		for _, lv := range ind.Levels {
			switch {
			case values.Crossover(lv.Value):
				out = append(out, fmt.Sprintf("%s crossed above %s %.0f (%.2f)", ind.GroupName, lv.Name, lv.Value, values.Last(0)))
			case values.Crossunder(lv.Value):
				out = append(out, fmt.Sprintf("%s crossed below %s %.0f (%.2f)", ind.GroupName, lv.Name, lv.Value, values.Last(0)))
			}
		}
	}
	return out
}

func newNotifier(cfg *config.Config) notification.Notifier {
	if !cfg.TelegramEnabled() {
		return notification.Noop{}
	}
	log.Infof("[NOTIFY] telegram notifications enabled")
	return notification.NewTelegramNotifier(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
}
