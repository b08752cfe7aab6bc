// Package notification : 스트림 상태 변화 / history 실패 / RSI 레벨 돌파 알림
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"klinechart/utils/log"
	"klinechart/utils/resty"
)

const DefaultTelegramAPI = "https://api.telegram.org"

type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Noop : 알림 설정이 없을 때
type Noop struct{}

func (Noop) Send(context.Context, string) error { return nil }

type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	resty    resty.RestyClient
}

type TelegramOption func(*TelegramNotifier)

func WithTelegramAPI(base string) TelegramOption {
	return func(t *TelegramNotifier) {
		t.apiBase = strings.TrimRight(base, "/")
	}
}

func WithTelegramRestyClient(client resty.RestyClient) TelegramOption {
	return func(t *TelegramNotifier) {
		t.resty = client
	}
}

func NewTelegramNotifier(botToken, chatID string, opts ...TelegramOption) *TelegramNotifier {
	t := &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  DefaultTelegramAPI,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.resty == nil {
		t.resty = resty.NewDefaultRestyClientWithRetryCount(false, 2, 10*time.Second)
	}
	return t
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

func (t *TelegramNotifier) Send(ctx context.Context, message string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	resp, err := t.resty.
		MakeRequest(ctx, sendMessageRequest{ChatID: t.chatID, Text: message}, nil, "application/json").
		Post(apiURL)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Notify : 실패해도 로그만 남긴다
func Notify(ctx context.Context, n Notifier, message string) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, message); err != nil {
		log.Warnf("[NOTIFY] 텔레그램 알림 전송 실패: %v", err)
	}
}
