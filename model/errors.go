package model

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfOrder : 마지막 봉보다 과거의 봉이 들어온 경우. 시리즈는 그대로
	ErrOutOfOrder = errors.New("candle is older than the last stored candle")
	// ErrNoKline : 스트림 메시지에 `k` 가 없음 (구독 응답 등). 조용히 무시
	ErrNoKline = errors.New("stream message has no kline payload")
	// ErrInvalidConfig : 지표/설정 값 검증 실패
	ErrInvalidConfig = errors.New("invalid config")
)

// FetchError : history 로딩 실패 (network / http status / payload shape)
type FetchError struct {
	Symbol     string
	Interval   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s %s: status %d: %v", e.Symbol, e.Interval, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s %s: %v", e.Symbol, e.Interval, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StreamTransportError : socket 레벨 에러 또는 비정상 close
type StreamTransportError struct {
	URL string
	// CloseCode : close frame 을 받은 경우만 0 이 아님
	CloseCode int
	Err       error
}

func (e *StreamTransportError) Error() string {
	if e.CloseCode != 0 {
		return fmt.Sprintf("stream %s closed with code %d: %v", e.URL, e.CloseCode, e.Err)
	}
	return fmt.Sprintf("stream %s: %v", e.URL, e.Err)
}

func (e *StreamTransportError) Unwrap() error { return e.Err }

// DecodeError : 스트림 메시지 파싱 실패. 메시지만 버리고 계속 읽는다
type DecodeError struct {
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	payload := e.Payload
	if len(payload) > 128 {
		payload = payload[:128] + "..."
	}
	return fmt.Sprintf("decode stream message %q: %v", payload, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RenderError : 차트 라이브러리 호출 중 실패 (panic 포함)
type RenderError struct {
	Pane string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Pane, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// PersistenceError : 설정 저장소 read/write 실패. 기본값 / 메모리 값으로 계속 진행
type PersistenceError struct {
	Key string
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
