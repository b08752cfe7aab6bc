package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"klinechart/metrics"
	"klinechart/model"
	"klinechart/utils/log"

	"github.com/gorilla/websocket"
)

const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
	DefaultSetupFailureDelay = 5 * time.Second

	closeWriteWait = time.Second
)

const (
	MsgConnectionLost  = "Connection lost - reconnecting..."
	MsgConnectFailed   = "Real-time connection failed - attempting to reconnect..."
	MsgSetupFailed     = "Failed to establish real-time connection"
	MsgConnected       = "connected"
	MsgClosed          = "Real-time connection closed"
	MsgDisconnected    = "disconnected"
	MsgConnecting      = "connecting"
	MsgStaleConnection = "No data received - reconnecting..."
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Errored
	Closed
	Backoff
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	case Closed:
		return "closed"
	case Backoff:
		return "backoff"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status : 상태가 바뀔 때마다 onStatus 로 전달. Err 는 transport 실패일 때만
type Status struct {
	State   State                       `json:"state"`
	Message string                      `json:"message"`
	Err     *model.StreamTransportError `json:"-"`
	At      time.Time                   `json:"at"`
}

// Conn : *websocket.Conn 중 사용하는 부분
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type Stopper interface {
	Stop() bool
}

type (
	URLBuilder    func(symbol, interval string) string
	CandleHandler func(model.Candle)
	StatusHandler func(Status)
	Decoder       func([]byte) (model.Candle, error)
	AfterFunc     func(d time.Duration, f func()) Stopper
)

type wsDialer struct {
	dialer *websocket.Dialer
}

func (w wsDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	conn, resp, err := w.dialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func NewWebsocketDialer(handshakeTimeout time.Duration) Dialer {
	return wsDialer{dialer: &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: handshakeTimeout,
	}}
}

type StreamOption func(*StreamManager)

func WithDialer(d Dialer) StreamOption {
	return func(m *StreamManager) {
		m.dialer = d
	}
}

// WithAfterFunc : reconnect timer 주입 (기본 time.AfterFunc)
func WithAfterFunc(f AfterFunc) StreamOption {
	return func(m *StreamManager) {
		m.afterFunc = f
	}
}

func WithDecoder(d Decoder) StreamOption {
	return func(m *StreamManager) {
		m.decode = d
	}
}

func WithClock(now func() time.Time) StreamOption {
	return func(m *StreamManager) {
		m.now = now
	}
}

func WithDelays(connectTimeout, reconnect, setupFailure time.Duration) StreamOption {
	return func(m *StreamManager) {
		if connectTimeout > 0 {
			m.connectTimeout = connectTimeout
		}
		if reconnect > 0 {
			m.reconnectDelay = reconnect
		}
		if setupFailure > 0 {
			m.setupFailureDelay = setupFailure
		}
	}
}

func WithMetrics(mt *metrics.Metrics) StreamOption {
	return func(m *StreamManager) {
		m.metrics = mt
	}
}

// StreamManager : 심볼/interval 하나에 대한 kline websocket 구독.
// 끊기면 delay 후 한 번 재연결하고, clean close(1000) 는 재연결하지 않는다.
//
// 연결마다 generation 을 두고, Subscribe/Teardown 때 올린다.
// generation 이 바뀐 연결의 콜백은 onCandle/onStatus 까지 가지 않는다.
type StreamManager struct {
	urlFor   URLBuilder
	onCandle CandleHandler
	onStatus StatusHandler

	dialer            Dialer
	afterFunc         AfterFunc
	decode            Decoder
	now               func() time.Time
	connectTimeout    time.Duration
	reconnectDelay    time.Duration
	setupFailureDelay time.Duration
	metrics           *metrics.Metrics

	mu          sync.Mutex
	gen         uint64
	state       State
	status      Status
	symbol      string
	interval    string
	url         string
	conn        Conn
	cancelDial  context.CancelFunc
	timer       Stopper
	lastMessage time.Time

	// candle 전달 중에는 잡고 있음. Teardown 이 진행 중인 전달을 기다리는 데 사용
	deliverMu sync.Mutex
	// statusMu : onStatus 호출을 한 줄로 세운다
	statusMu sync.Mutex
}

func NewStreamManager(urlFor URLBuilder, decode Decoder, onCandle CandleHandler, onStatus StatusHandler, opts ...StreamOption) *StreamManager {
	m := &StreamManager{
		urlFor:            urlFor,
		decode:            decode,
		onCandle:          onCandle,
		onStatus:          onStatus,
		now:               time.Now,
		connectTimeout:    DefaultConnectTimeout,
		reconnectDelay:    DefaultReconnectDelay,
		setupFailureDelay: DefaultSetupFailureDelay,
		afterFunc: func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewWebsocketDialer(m.connectTimeout)
	}
	if m.onCandle == nil {
		m.onCandle = func(model.Candle) {}
	}
	if m.onStatus == nil {
		m.onStatus = func(Status) {}
	}
	m.status = Status{State: Disconnected, Message: MsgDisconnected, At: m.now()}
	return m
}

func (m *StreamManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *StreamManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe : 이전 연결을 완전히 정리한 뒤 새 연결 시작
func (m *StreamManager) Subscribe(symbol, interval string) {
	m.mu.Lock()
	old := m.retireLocked()
	m.symbol, m.interval = symbol, interval
	gen := m.gen
	m.mu.Unlock()

	closeGracefully(old)
	m.awaitDelivery()

	log.Infof("[STREAM] subscribe %s@%s", symbol, interval)
	m.connect(gen)
}

// Teardown : 연결/타이머 정리. 반환 이후에는 onCandle 이 호출되지 않는다
func (m *StreamManager) Teardown() {
	m.mu.Lock()
	old := m.retireLocked()
	gen := m.gen
	st := m.setStateLocked(Disconnected, MsgDisconnected, nil)
	m.mu.Unlock()

	closeGracefully(old)
	m.awaitDelivery()
	m.emit(gen, st)
	log.Info("[STREAM] torn down")
}

// CheckStale : 연결은 살아있는데 maxSilence 동안 메시지가 없으면 끊고 재연결 예약
func (m *StreamManager) CheckStale(now time.Time, maxSilence time.Duration) bool {
	m.mu.Lock()
	if m.state != Connected || m.conn == nil || now.Sub(m.lastMessage) <= maxSilence {
		m.mu.Unlock()
		return false
	}
	gen, conn, rawURL := m.gen, m.conn, m.url
	silence := now.Sub(m.lastMessage)
	m.mu.Unlock()

	err := fmt.Errorf("no message for %s", silence.Truncate(time.Second))
	m.fail(gen, conn, &model.StreamTransportError{URL: rawURL, Err: err}, MsgStaleConnection, m.reconnectDelay)
	return true
}

// retireLocked : generation 증가, 타이머 정지, dial 취소. 닫을 연결을 돌려준다
func (m *StreamManager) retireLocked() Conn {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	conn := m.conn
	m.conn = nil
	return conn
}

func (m *StreamManager) awaitDelivery() {
	// 진행 중인 onCandle 이 끝날 때까지만 잡았다 놓음
	m.deliverMu.Lock()
	m.deliverMu.Unlock()
}

// emit : onStatus 는 한 번에 하나씩. 그 사이 generation 이 바뀌었으면 늦은 상태이므로 버린다
func (m *StreamManager) emit(gen uint64, st Status) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	m.mu.Lock()
	stale := gen != m.gen
	m.mu.Unlock()
	if stale {
		log.Debugf("[STREAM] drop stale status %s (%s)", st.State, st.Message)
		return
	}
	m.onStatus(st)
}

func (m *StreamManager) setStateLocked(state State, msg string, err *model.StreamTransportError) Status {
	m.state = state
	m.status = Status{State: state, Message: msg, Err: err, At: m.now()}
	m.metrics.SetStreamState(int(state))
	return m.status
}

func (m *StreamManager) connect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.url = m.urlFor(m.symbol, m.interval)
	rawURL := m.url
	ctx, cancel := context.WithTimeout(context.Background(), m.connectTimeout)
	m.cancelDial = cancel
	st := m.setStateLocked(Connecting, MsgConnecting, nil)
	m.mu.Unlock()

	m.emit(gen, st)
	go m.run(ctx, cancel, gen, rawURL)
}

func (m *StreamManager) run(ctx context.Context, cancel context.CancelFunc, gen uint64, rawURL string) {
	if u, err := url.Parse(rawURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		cancel()
		if err == nil {
			err = fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		m.fail(gen, nil, &model.StreamTransportError{URL: rawURL, Err: err}, MsgSetupFailed, m.setupFailureDelay)
		return
	}

	conn, err := m.dialer.Dial(ctx, rawURL)
	cancel()
	if err != nil {
		msg, delay := MsgConnectFailed, m.reconnectDelay
		if errors.Is(err, websocket.ErrBadHandshake) {
			msg, delay = MsgSetupFailed, m.setupFailureDelay
		}
		m.fail(gen, nil, &model.StreamTransportError{URL: rawURL, Err: err}, msg, delay)
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.cancelDial = nil
	m.lastMessage = m.now()
	st := m.setStateLocked(Connected, MsgConnected, nil)
	m.mu.Unlock()

	log.Infof("[STREAM] connected %s", rawURL)
	m.emit(gen, st)
	m.readLoop(gen, conn, rawURL)
}

func (m *StreamManager) readLoop(gen uint64, conn Conn, rawURL string) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			m.handleReadError(gen, conn, rawURL, err)
			return
		}
		m.metrics.StreamMessage()
		if !m.touch(gen, conn) {
			return
		}

		candle, err := m.decode(msg)
		if errors.Is(err, model.ErrNoKline) {
			log.Debugf("[STREAM] ignore message without kline: %s", msg)
			continue
		}
		if err != nil {
			m.metrics.DecodeError()
			log.Warnf("[STREAM] drop message: %v", err)
			continue
		}
		m.deliver(gen, conn, candle)
	}
}

// touch : 마지막 수신 시각 갱신. 이미 은퇴한 연결이면 false
func (m *StreamManager) touch(gen uint64, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.conn != conn {
		return false
	}
	m.lastMessage = m.now()
	return true
}

func (m *StreamManager) deliver(gen uint64, conn Conn, c model.Candle) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	current := gen == m.gen && m.conn == conn
	m.mu.Unlock()
	if !current {
		return
	}
	m.onCandle(c)
}

func (m *StreamManager) handleReadError(gen uint64, conn Conn, rawURL string, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
		m.mu.Lock()
		if gen != m.gen || m.conn != conn {
			m.mu.Unlock()
			return
		}
		m.conn = nil
		st := m.setStateLocked(Closed, MsgClosed, nil)
		m.mu.Unlock()

		_ = conn.Close()
		log.Infof("[STREAM] %s closed normally", rawURL)
		m.emit(gen, st)
		return
	}

	terr := &model.StreamTransportError{URL: rawURL, Err: err}
	if closeErr != nil {
		terr.CloseCode = closeErr.Code
	}
	m.fail(gen, conn, terr, MsgConnectionLost, m.reconnectDelay)
}

// fail : Errored 로 바꾸고 delay 뒤 재연결 예약 (대기 중인 타이머는 교체).
// conn 은 실패한 연결 (dial 실패면 nil). 이미 처리된 연결이면 무시
func (m *StreamManager) fail(gen uint64, conn Conn, terr *model.StreamTransportError, msg string, delay time.Duration) {
	m.mu.Lock()
	if gen != m.gen || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.cancelDial = nil
	st := m.setStateLocked(Errored, msg, terr)
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.afterFunc(delay, func() { m.connect(gen) })
	m.state = Backoff
	m.metrics.SetStreamState(int(Backoff))
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.metrics.Reconnect()
	log.Warnf("[STREAM] %v, reconnecting in %s", terr, delay)
	m.emit(gen, st)
}

// closeGracefully : normal close frame 을 보내고 닫는다
func closeGracefully(conn Conn) {
	if conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait)); err != nil {
		log.Debugf("[STREAM] write close frame: %v", err)
	}
	_ = conn.Close()
}
