package notification

import (
	"context"
	"sync"

	"klinechart/utils/log"
)

const DefaultQueueSize = 64

// Queue : 알림을 받은 순서대로 goroutine 하나에서 보낸다.
// Enqueue 는 기다리지 않으므로 candle / 스트림 상태 경로에서 바로 호출해도 된다
type Queue struct {
	notifier Notifier
	messages chan string
	done     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func NewQueue(n Notifier, size int) *Queue {
	if size < 1 {
		size = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		notifier: n,
		messages: make(chan string, size),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for msg := range q.messages {
		Notify(q.ctx, q.notifier, msg)
	}
}

// Enqueue : 가득 찼거나 닫힌 큐면 버리고 false
func (q *Queue) Enqueue(message string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.messages <- message:
		return true
	default:
		log.Warnf("[NOTIFY] queue full, dropped: %s", message)
		return false
	}
}

// Close : 새 알림은 받지 않고 남은 것을 보낸다. ctx 가 먼저 끝나면 보내는 중인 요청도 취소
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.messages)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}
