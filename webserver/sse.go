package webserver

import (
	"sync"
)

// sseBufferSize : 느린 client 는 이 이상 밀리면 메시지를 잃는다
const sseBufferSize = 64

// broker : SSE client 들에게 같은 메시지를 뿌린다. 보내지 못하면 버림 (block 하지 않음)
type broker struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	done    chan struct{}
	closed  bool
}

func newBroker() *broker {
	return &broker{
		clients: make(map[chan []byte]struct{}),
		done:    make(chan struct{}),
	}
}

// add : 닫힌 broker 면 false
func (b *broker) add() (chan []byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	ch := make(chan []byte, sseBufferSize)
	b.clients[ch] = struct{}{}
	return ch, true
}

func (b *broker) remove(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, ch)
}

func (b *broker) publish(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (b *broker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	clear(b.clients)
	close(b.done)
}
