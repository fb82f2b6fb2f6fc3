package events

import (
	"sync"

	"github.com/samiralibabic/mcpterm/internal/protocol"
)

// Hub pushes notifications to transport subscribers. A subscriber whose
// buffer is full misses the notification; the event bus itself never drops.
type Hub struct {
	mu          sync.RWMutex
	nextSubID   int
	buffer      int
	subscribers map[int]chan protocol.Notification
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 128
	}
	return &Hub{
		buffer:      buffer,
		subscribers: map[int]chan protocol.Notification{},
	}
}

func (h *Hub) Subscribe() (<-chan protocol.Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSubID++
	id := h.nextSubID
	ch := make(chan protocol.Notification, h.buffer)
	h.subscribers[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subscribers[id]; ok {
				close(c)
				delete(h.subscribers, id)
			}
		})
	}
}

func (h *Hub) Publish(method string, params any) {
	evt := protocol.NewNotification(method, params)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
