package server

import (
	"sync"

	"go.uber.org/zap"

	"github.com/piwi3910/SlabNest/internal/controller"
)

// hub fans controller notifications out to event stream subscribers. A
// subscriber that falls behind loses notifications instead of stalling the
// controller.
type hub struct {
	logger *zap.Logger
	buffer int

	mu     sync.Mutex
	subs   map[chan controller.Notification]struct{}
	closed bool
}

func newHub(logger *zap.Logger, buffer int) *hub {
	return &hub{
		logger: logger,
		buffer: buffer,
		subs:   make(map[chan controller.Notification]struct{}),
	}
}

// run broadcasts until src is closed, then closes every subscription.
func (h *hub) run(src <-chan controller.Notification) {
	for n := range src {
		h.broadcast(n)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}

func (h *hub) broadcast(n controller.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.logger.Warn("Dropped notification for slow subscriber",
				zap.String("type", string(n.Type)), zap.String("run", n.RunID))
		}
	}
}

// subscribe returns a channel of future notifications. The channel is
// already closed when the hub has shut down.
func (h *hub) subscribe() chan controller.Notification {
	ch := make(chan controller.Notification, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(ch chan controller.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
