package application

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// RescanHub distributes manual re-scan requests to the detection
// sources currently connected. Each subscriber holds a buffered
// channel; a pending signal that has not been consumed yet coalesces
// with new ones, so a burst of re-scan clicks triggers one scan.
type RescanHub struct {
	mu     sync.Mutex
	subs   map[string]chan struct{}
	logger *slog.Logger
}

// NewRescanHub creates a hub with no subscribers.
func NewRescanHub(logger *slog.Logger) *RescanHub {
	return &RescanHub{
		subs:   make(map[string]chan struct{}),
		logger: logger,
	}
}

// Subscribe registers a detection source and returns its subscription
// ID and signal channel. The channel is closed on Unsubscribe.
func (h *RescanHub) Subscribe() (string, <-chan struct{}) {
	id := uuid.NewString()
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	h.logger.Debug("rescan subscriber connected", "id", id)
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *RescanHub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		close(ch)
		h.logger.Debug("rescan subscriber disconnected", "id", id)
	}
}

// Broadcast signals every connected subscriber to re-scan its page.
// It returns the number of subscribers notified.
func (h *RescanHub) Broadcast() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default: // signal already pending
		}
	}
	return len(h.subs)
}
