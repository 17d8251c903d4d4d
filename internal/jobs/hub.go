package jobs

import (
	"log/slog"
	"sync"
)

// Subscriber is a live push-update connection. *websocket.Conn satisfies it.
type Subscriber interface {
	WriteJSON(v any) error
	Close() error
}

// Hub maps job IDs to their subscriber sets and fans broadcasts out to them.
// Delivery is best-effort: a failed write disconnects that subscriber and
// never aborts delivery to the rest. Broadcasting to a job with zero
// subscribers is a silent no-op; nothing is buffered or replayed.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[Subscriber]struct{}
	jobOf       map[Subscriber]string
	logger      *slog.Logger
}

// NewHub creates an empty subscription registry.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[Subscriber]struct{}),
		jobOf:       make(map[Subscriber]string),
		logger:      logger,
	}
}

// Connect registers sub under jobID. A subscriber watches exactly one job;
// reconnecting under a different job moves it.
func (h *Hub) Connect(sub Subscriber, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.jobOf[sub]; ok {
		delete(h.subscribers[prev], sub)
		if len(h.subscribers[prev]) == 0 {
			delete(h.subscribers, prev)
		}
	}

	if h.subscribers[jobID] == nil {
		h.subscribers[jobID] = make(map[Subscriber]struct{})
	}
	h.subscribers[jobID][sub] = struct{}{}
	h.jobOf[sub] = jobID

	h.logger.Debug("Subscriber connected",
		slog.String("job_id", jobID),
		slog.Int("subscriber_count", len(h.subscribers[jobID])),
	)
}

// Disconnect removes sub from whatever job it watches. Idempotent.
func (h *Hub) Disconnect(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	jobID, ok := h.jobOf[sub]
	if !ok {
		return
	}

	delete(h.jobOf, sub)
	delete(h.subscribers[jobID], sub)
	if len(h.subscribers[jobID]) == 0 {
		delete(h.subscribers, jobID)
	}

	h.logger.Debug("Subscriber disconnected",
		slog.String("job_id", jobID),
	)
}

// SubscriberCount returns the number of live subscribers for jobID.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[jobID])
}

// Broadcast delivers msg to every subscriber of jobID. The subscriber set is
// copied under the read lock so connect/disconnect cannot race the iteration.
func (h *Hub) Broadcast(jobID string, msg any) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.subscribers[jobID]))
	for sub := range h.subscribers[jobID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.WriteJSON(msg); err != nil {
			h.logger.Warn("Broadcast delivery failed, dropping subscriber",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			h.Disconnect(sub)
			_ = sub.Close()
		}
	}
}
