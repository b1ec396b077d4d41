package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Notification is an asynchronous message delivered to terminals over the
// event stream. MTI is a decorative ISO 8583 label.
type Notification struct {
	ID            string    `json:"id"`
	MTI           string    `json:"mti"`
	Description   string    `json:"description"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Frame         string    `json:"frame,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Sink receives every published notification, e.g. a message broker.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}

var (
	ErrUnknownNotification = errors.New("unknown notification")
	ErrClosed              = errors.New("hub closed")
)

const (
	subscriberBuffer = 64
	maxPending       = 256
)

// Hub fans notifications out to stream subscribers and sinks and tracks
// which notifications are still waiting for an acknowledgement. Every
// subscriber receives every notification, so acknowledging a known id is
// idempotent: the first ack clears it, later ones succeed without effect.
type Hub struct {
	logger *slog.Logger
	sinks  []Sink

	mu      sync.Mutex
	subs    map[int]chan Notification
	nextSub int
	acked   map[string]bool
	order   []string
	unacked int
	closed  bool
}

func NewHub(logger *slog.Logger, sinks ...Sink) *Hub {
	return &Hub{
		logger:  logger,
		sinks:   sinks,
		subs:    make(map[int]chan Notification),
		acked:   make(map[string]bool),
	}
}

// Subscribe registers a stream subscriber. The returned channel is closed by
// cancel or when the hub closes.
func (h *Hub) Subscribe() (<-chan Notification, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, ErrClosed
	}
	id := h.nextSub
	h.nextSub++
	ch := make(chan Notification, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

// Publish stamps n with an id and timestamp when missing and delivers it.
// Slow subscribers drop messages rather than block the publisher.
func (h *Hub) Publish(ctx context.Context, n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return n
	}
	h.track(n)
	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.logger.Warn("dropping notification for slow subscriber", slog.Int("subscriber", id), slog.String("mti", n.MTI))
		}
	}
	h.mu.Unlock()

	for _, s := range h.sinks {
		if err := s.Publish(ctx, n); err != nil {
			h.logger.Error("publishing notification to sink", slog.String("mti", n.MTI), slog.Any("err", err))
		}
	}
	return n
}

// track must be called with mu held.
func (h *Hub) track(n Notification) {
	h.acked[n.ID] = false
	h.unacked++
	h.order = append(h.order, n.ID)
	for len(h.order) > maxPending {
		oldest := h.order[0]
		if !h.acked[oldest] {
			h.unacked--
		}
		delete(h.acked, oldest)
		h.order = h.order[1:]
	}
}

// Ack marks a notification as received by a terminal. Only ids that were
// never published, or have aged out, are unknown.
func (h *Hub) Ack(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	acked, ok := h.acked[id]
	if !ok {
		return ErrUnknownNotification
	}
	if !acked {
		h.acked[id] = true
		h.unacked--
	}
	return nil
}

// Pending returns the number of notifications not yet acknowledged.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unacked
}

// Close ends every subscription. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
