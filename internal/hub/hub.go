package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"scrapwatch/internal/model"
	"scrapwatch/internal/observability"
)

// Observer is one registered snapshot consumer. The data channel is never
// closed; removal is signalled through Done so a publish racing an
// unregister can never hit a closed channel.
type Observer struct {
	id   uuid.UUID
	ch   chan model.Snapshot
	done chan struct{}
	once sync.Once
}

func (o *Observer) ID() uuid.UUID {
	return o.id
}

// C yields snapshots published after registration.
func (o *Observer) C() <-chan model.Snapshot {
	return o.ch
}

// Done is closed when the observer has been unregistered.
func (o *Observer) Done() <-chan struct{} {
	return o.done
}

// Hub owns the observer registry and fans published snapshots out to every
// registered observer. Delivery is non-blocking per observer: a saturated
// buffer counts as a broken outbound path and the observer is dropped, so
// one slow consumer never stalls ingestion or its peers.
type Hub struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	buffer  int

	mu        sync.RWMutex
	observers map[uuid.UUID]*Observer
}

func New(buffer int, logger *slog.Logger, metrics *observability.Metrics) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		logger:    logger,
		metrics:   metrics,
		buffer:    buffer,
		observers: make(map[uuid.UUID]*Observer),
	}
}

func (h *Hub) Register() *Observer {
	o := &Observer{
		id:   uuid.New(),
		ch:   make(chan model.Snapshot, h.buffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.observers[o.id] = o
	n := len(h.observers)
	h.mu.Unlock()
	h.metrics.SetObservers(n)
	if h.logger != nil {
		h.logger.Info("observer registered", "observer", o.id, "total", n)
	}
	return o
}

// Unregister removes an observer. Idempotent: removing twice or passing an
// observer the hub never knew is a no-op.
func (h *Hub) Unregister(o *Observer) {
	if o == nil {
		return
	}
	h.mu.Lock()
	_, known := h.observers[o.id]
	delete(h.observers, o.id)
	n := len(h.observers)
	h.mu.Unlock()
	o.once.Do(func() { close(o.done) })
	if !known {
		return
	}
	h.metrics.SetObservers(n)
	if h.logger != nil {
		h.logger.Info("observer unregistered", "observer", o.id, "total", n)
	}
}

// Publish delivers snap to every currently-registered observer. The registry
// is copied under the read lock first so concurrent register/unregister calls
// never race the delivery loop.
func (h *Hub) Publish(snap model.Snapshot) {
	h.mu.RLock()
	targets := make([]*Observer, 0, len(h.observers))
	for _, o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	for _, o := range targets {
		select {
		case o.ch <- snap:
		case <-o.done:
		default:
			if h.logger != nil {
				h.logger.Warn("observer buffer saturated, dropping observer", "observer", o.id)
			}
			h.metrics.DeliveryDropped()
			h.Unregister(o)
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}
