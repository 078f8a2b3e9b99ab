package discovery

import (
	"sync"

	"github.com/wardlink/wardlink/internal/logger"
)

// ListenerFunc receives the full roster snapshot after every registry
// change. Snapshots are full listings, not diffs.
type ListenerFunc func(nodes []*Node)

// Hub fans registry snapshots out to local listeners. Listeners are
// tracked by handle so unsubscribe works on identity, not on function
// value equality.
type Hub struct {
	mutex     sync.Mutex
	listeners map[uint64]ListenerFunc
	nextID    uint64
	logger    logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		listeners: make(map[uint64]ListenerFunc),
		logger:    log,
	}
}

// Subscribe registers fn and synchronously delivers the given snapshot
// before returning, so a new consumer never starts from an empty view.
// The returned function removes the subscription and is safe to call
// more than once.
func (h *Hub) Subscribe(fn ListenerFunc, snapshot []*Node) func() {
	h.mutex.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mutex.Unlock()

	h.deliver(fn, snapshot)

	return func() {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		delete(h.listeners, id)
	}
}

// Broadcast delivers the snapshot to every listener. A panicking
// listener is logged and skipped; it never blocks delivery to the rest.
func (h *Hub) Broadcast(nodes []*Node) {
	h.mutex.Lock()
	fns := make([]ListenerFunc, 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mutex.Unlock()

	for _, fn := range fns {
		h.deliver(fn, nodes)
	}
}

func (h *Hub) deliver(fn ListenerFunc, nodes []*Node) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Discovery listener panicked: %v", r)
		}
	}()
	fn(nodes)
}

// Len returns the number of active listeners.
func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.listeners)
}
