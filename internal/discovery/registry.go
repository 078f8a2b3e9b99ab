package discovery

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wardlink/wardlink/internal/logger"
)

// Registry is the authoritative in-memory table of known peers. It is
// guarded by a single mutex because mutations arrive from the socket
// read loop and from the timer goroutines. Mutating methods report
// whether anything changed so the service can batch notification and
// persistence per logical event rather than per node.
type Registry struct {
	mutex  sync.RWMutex
	nodes  map[string]*Node
	clock  clock.Clock
	logger logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(clk clock.Clock, log logger.Logger) *Registry {
	return &Registry{
		nodes:  make(map[string]*Node),
		clock:  clk,
		logger: log,
	}
}

// Upsert applies a fresh announce or bulk-sync record: last-writer-wins
// on the full record, status forced online, LastSeen refreshed. It
// always counts as a change because LastSeen moves forward.
func (r *Registry) Upsert(node *Node) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored := node.Clone()
	stored.Status = StatusOnline
	stored.LastSeen = r.clock.Now()

	if _, exists := r.nodes[stored.ID]; !exists {
		r.logger.Info("Discovered node %s (%s %q at %s:%d)",
			stored.ID, stored.Type, stored.Name, stored.IP, stored.Port)
	}
	r.nodes[stored.ID] = stored
}

// Put inserts or replaces a record exactly as given, without touching
// status or LastSeen. Used for cache rehydration and manual nodes.
func (r *Registry) Put(node *Node) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.nodes[node.ID] = node.Clone()
}

// MarkOffline transitions a node to offline. Returns false when the
// node is unknown or already offline.
func (r *Registry) MarkOffline(id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	node, exists := r.nodes[id]
	if !exists || node.Status == StatusOffline {
		return false
	}
	node.Status = StatusOffline
	r.logger.Info("Node %s (%q) is now offline", node.ID, node.Name)
	return true
}

// Remove deletes a record outright. Only manual nodes are ever removed;
// discovered nodes are kept offline so the history of known peers
// survives restarts.
func (r *Registry) Remove(id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.nodes[id]; !exists {
		return false
	}
	delete(r.nodes, id)
	return true
}

// Get returns a copy of the node with the given id.
func (r *Registry) Get(id string) (*Node, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	node, exists := r.nodes[id]
	if !exists {
		return nil, false
	}
	return node.Clone(), true
}

// All returns a snapshot of every known node, ordered by id so
// subscribers see stable listings.
func (r *Registry) All() []*Node {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.snapshotLocked(func(*Node) bool { return true })
}

// ByType returns every node of the given type regardless of status.
func (r *Registry) ByType(t NodeType) []*Node {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.snapshotLocked(func(n *Node) bool { return n.Type == t })
}

// OnlineByType returns the online nodes of the given type.
func (r *Registry) OnlineByType(t NodeType) []*Node {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.snapshotLocked(func(n *Node) bool {
		return n.Type == t && n.Status == StatusOnline
	})
}

func (r *Registry) snapshotLocked(keep func(*Node) bool) []*Node {
	out := make([]*Node, 0, len(r.nodes))
	for _, node := range r.nodes {
		if keep(node) {
			out = append(out, node.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SweepStale demotes every online node not seen since the cutoff to
// offline in one pass under the lock, so no reader observes a
// half-swept table. Manual nodes are exempt from the timeout rule.
// Returns the number of nodes demoted.
func (r *Registry) SweepStale(cutoff time.Time) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	demoted := 0
	for _, node := range r.nodes {
		if node.IsManual() || node.Status != StatusOnline {
			continue
		}
		if node.LastSeen.Before(cutoff) {
			node.Status = StatusOffline
			demoted++
			r.logger.Info("Node %s (%q) timed out, last seen %v",
				node.ID, node.Name, node.LastSeen.Format(time.RFC3339))
		}
	}
	return demoted
}

// Len returns the number of known nodes.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.nodes)
}
