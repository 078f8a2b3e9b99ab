package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/wardlink/wardlink/internal/config"
	"github.com/wardlink/wardlink/internal/logger"
	"github.com/wardlink/wardlink/internal/storage"
)

// Service wires identity, registry, transport and timers into the
// public discovery API. Construct one per process and pass the handle
// to consumers; reconfiguration means Stop, construct anew, Start.
type Service struct {
	config   *config.Config
	logger   logger.Logger
	clock    clock.Clock
	store    *nodeStore
	local    *Node
	registry *Registry
	hub      *Hub

	transport *Transport
	heartbeat *Heartbeat
	sweeper   *Sweeper

	mutex   sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewService loads or creates the node identity, rehydrates cached and
// manual nodes into the registry and prepares the transport. Nothing
// touches the network until Start.
func NewService(cfg *config.Config, store storage.Store, probe CapabilityProbe,
	clk clock.Clock, log logger.Logger) (*Service, error) {

	if log == nil {
		log = logger.Nop{}
	}
	if store == nil {
		return nil, fmt.Errorf("discovery service requires a storage backend")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid discovery config: %w", err)
	}

	nodeID := NewIdentity(store, log).GetOrCreate()

	var caps []string
	if probe != nil {
		caps = probe.Capabilities()
	}

	s := &Service{
		config: cfg,
		logger: log,
		clock:  clk,
		store:  newNodeStore(store, log),
		local: &Node{
			ID:           nodeID,
			Type:         NodeType(cfg.NodeType),
			Name:         cfg.NodeName,
			Room:         cfg.Room,
			IP:           LocalIP(),
			Port:         cfg.ServicePort,
			Status:       StatusOnline,
			Capabilities: caps,
		},
		registry: NewRegistry(clk, log),
		hub:      NewHub(log),
	}

	s.rehydrate()

	transport, err := NewTransport(cfg.BackendURL, cfg.ReconnectDelay, clk,
		s.handleMessage, s.announce, log)
	if err != nil {
		return nil, err
	}
	s.transport = transport
	s.heartbeat = NewHeartbeat(cfg.HeartbeatInterval, clk, transport, s.announce, log)
	s.sweeper = NewSweeper(cfg.DiscoveryInterval, cfg.NodeTimeout, clk, s.registry,
		s.publish, log)

	log.Info("Discovery service ready: node %s (%s %q)", nodeID, cfg.NodeType, cfg.NodeName)
	return s, nil
}

// rehydrate loads the persisted node records. Cached discovered nodes
// come back offline until the relay reconfirms them; manual overrides
// come back as stored.
func (s *Service) rehydrate() {
	for _, node := range s.store.load(cacheKey) {
		if node.ID == "" || node.ID == s.local.ID || node.IsManual() {
			continue
		}
		node.Status = StatusOffline
		s.registry.Put(node)
	}
	for _, node := range s.store.load(manualKey) {
		if !node.IsManual() {
			continue
		}
		s.registry.Put(node)
	}
	if n := s.registry.Len(); n > 0 {
		s.logger.Info("Rehydrated %d known node(s) from storage", n)
	}
}

// Start opens the relay connection and begins the heartbeat and
// staleness timers. Calling Start on a running service is a no-op, so
// no duplicate timers can exist.
func (s *Service) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.transport.Start()
	s.heartbeat.Start(ctx)
	s.sweeper.Start(ctx)
}

// Stop cancels both timers, any pending reconnect, and closes the
// socket. Safe to call repeatedly or before Start.
func (s *Service) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.running {
		return
	}
	s.running = false

	s.cancel()
	s.cancel = nil
	s.transport.Stop()
	s.logger.Info("Discovery service stopped")
}

// announce builds the local NODE_ANNOUNCE frame.
func (s *Service) announce() *Message {
	return announceMessage(s.local)
}

// handleMessage dispatches one inbound relay frame. Unknown types are
// ignored so newer relays can speak to older nodes.
func (s *Service) handleMessage(m *Message) {
	switch m.Type {
	case MsgNodeAnnounce:
		if m.NodeID == "" || m.NodeID == s.local.ID {
			return
		}
		s.registry.Upsert(nodeFromAnnounce(m))
		s.publish()

	case MsgNodeList:
		applied := 0
		for _, rec := range m.Nodes {
			if rec.NodeID == "" || rec.NodeID == s.local.ID {
				continue
			}
			s.registry.Upsert(nodeFromRecord(rec))
			applied++
		}
		if applied > 0 {
			s.publish()
		}

	case MsgNodeLeave:
		if s.registry.MarkOffline(m.NodeID) {
			s.publish()
		}

	case MsgPing:
		if err := s.transport.Send(pongMessage(s.local.ID)); err != nil {
			s.logger.Warn("Failed to answer ping: %v", err)
		}

	default:
		s.logger.Debug("Ignoring message of unknown type %q", m.Type)
	}
}

// publish broadcasts the current roster and persists the discovered
// subset. One call per logical change, however many nodes it touched.
func (s *Service) publish() {
	snapshot := s.registry.All()
	s.hub.Broadcast(snapshot)

	discovered := snapshot[:0:0]
	for _, node := range snapshot {
		if !node.IsManual() {
			discovered = append(discovered, node)
		}
	}
	s.store.save(cacheKey, discovered)
}

func (s *Service) persistManuals() {
	manuals := make([]*Node, 0)
	for _, node := range s.registry.All() {
		if node.IsManual() {
			manuals = append(manuals, node)
		}
	}
	s.store.save(manualKey, manuals)
}

// Nodes returns every known node.
func (s *Service) Nodes() []*Node {
	return s.registry.All()
}

// NodesByType returns every node of the given type regardless of status.
func (s *Service) NodesByType(t NodeType) []*Node {
	return s.registry.ByType(t)
}

// NurseStations returns the online nurse stations.
func (s *Service) NurseStations() []*Node {
	return s.registry.OnlineByType(TypeNurseStation)
}

// BedsideUnits returns the online bedside units.
func (s *Service) BedsideUnits() []*Node {
	return s.registry.OnlineByType(TypeBedside)
}

// AddManualNode inserts a user-entered peer override and persists it.
func (s *Service) AddManualNode(ip string, port int, nodeType NodeType, name string) *Node {
	node := newManualNode(ip, port, nodeType, name)
	s.registry.Put(node)
	s.logger.Info("Added manual node %s (%q)", node.ID, name)
	s.publish()
	s.persistManuals()
	return node.Clone()
}

// RemoveManualNode deletes a manual override. Any id without the manual
// prefix is a silent no-op; discovered nodes are never deleted.
func (s *Service) RemoveManualNode(id string) {
	if !IsManualID(id) {
		s.logger.Debug("Ignoring removal of non-manual node %q", id)
		return
	}
	if s.registry.Remove(id) {
		s.logger.Info("Removed manual node %s", id)
		s.publish()
		s.persistManuals()
	}
}

// Subscribe registers a roster listener. The listener runs once
// synchronously with the current snapshot before Subscribe returns,
// then once per registry change. The returned function unsubscribes.
func (s *Service) Subscribe(fn ListenerFunc) func() {
	return s.hub.Subscribe(fn, s.registry.All())
}

// NodeID returns the stable local node id.
func (s *Service) NodeID() string {
	return s.local.ID
}

// LocalNode returns a copy of the local announce record.
func (s *Service) LocalNode() *Node {
	return s.local.Clone()
}

// NodeURL constructs the plain HTTP base URL for a peer.
func (s *Service) NodeURL(node *Node) string {
	return node.URL()
}

// TransportState exposes the relay connection state, mainly for
// logging and status displays.
func (s *Service) TransportState() TransportState {
	return s.transport.State()
}
