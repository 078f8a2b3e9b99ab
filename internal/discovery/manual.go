package discovery

import (
	"encoding/json"
	"errors"

	"github.com/wardlink/wardlink/internal/logger"
	"github.com/wardlink/wardlink/internal/storage"
)

// Storage keys for the two node records. The manual set is persisted
// separately from the discovered-node cache so a cache rewrite can
// never clobber user-entered overrides.
const (
	cacheKey  = "discovered-nodes"
	manualKey = "manual-nodes"
)

// nodeStore persists node lists as JSON records, best-effort: failures
// are logged and the service continues in memory-only mode.
type nodeStore struct {
	store  storage.Store
	logger logger.Logger
}

func newNodeStore(store storage.Store, log logger.Logger) *nodeStore {
	return &nodeStore{store: store, logger: log}
}

func (ns *nodeStore) load(key string) []*Node {
	data, err := ns.store.Get(key)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			ns.logger.Warn("Failed to load %s: %v", key, err)
		}
		return nil
	}
	var nodes []*Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		ns.logger.Warn("Discarding corrupt %s record: %v", key, err)
		return nil
	}
	return nodes
}

func (ns *nodeStore) save(key string, nodes []*Node) {
	data, err := json.Marshal(nodes)
	if err == nil {
		err = ns.store.Set(key, data)
	}
	if err != nil {
		ns.logger.Warn("Failed to persist %s: %v", key, err)
	}
}

// newManualNode builds a user-entered override record. Manual nodes
// start offline; a later announce from the same device would be a
// distinct discovered record, so their status only changes by hand.
func newManualNode(ip string, port int, nodeType NodeType, name string) *Node {
	return &Node{
		ID:     ManualID(ip, port),
		Type:   nodeType,
		Name:   name,
		IP:     ip,
		Port:   port,
		Status: StatusOffline,
	}
}
