package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wardlink/wardlink/internal/logger"
	"github.com/wardlink/wardlink/internal/storage"
)

const identityKey = "node-id"

type identityRecord struct {
	NodeID string `json:"nodeId"`
}

// Identity loads or mints the stable id for the local device.
type Identity struct {
	store  storage.Store
	logger logger.Logger
}

// NewIdentity creates an Identity backed by the given store.
func NewIdentity(store storage.Store, log logger.Logger) *Identity {
	return &Identity{store: store, logger: log}
}

// GetOrCreate returns the persisted node id, minting and persisting a
// new one on first use. If the store is unusable the freshly minted id
// is kept in memory for this process run only; that degradation is
// logged, not returned as an error.
func (i *Identity) GetOrCreate() string {
	if data, err := i.store.Get(identityKey); err == nil {
		var rec identityRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr == nil && rec.NodeID != "" {
			i.logger.Debug("Loaded node identity: %s", rec.NodeID)
			return rec.NodeID
		}
		i.logger.Warn("Persisted node identity is corrupt, minting a new one")
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		i.logger.Warn("Failed to read node identity: %v", err)
	}

	id := newNodeID()
	data, err := json.Marshal(identityRecord{NodeID: id})
	if err == nil {
		err = i.store.Set(identityKey, data)
	}
	if err != nil {
		i.logger.Warn("Failed to persist node identity, using ephemeral id %s: %v", id, err)
	} else {
		i.logger.Info("Created node identity: %s", id)
	}
	return id
}

// newNodeID mints a time-based token with a random suffix, unique
// enough for one deployment.
func newNodeID() string {
	return fmt.Sprintf("node-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
