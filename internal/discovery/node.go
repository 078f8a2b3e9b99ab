package discovery

import (
	"fmt"
	"time"
)

// NodeType classifies a ward device.
type NodeType string

const (
	TypeBedside      NodeType = "bedside"
	TypeNurseStation NodeType = "nurse-station"
	TypeAdmin        NodeType = "admin"
)

// NodeStatus is derived state, never set arbitrarily: online comes from
// a fresh announce or bulk sync, offline from an explicit leave or the
// staleness sweep.
type NodeStatus string

const (
	StatusOnline  NodeStatus = "online"
	StatusBusy    NodeStatus = "busy"
	StatusOffline NodeStatus = "offline"
)

// ManualIDPrefix namespaces user-entered nodes. Manual nodes are never
// evicted by the staleness sweep and persist until explicitly removed.
const ManualIDPrefix = "manual-"

// defaultPort is advertised for peers whose announce carried no port.
const defaultPort = 8001

// Node is a discoverable peer device record held in the registry.
type Node struct {
	ID           string     `json:"id"`
	Type         NodeType   `json:"type"`
	Name         string     `json:"name"`
	Room         string     `json:"room,omitempty"`
	IP           string     `json:"ip"`
	Port         int        `json:"port"`
	LastSeen     time.Time  `json:"lastSeen"`
	Status       NodeStatus `json:"status"`
	Capabilities []string   `json:"capabilities,omitempty"`
}

// ManualID builds the reserved id for a user-entered node.
func ManualID(ip string, port int) string {
	return fmt.Sprintf("%s%s:%d", ManualIDPrefix, ip, port)
}

// IsManualID reports whether id carries the manual namespace prefix.
func IsManualID(id string) bool {
	return len(id) > len(ManualIDPrefix) && id[:len(ManualIDPrefix)] == ManualIDPrefix
}

// IsManual reports whether the node was entered by hand rather than
// discovered through the relay.
func (n *Node) IsManual() bool {
	return IsManualID(n.ID)
}

// URL returns the node's plain HTTP base URL.
func (n *Node) URL() string {
	return fmt.Sprintf("http://%s:%d", n.IP, n.Port)
}

// Clone returns a deep copy so callers can hand nodes to subscribers
// without sharing registry-owned memory.
func (n *Node) Clone() *Node {
	out := *n
	if n.Capabilities != nil {
		out.Capabilities = make([]string, len(n.Capabilities))
		copy(out.Capabilities, n.Capabilities)
	}
	return &out
}
