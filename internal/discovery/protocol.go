package discovery

import (
	"encoding/json"
	"fmt"
)

// Message types exchanged with the relay. Unknown inbound types are a
// forward-compatible no-op.
const (
	MsgNodeAnnounce = "NODE_ANNOUNCE"
	MsgNodeList     = "NODE_LIST"
	MsgNodeLeave    = "NODE_LEAVE"
	MsgPing         = "PING"
	MsgPong         = "PONG"
)

// Message is the JSON envelope for every discovery frame. Only the
// fields relevant to the given type are populated.
type Message struct {
	Type         string       `json:"type"`
	NodeID       string       `json:"nodeId,omitempty"`
	NodeType     NodeType     `json:"nodeType,omitempty"`
	NodeName     string       `json:"nodeName,omitempty"`
	Room         string       `json:"room,omitempty"`
	IP           string       `json:"ip,omitempty"`
	Port         int          `json:"port,omitempty"`
	Capabilities []string     `json:"capabilities,omitempty"`
	Nodes        []NodeRecord `json:"nodes,omitempty"`
}

// NodeRecord is one entry of a NODE_LIST bulk sync.
type NodeRecord struct {
	NodeID       string   `json:"nodeId"`
	NodeType     NodeType `json:"nodeType"`
	NodeName     string   `json:"nodeName"`
	Room         string   `json:"room,omitempty"`
	IP           string   `json:"ip,omitempty"`
	Port         int      `json:"port,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func decodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed discovery message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("discovery message missing type")
	}
	return &msg, nil
}

func (m *Message) encode() ([]byte, error) {
	return json.Marshal(m)
}

// announceMessage builds the local node's self-announcement.
func announceMessage(local *Node) *Message {
	return &Message{
		Type:         MsgNodeAnnounce,
		NodeID:       local.ID,
		NodeType:     local.Type,
		NodeName:     local.Name,
		Room:         local.Room,
		IP:           local.IP,
		Port:         local.Port,
		Capabilities: local.Capabilities,
	}
}

func pongMessage(nodeID string) *Message {
	return &Message{Type: MsgPong, NodeID: nodeID}
}

// nodeFromAnnounce converts an announce envelope into a registry
// record. The relay fills ip when it can; otherwise the node stays
// addressable only by id.
func nodeFromAnnounce(m *Message) *Node {
	return buildNode(m.NodeID, m.NodeType, m.NodeName, m.Room, m.IP, m.Port, m.Capabilities)
}

// nodeFromRecord converts one NODE_LIST entry into a registry record.
func nodeFromRecord(rec NodeRecord) *Node {
	return buildNode(rec.NodeID, rec.NodeType, rec.NodeName, rec.Room, rec.IP, rec.Port, rec.Capabilities)
}

func buildNode(id string, t NodeType, name, room, ip string, port int, caps []string) *Node {
	if ip == "" {
		ip = "unknown"
	}
	if port == 0 {
		port = defaultPort
	}
	return &Node{
		ID:           id,
		Type:         t,
		Name:         name,
		Room:         room,
		IP:           ip,
		Port:         port,
		Capabilities: caps,
	}
}
