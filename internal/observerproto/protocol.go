package observerproto

import "cryptotown.ai/internal/protocol"

// Version is the observer protocol version (separate from the account WS protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeEvent     = "EVENT"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Types restricts the feed to these event types. Empty means all.
	Types []string `json:"types,omitempty"`
	// Account restricts the feed to events whose fields mention it.
	Account string `json:"account,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string            `json:"protocol_version"`
	TownID          string            `json:"town_id"`
	Seq             uint64            `json:"seq"`
	Now             int64             `json:"now"`
	Components      map[string]string `json:"components"`
}

// Server -> Client. One per committed event.
type EventMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Seq             uint64         `json:"seq"`
	Time            int64          `json:"time"`
	TxID            string         `json:"tx_id"`
	Event           protocol.Event `json:"event"`
}
