package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Account         string `json:"account"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	SessionID       string            `json:"session_id"`
	Account         string            `json:"account"`
	Components      map[string]string `json:"components"`
	Now             int64             `json:"now"`
}

// TX (client -> server). Which fields matter depends on Op.
type TxMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Op              string `json:"op"`

	// Caller is filled by the server from the session; clients may omit it.
	Caller string `json:"caller,omitempty"`

	Target   string   `json:"target,omitempty"`
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	Amount   string   `json:"amount,omitempty"`
	Amounts  []string `json:"amounts,omitempty"`
	Kind     int      `json:"kind"`
	Kinds    []int    `json:"kinds,omitempty"`
	Data     string   `json:"data,omitempty"`
	Approved bool     `json:"approved,omitempty"`
	Combo    string   `json:"combo,omitempty"`
	Prices   []string `json:"prices,omitempty"`
	ParcelID uint64   `json:"parcel_id,omitempty"`
}

// TX_RESULT (server -> client)
type TxResultMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ID              string  `json:"id"`
	Op              string  `json:"op"`
	Seq             uint64  `json:"seq"`
	Time            int64   `json:"time"`
	OK              bool    `json:"ok"`
	Code            string  `json:"code,omitempty"`
	Message         string  `json:"message,omitempty"`
	Events          []Event `json:"events,omitempty"`
}

// QUERY (client -> server)
type QueryMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Query           string `json:"query"`

	Account  string `json:"account,omitempty"`
	Operator string `json:"operator,omitempty"`
	Kind     int    `json:"kind"`
	Combo    string `json:"combo,omitempty"`
	ParcelID uint64 `json:"parcel_id,omitempty"`
}

// QUERY_RESULT (server -> client)
type QueryResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Result          Event  `json:"result,omitempty"`
}

// Event is a structured record emitted by a committed transaction.
type Event map[string]interface{}
