// Package ctlproto defines the newline-delimited JSON RPC spoken over the
// local control socket (§4.8 of SPEC_FULL.md) between cmd/rscvd and
// cmd/rscvctl: one Request per line, one Response per line.
package ctlproto

// Request is a single control-socket command.
type Request struct {
	Cmd    string      `json:"cmd"`
	Config *ConfigView `json:"config,omitempty"`
}

// ConfigView is the JSON-transportable subset of config.Config carried by
// "start"/"reload" requests.
type ConfigView struct {
	ServerURL         string `json:"server_url,omitempty"`
	Token             string `json:"token,omitempty"`
	Username          string `json:"username,omitempty"`
	Password          string `json:"password,omitempty"`
	MaxImageKB        int    `json:"max_image_kb,omitempty"`
	ConnectionMode    string `json:"connection_mode,omitempty"`
	LANDeviceName     string `json:"lan_device_name,omitempty"`
	TrustInsecureCert bool   `json:"trust_insecure_cert,omitempty"`
	LANPreSharedKey   string `json:"lan_psk,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	OK     bool    `json:"ok"`
	Error  string  `json:"error,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// Status mirrors the daemon's current state for "status" requests.
type Status struct {
	Connection string      `json:"connection"`
	DeviceID   string      `json:"device_id"`
	Peers      []PeerView  `json:"peers,omitempty"`
	Events     []EventView `json:"recent_events,omitempty"`
}

// PeerView is one LAN peer entry in a status snapshot.
type PeerView struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	Addr       string `json:"addr"`
	TCPPort    int    `json:"tcp_port"`
	LastSeen   string `json:"last_seen"`
}

// EventView is one recent RuntimeEvent rendered for display.
type EventView struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}
