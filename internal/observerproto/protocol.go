package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Only kernels owned by or involving these actors are sent. Empty means
	// every actor.
	Actors []int `json:"actors,omitempty"`
	// Also send value kernels, not just interactions.
	Values bool `json:"values,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	Seed            int64    `json:"seed"`
	CatalogDigest   string   `json:"catalog_digest"`
	Tick            int      `json:"tick"`
	Actors          []string `json:"actors"`
}

// Server -> Client. Sent every tick, possibly with no kernels.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            int    `json:"tick"`
	Day             int    `json:"day"`
	Digest          string `json:"digest"`

	Kernels []KernelInfo `json:"kernels,omitempty"`
}

type KernelInfo struct {
	ID           int     `json:"id"`
	Kind         string  `json:"kind"`
	Owner        int     `json:"owner"`
	Tag          string  `json:"tag"`
	Value        float64 `json:"value,omitempty"`
	Chance       float64 `json:"chance,omitempty"`
	Reasons      []int   `json:"reasons,omitempty"`
	Participants []int   `json:"participants,omitempty"`
	Text         string  `json:"text,omitempty"`
}
