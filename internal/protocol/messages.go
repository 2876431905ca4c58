package protocol

// Client -> Server. First message on a renderer connection.
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// Client -> Server. Moves the camera-tracked edge of the swim box.
type CameraMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	CameraX         float64 `json:"camera_x"`
}

// Client -> Server. Species + slot as resolved by the renderer's pick.
// Selected is the client's currently selected species; empty accepts any.
type CatchMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Species         string `json:"species"`
	Slot            int    `json:"slot"`
	Selected        string `json:"selected,omitempty"`
}

type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	SessionID       string        `json:"session_id"`
	Tank            TankParams    `json:"tank"`
	Species         []SpeciesInfo `json:"species"`
	CatalogDigest   string        `json:"catalog_digest,omitempty"`
}

type TankParams struct {
	ID             string  `json:"id"`
	TickRateHz     int     `json:"tick_rate_hz"`
	IndexRefreshHz float64 `json:"index_refresh_hz"`
	Volume         Box     `json:"volume"`
}

type Box struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

type SpeciesInfo struct {
	Key      string     `json:"key"`
	Name     string     `json:"name"`
	Capacity int        `json:"capacity"`
	Active   int        `json:"active"`
	Render   RenderInfo `json:"render"`
}

type RenderInfo struct {
	Kind     string     `json:"kind"` // "MODEL" or "FALLBACK"
	Model    string     `json:"model,omitempty"`
	Fallback *Primitive `json:"fallback,omitempty"`
}

type Primitive struct {
	Shape  string  `json:"shape"`
	Length float64 `json:"length"`
	Radius float64 `json:"radius"`
}

// Server -> Client. Sent every tick, latest wins.
type FrameMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	Clock           float64        `json:"clock"`
	Volume          Box            `json:"volume"`
	Species         []SpeciesFrame `json:"species"`
}

type SpeciesFrame struct {
	Key    string `json:"key"`
	Active int    `json:"active"`
	Poses  []Pose `json:"poses"`
}

type Pose struct {
	Slot int        `json:"slot"`
	ID   uint64     `json:"id"`
	Pos  [3]float64 `json:"pos"`
	Rot  [4]float64 `json:"rot"`
}

type CatchResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Status          string `json:"status"`
	Code            string `json:"code,omitempty"`
	Species         string `json:"species"`
	Slot            int    `json:"slot"`
	AgentID         uint64 `json:"agent_id,omitempty"`
	Active          int    `json:"active"`
	Matched         bool   `json:"matched"`
}

// Server -> Client. Broadcast after every removal.
type RemovedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Species         string `json:"species"`
	AgentID         uint64 `json:"agent_id"`
	Active          int    `json:"active"`
}
