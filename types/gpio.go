package types

// GPIOConfig is supplied retained on "config/gpio".
type GPIOConfig struct {
	PollMS int          `json:"poll_ms,omitempty"`
	Pins   []GPIOParams `json:"pins"`
}

// GPIOParams configures one named pin.
type GPIOParams struct {
	ID      string `json:"id"`
	Pin     string `json:"pin"`               // "PA5", "EXP3", ...
	Mode    string `json:"mode"`              // "input" | "output"
	Pull    string `json:"pull,omitempty"`    // "up" | "down" | "none"
	Initial *bool  `json:"initial,omitempty"` // for outputs
	Invert  bool   `json:"invert,omitempty"`

	// Inputs only.
	Edge       string `json:"edge,omitempty"` // "rising","falling","both","none"
	DebounceMS int    `json:"debounce_ms,omitempty"`
}

// GPIOInfo is published retained on gpio/<id>/info.
type GPIOInfo struct {
	Pin           string `json:"pin"`
	Mode          string `json:"mode"`
	Pull          string `json:"pull"`
	Invert        bool   `json:"invert"`
	Edge          string `json:"edge,omitempty"`
	SchemaVersion int    `json:"schema_version"`
}

// GPIOState is published retained on gpio/<id>/state.
type GPIOState struct {
	Link  Link   `json:"link"`
	Level *int   `json:"level,omitempty"`
	Error string `json:"error,omitempty"`
	TS    int64  `json:"ts_ms"`
}

// GPIOEvent is published on gpio/<id>/event.
type GPIOEvent struct {
	Edge  string `json:"edge"`
	Level int    `json:"level"`
	TS    int64  `json:"ts_ms"`
}
