package worker

import "github.com/cozy-creator/img2img/internal/backend"

type Command string

const (
	CommandLoad   Command = "LOAD"
	CommandSample Command = "SAMPLE"
	CommandPing   Command = "PING"
)

// Error codes the worker uses to classify failures.
const (
	CodeModelNotFound = "model_not_found"
	CodeInvalidDevice = "invalid_device"
	CodeOutOfMemory   = "out_of_memory"
)

// Request is the msgpack envelope sent in a single frame.
type Request struct {
	Command Command              `msgpack:"command"`
	Load    *backend.LoadRequest `msgpack:"load,omitempty"`
	Sample  *SampleParams        `msgpack:"sample,omitempty"`
}

type SampleParams struct {
	HandleID      string  `msgpack:"handle_id"`
	Prompt        string  `msgpack:"prompt"`
	Image         []byte  `msgpack:"image"`
	Strength      float64 `msgpack:"strength"`
	GuidanceScale float64 `msgpack:"guidance_scale"`
	Seed          int64   `msgpack:"seed"`
	Steps         int     `msgpack:"num_inference_steps"`
	Device        string  `msgpack:"device"`
}

// Response is the msgpack envelope the worker answers with.
type Response struct {
	Success  bool     `msgpack:"success"`
	Code     string   `msgpack:"code,omitempty"`
	Error    string   `msgpack:"error,omitempty"`
	Message  string   `msgpack:"message,omitempty"`
	HandleID string   `msgpack:"handle_id,omitempty"`
	Images   [][]byte `msgpack:"images,omitempty"`
}
