package gateway

import "encoding/json"

// Gateway opcodes.
const (
	OpDispatch            = 0
	OpHeartbeat           = 1
	OpIdentify            = 2
	OpPresenceUpdate      = 3
	OpVoiceStateUpdate    = 4
	OpResume              = 6
	OpReconnect           = 7
	OpRequestGuildMembers = 8
	OpInvalidSession      = 9
	OpHello               = 10
	OpHeartbeatAck        = 11
)

// Dispatch event names the session machinery cares about.
const (
	EventReady   = "READY"
	EventResumed = "RESUMED"
)

// Frame is one inbound gateway payload envelope. Data is decoded further
// per opcode; Sequence and Event are only present on dispatch frames.
type Frame struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d"`
	Sequence *uint64         `json:"s"`
	Event    string          `json:"t"`
}

type helloData struct {
	HeartbeatInterval uint32 `json:"heartbeat_interval"`
}

type readyData struct {
	SessionID string `json:"session_id"`
}

type heartbeatPayload struct {
	Op   int     `json:"op"`
	Data *uint64 `json:"d"`
}

type identifyProperties struct {
	OS      string `json:"$os"`
	Browser string `json:"$browser"`
	Device  string `json:"$device"`
}

type identifyData struct {
	Token          string             `json:"token"`
	Properties     identifyProperties `json:"properties"`
	Compress       bool               `json:"compress"`
	LargeThreshold int                `json:"large_threshold"`
	Shard          [2]int             `json:"shard"`
	Intents        int                `json:"intents"`
}

type identifyPayload struct {
	Op   int          `json:"op"`
	Data identifyData `json:"d"`
}

type resumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  uint64 `json:"seq"`
}

type resumePayload struct {
	Op   int        `json:"op"`
	Data resumeData `json:"d"`
}
