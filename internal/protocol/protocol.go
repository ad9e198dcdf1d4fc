package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCall    = "CALL"
	TypeResult  = "RESULT"
	TypeRunEnd  = "RUN_END"
)

// Termination reasons carried in RunResult. Bankruptcy and horizon are
// expected terminal states, not faults; interrupted marks an external
// cancellation that still produced a best-effort result.
const (
	ReasonBankrupt    = "bankrupt"
	ReasonHorizon     = "horizon"
	ReasonInterrupted = "interrupted"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
