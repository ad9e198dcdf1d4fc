package protocol

import "encoding/json"

// HELLO (driver -> engine)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Benchmark       string `json:"benchmark"` // "vending" or "rideshare"
	Model           string `json:"model"`
	Seed            int64  `json:"seed,omitempty"`
}

// WELCOME (engine -> driver)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	RunID           string     `json:"run_id"`
	Benchmark       string     `json:"benchmark"`
	PolicyDigest    string     `json:"policy_digest"`
	Tools           []ToolInfo `json:"tools"`
}

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// CALL (driver -> engine): one tool invocation.
type CallMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ID              string         `json:"id"`
	Tool            string         `json:"tool"`
	Input           map[string]any `json:"input,omitempty"`
}

// RESULT (engine -> driver): always sent for every CALL, success or not.
type ResultMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ID              string         `json:"id"`
	OK              bool           `json:"ok"`
	Code            string         `json:"code,omitempty"`
	Message         string         `json:"message,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	Step            uint64         `json:"step"`
	Period          int            `json:"period"`
}

// RUN_END (engine -> driver): terminal result for the run.
type RunEndMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Result          RunResult `json:"result"`
}

// RunResult is the only artifact handed to external results storage.
// Field names and optionality are a compatibility contract; renaming a
// field here breaks downstream tooling.
type RunResult struct {
	FinalStep         uint64        `json:"finalStep"`
	Score             float64       `json:"score"`
	Terminated        bool          `json:"terminated"`
	TerminationReason string        `json:"terminationReason,omitempty"`
	PeriodLog         []PeriodEntry `json:"periodLog"`
	Model             string        `json:"model"`
	StartedAt         string        `json:"startedAt"`
	EndedAt           string        `json:"endedAt"`
	ElapsedSeconds    float64       `json:"elapsedSeconds"`
	Interrupted       bool          `json:"interrupted,omitempty"`
}

type PeriodEntry struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}
