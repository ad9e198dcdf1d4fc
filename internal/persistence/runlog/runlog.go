// Package runlog is the append-only audit trail of a run: one
// compressed JSONL file per run, one tagged entry per loggable moment.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"econbench.ai/internal/protocol"
)

// Entry kinds. The set is closed; readers reject anything else.
const (
	KindStart      = "start"
	KindTool       = "tool"
	KindTransition = "transition"
	KindProgress   = "progress"
	KindState      = "state"
	KindEnd        = "end"
)

var validKinds = map[string]bool{
	KindStart:      true,
	KindTool:       true,
	KindTransition: true,
	KindProgress:   true,
	KindState:      true,
	KindEnd:        true,
}

// Entry is the tagged union written to the log. Exactly one payload
// field is set, matching Kind.
type Entry struct {
	Kind string `json:"kind"`
	Seq  int    `json:"seq"`
	At   string `json:"at"` // RFC3339Nano UTC

	Start      *StartPayload      `json:"start,omitempty"`
	Tool       *ToolPayload       `json:"tool,omitempty"`
	Transition *TransitionPayload `json:"transition,omitempty"`
	Progress   *ProgressPayload   `json:"progress,omitempty"`
	State      *StatePayload      `json:"state,omitempty"`
	End        *EndPayload        `json:"end,omitempty"`
}

type StartPayload struct {
	RunID        string `json:"run_id"`
	Benchmark    string `json:"benchmark"`
	Model        string `json:"model"`
	Seed         int64  `json:"seed"`
	PolicyDigest string `json:"policy_digest"`
}

type ToolPayload struct {
	CallID  string         `json:"call_id"`
	Tool    string         `json:"tool"`
	Input   map[string]any `json:"input,omitempty"`
	OK      bool           `json:"ok"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Step    uint64         `json:"step"`
	Period  int            `json:"period"`
}

// TransitionPayload records a period boundary: the settlement that
// closed one period and opened the next.
type TransitionPayload struct {
	ClosedPeriod int     `json:"closed_period"`
	Score        float64 `json:"score"`
	Balance      float64 `json:"balance"`
}

type ProgressPayload struct {
	Step   uint64  `json:"step"`
	Period int     `json:"period"`
	Score  float64 `json:"score"`
}

// StatePayload embeds a full snapshot document, written before an
// interrupt stop so the run can resume.
type StatePayload struct {
	Snapshot json.RawMessage `json:"snapshot"`
}

type EndPayload struct {
	Result protocol.RunResult `json:"result"`
}

func (e Entry) validate() error {
	if !validKinds[e.Kind] {
		return fmt.Errorf("runlog: unknown kind %q", e.Kind)
	}
	set := 0
	for _, p := range []bool{
		e.Start != nil, e.Tool != nil, e.Transition != nil,
		e.Progress != nil, e.State != nil, e.End != nil,
	} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("runlog: entry %q has %d payloads", e.Kind, set)
	}
	want := map[string]bool{
		KindStart:      e.Start != nil,
		KindTool:       e.Tool != nil,
		KindTransition: e.Transition != nil,
		KindProgress:   e.Progress != nil,
		KindState:      e.State != nil,
		KindEnd:        e.End != nil,
	}
	if !want[e.Kind] {
		return fmt.Errorf("runlog: payload does not match kind %q", e.Kind)
	}
	return nil
}

// Writer appends entries for a single run. Safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	seq int
}

func NewWriter(dir, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(Path(dir, runID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func Path(dir, runID string) string {
	return filepath.Join(dir, runID+".jsonl.zst")
}

// Append stamps seq and timestamp and writes the entry. Entries with a
// missing or mismatched payload are refused before touching the file.
func (w *Writer) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	e.Seq = w.seq
	e.At = time.Now().UTC().Format(time.RFC3339Nano)
	if err := e.validate(); err != nil {
		w.seq--
		return err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}

// Read decodes every entry of a run log, in order, validating each.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1<<20), 16<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return out, fmt.Errorf("runlog: entry %d: %w", len(out)+1, err)
		}
		if err := e.validate(); err != nil {
			return out, err
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return out, err
	}
	return out, nil
}
