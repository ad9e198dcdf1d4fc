package runlog

import (
	"path/filepath"
	"testing"

	"econbench.ai/internal/protocol"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run-1")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	entries := []Entry{
		{Kind: KindStart, Start: &StartPayload{RunID: "run-1", Benchmark: "vending", Model: "m", Seed: 7}},
		{Kind: KindTool, Tool: &ToolPayload{CallID: "c1", Tool: "check_machine", OK: true, Step: 1, Period: 1}},
		{Kind: KindTransition, Transition: &TransitionPayload{ClosedPeriod: 1, Score: 498, Balance: 498}},
		{Kind: KindEnd, End: &EndPayload{Result: protocol.RunResult{FinalStep: 2, Score: 498, Terminated: true, TerminationReason: protocol.ReasonHorizon}}},
	}
	for _, e := range entries {
		if err := w.Append(e); err != nil {
			t.Fatalf("Append(%s): %v", e.Kind, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := Read(filepath.Join(dir, "run-1.jsonl.zst"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("entries=%d want %d", len(got), len(entries))
	}
	for i, e := range got {
		if e.Kind != entries[i].Kind {
			t.Fatalf("entry %d kind=%s want %s", i, e.Kind, entries[i].Kind)
		}
		if e.Seq != i+1 {
			t.Fatalf("entry %d seq=%d", i, e.Seq)
		}
		if e.At == "" {
			t.Fatalf("entry %d missing timestamp", i)
		}
	}
	if got[3].End.Result.Score != 498 || !got[3].End.Result.Terminated {
		t.Fatalf("end payload: %+v", got[3].End.Result)
	}
}

func TestAppendRejectsMalformedEntries(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "run-2")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	cases := []Entry{
		{Kind: "banana", Tool: &ToolPayload{}},
		{Kind: KindTool}, // no payload
		{Kind: KindTool, Tool: &ToolPayload{}, End: &EndPayload{}},     // two payloads
		{Kind: KindStart, Tool: &ToolPayload{CallID: "c1", Tool: "x"}}, // wrong payload
	}
	for i, e := range cases {
		if err := w.Append(e); err == nil {
			t.Fatalf("case %d accepted", i)
		}
	}
	// Rejections must not burn sequence numbers.
	if err := w.Append(Entry{Kind: KindProgress, Progress: &ProgressPayload{Step: 1}}); err != nil {
		t.Fatalf("valid append after rejections: %v", err)
	}
	if w.seq != 1 {
		t.Fatalf("seq=%d want 1", w.seq)
	}
}
