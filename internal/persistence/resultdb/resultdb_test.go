package resultdb

import (
	"context"
	"path/filepath"
	"testing"

	"econbench.ai/internal/protocol"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestInsertGetRoundTrip(t *testing.T) {
	d := openTest(t)
	ctx := context.Background()

	row := Row{
		RunID:     "r-1",
		Benchmark: "vending",
		Seed:      42,
		Result: protocol.RunResult{
			FinalStep:         120,
			Score:             613.25,
			Terminated:        true,
			TerminationReason: protocol.ReasonHorizon,
			PeriodLog: []protocol.PeriodEntry{
				{Period: 1, Value: 498},
				{Period: 2, Value: 530.5},
			},
			Model:          "test-model",
			StartedAt:      "2026-09-01T10:00:00Z",
			EndedAt:        "2026-09-01T10:05:00Z",
			ElapsedSeconds: 300,
		},
	}
	if err := d.Insert(ctx, row); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := d.Get(ctx, "r-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Result.Score != 613.25 || got.Result.TerminationReason != protocol.ReasonHorizon {
		t.Fatalf("result: %+v", got.Result)
	}
	if len(got.Result.PeriodLog) != 2 || got.Result.PeriodLog[1].Value != 530.5 {
		t.Fatalf("period log: %+v", got.Result.PeriodLog)
	}
	if !got.Result.Terminated || got.Result.Interrupted {
		t.Fatalf("flags: %+v", got.Result)
	}
}

func TestDuplicateRunIDRefused(t *testing.T) {
	d := openTest(t)
	ctx := context.Background()

	row := Row{RunID: "dup", Benchmark: "rideshare", Result: protocol.RunResult{PeriodLog: []protocol.PeriodEntry{}}}
	if err := d.Insert(ctx, row); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := d.Insert(ctx, row); err == nil {
		t.Fatalf("duplicate insert accepted")
	}
}

func TestListOrdersByScore(t *testing.T) {
	d := openTest(t)
	ctx := context.Background()

	for _, r := range []Row{
		{RunID: "a", Benchmark: "vending", Result: protocol.RunResult{Score: 10, PeriodLog: []protocol.PeriodEntry{}}},
		{RunID: "b", Benchmark: "vending", Result: protocol.RunResult{Score: 99, PeriodLog: []protocol.PeriodEntry{}}},
		{RunID: "c", Benchmark: "rideshare", Result: protocol.RunResult{Score: 50, PeriodLog: []protocol.PeriodEntry{}}},
	} {
		if err := d.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s: %v", r.RunID, err)
		}
	}
	got, err := d.List(ctx, "vending")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "b" || got[1].RunID != "a" {
		t.Fatalf("list: %+v", got)
	}
}
