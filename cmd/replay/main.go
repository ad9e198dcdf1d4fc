// Recomputes a run's score from its snapshot and prints the audit
// trail summary. A drifting score means the snapshot and the scoring
// code disagree; that is always a bug worth finding.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"econbench.ai/internal/persistence/runlog"
	"econbench.ai/internal/persistence/snapshot"
	"econbench.ai/internal/sim/rideshare"
	"econbench.ai/internal/sim/vending"
)

func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to <run>.snap.zst (required)")
		logPath  = flag.String("runlog", "", "path to <run>.jsonl.zst (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags)
	if *snapPath == "" {
		logger.Fatalf("-snapshot is required")
	}

	doc, err := snapshot.Read(*snapPath)
	if err != nil {
		logger.Fatalf("read snapshot: %v", err)
	}
	h := doc.Header
	logger.Printf("run=%s benchmark=%s model=%q step=%d period=%d",
		h.RunID, h.Benchmark, h.Model, h.Step, h.Period)

	var recomputed float64
	switch h.Benchmark {
	case "vending":
		var s vending.State
		if err := json.Unmarshal(doc.World, &s); err != nil {
			logger.Fatalf("decode world: %v", err)
		}
		recomputed = s.FinalScore()
	case "rideshare":
		var s rideshare.State
		if err := json.Unmarshal(doc.World, &s); err != nil {
			logger.Fatalf("decode world: %v", err)
		}
		recomputed = s.FinalScore()
	default:
		logger.Fatalf("unknown benchmark %q", h.Benchmark)
	}

	logger.Printf("recorded score=%.4f recomputed=%.4f", h.Score, recomputed)
	if recomputed != h.Score {
		logger.Fatalf("SCORE DRIFT: snapshot says %.4f, state says %.4f", h.Score, recomputed)
	}
	logger.Printf("score verified")

	if *logPath == "" {
		return
	}
	entries, err := runlog.Read(*logPath)
	if err != nil {
		logger.Fatalf("read run log: %v", err)
	}
	counts := map[string]int{}
	failures := 0
	for _, e := range entries {
		counts[e.Kind]++
		if e.Kind == runlog.KindTool && !e.Tool.OK {
			failures++
		}
	}
	logger.Printf("log entries: start=%d tool=%d (failed=%d) transition=%d progress=%d state=%d end=%d",
		counts[runlog.KindStart], counts[runlog.KindTool], failures,
		counts[runlog.KindTransition], counts[runlog.KindProgress],
		counts[runlog.KindState], counts[runlog.KindEnd])
}
