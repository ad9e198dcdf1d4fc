// Package run owns the lifecycle of a single benchmark run: one
// goroutine per run holds the world, applies calls in arrival order,
// settles periods, and produces the final result.
package run

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"econbench.ai/internal/persistence/runlog"
	"econbench.ai/internal/persistence/snapshot"
	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/toolreg"
)

// World is what a benchmark exposes to the run loop. Implementations
// are not safe for concurrent use; the loop goroutine is the only
// caller after Start.
type World interface {
	Benchmark() string
	Tools() []protocol.ToolInfo
	Apply(tool string, input map[string]any) toolreg.Result
	StepWorkers()
	PausePending() bool
	Settle()
	Terminated() (bool, string)
	Period() int
	CurrentStep() uint64
	IncStep()
	FinalScore() float64
	Balance() float64
	PeriodLog() []protocol.PeriodEntry
}

type Options struct {
	RunID        string // assigned when empty
	Model        string
	Seed         int64
	PolicyDigest string

	Logger       *log.Logger    // optional
	Audit        *runlog.Writer // optional per-run audit trail
	SnapshotPath string         // written when the run is interrupted
}

type callReq struct {
	id    string
	tool  string
	input map[string]any
	resp  chan protocol.ResultMsg
}

type Runner struct {
	world World
	opts  Options

	calls chan callReq
	stop  chan struct{}
	done  chan struct{}

	stopOnce  sync.Once
	startedAt time.Time

	mu     sync.Mutex
	result protocol.RunResult
}

func New(w World, opts Options) *Runner {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Runner{
		world: w,
		opts:  opts,
		calls: make(chan callReq, 16),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (r *Runner) ID() string        { return r.opts.RunID }
func (r *Runner) Benchmark() string { return r.world.Benchmark() }

// Tools is safe before Start or from other goroutines: catalogs are
// built once at registry construction and never mutated.
func (r *Runner) Tools() []protocol.ToolInfo { return r.world.Tools() }

func (r *Runner) Start() {
	r.startedAt = time.Now().UTC()
	r.audit(runlog.Entry{Kind: runlog.KindStart, Start: &runlog.StartPayload{
		RunID:        r.opts.RunID,
		Benchmark:    r.world.Benchmark(),
		Model:        r.opts.Model,
		Seed:         r.opts.Seed,
		PolicyDigest: r.opts.PolicyDigest,
	}})
	go r.loop()
}

// Call submits one tool invocation and blocks for its result. The
// second return is false when the run has already finished.
func (r *Runner) Call(ctx context.Context, callID, tool string, input map[string]any) (protocol.ResultMsg, bool) {
	req := callReq{id: callID, tool: tool, input: input, resp: make(chan protocol.ResultMsg, 1)}
	select {
	case r.calls <- req:
	case <-r.done:
		return protocol.ResultMsg{}, false
	case <-ctx.Done():
		return protocol.ResultMsg{}, false
	}
	select {
	case msg := <-req.resp:
		return msg, true
	case <-r.done:
		return protocol.ResultMsg{}, false
	case <-ctx.Done():
		return protocol.ResultMsg{}, false
	}
}

// Interrupt asks the loop to snapshot and stop. Idempotent.
func (r *Runner) Interrupt() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Runner) Done() <-chan struct{} { return r.done }

// Result is valid once Done is closed.
func (r *Runner) Result() protocol.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			r.finish(true)
			return
		case req := <-r.calls:
			msg := r.handle(req)
			req.resp <- msg
			if done, _ := r.world.Terminated(); done {
				r.finish(false)
				return
			}
		}
	}
}

// handle applies one call. Only accepted calls advance the step; a
// call that arms the pause also settles the period before returning.
func (r *Runner) handle(req callReq) protocol.ResultMsg {
	res := r.world.Apply(req.tool, req.input)
	step := r.world.CurrentStep()
	period := r.world.Period()

	if res.OK {
		r.world.StepWorkers()
		if r.world.PausePending() {
			closed := r.world.Period()
			r.world.Settle()
			r.audit(runlog.Entry{Kind: runlog.KindTransition, Transition: &runlog.TransitionPayload{
				ClosedPeriod: closed,
				Score:        r.world.FinalScore(),
				Balance:      r.world.Balance(),
			}})
		}
		r.world.IncStep()
	}

	r.audit(runlog.Entry{Kind: runlog.KindTool, Tool: &runlog.ToolPayload{
		CallID:  req.id,
		Tool:    req.tool,
		Input:   req.input,
		OK:      res.OK,
		Code:    res.Code,
		Message: res.Message,
		Step:    step,
		Period:  period,
	}})

	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              req.id,
		OK:              res.OK,
		Code:            res.Code,
		Message:         res.Message,
		Data:            res.Data,
		Step:            step,
		Period:          r.world.Period(),
	}
}

func (r *Runner) finish(interrupted bool) {
	endedAt := time.Now().UTC()
	terminated, reason := r.world.Terminated()
	if interrupted && !terminated {
		reason = protocol.ReasonInterrupted
	}

	plog := r.world.PeriodLog()
	if plog == nil {
		plog = []protocol.PeriodEntry{}
	}
	result := protocol.RunResult{
		FinalStep:         r.world.CurrentStep(),
		Score:             r.world.FinalScore(),
		Terminated:        terminated,
		TerminationReason: reason,
		PeriodLog:         plog,
		Model:             r.opts.Model,
		StartedAt:         r.startedAt.Format(time.RFC3339),
		EndedAt:           endedAt.Format(time.RFC3339),
		ElapsedSeconds:    endedAt.Sub(r.startedAt).Seconds(),
		Interrupted:       interrupted,
	}

	if interrupted && r.opts.SnapshotPath != "" {
		if err := r.writeSnapshot(); err != nil {
			r.logf("[run] snapshot %s: %v", r.opts.RunID, err)
		}
	}

	r.audit(runlog.Entry{Kind: runlog.KindEnd, End: &runlog.EndPayload{Result: result}})
	if r.opts.Audit != nil {
		if err := r.opts.Audit.Close(); err != nil {
			r.logf("[run] audit close %s: %v", r.opts.RunID, err)
		}
	}

	r.mu.Lock()
	r.result = result
	r.mu.Unlock()
	r.logf("[run] %s finished: score=%.2f step=%d reason=%q interrupted=%v",
		r.opts.RunID, result.Score, result.FinalStep, reason, interrupted)
}

func (r *Runner) writeSnapshot() error {
	raw, err := json.Marshal(r.world)
	if err != nil {
		return err
	}
	doc := snapshot.Document{
		Header: snapshot.Header{
			RunID:     r.opts.RunID,
			Benchmark: r.world.Benchmark(),
			Model:     r.opts.Model,
			Step:      r.world.CurrentStep(),
			Period:    r.world.Period(),
			Score:     r.world.FinalScore(),
		},
		Seed:  r.opts.Seed,
		World: raw,
	}
	return snapshot.Write(r.opts.SnapshotPath, doc)
}

func (r *Runner) audit(e runlog.Entry) {
	if r.opts.Audit == nil {
		return
	}
	if err := r.opts.Audit.Append(e); err != nil {
		r.logf("[run] audit %s: %v", r.opts.RunID, err)
	}
}

func (r *Runner) logf(format string, args ...any) {
	if r.opts.Logger != nil {
		r.opts.Logger.Printf(format, args...)
	}
}
