package worker

import (
	"fmt"
	"time"

	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/ledger"
	"econbench.ai/internal/sim/policy"
)

// Engine owns every hired worker, execution and message of one run. It is
// mutated only from the run's writer goroutine, so it carries no locks.
type Engine struct {
	Policy policy.Worker `json:"policy"`

	Workers    []*Worker    `json:"workers"`
	Executions []*Execution `json:"executions"`
	Messages   []*Message   `json:"messages"`

	WorkerSeq   int `json:"worker_seq"`
	ExecSeq     int `json:"exec_seq"`
	MsgSeq      int `json:"msg_seq"`
	ApprovalSeq int `json:"approval_seq"`

	brains map[string]Brain
}

func NewEngine(p policy.Worker) *Engine {
	return &Engine{Policy: p, brains: map[string]Brain{}}
}

// SetBrain installs the decision loop for a role. Roles without one fall
// back to the scripted default.
func (e *Engine) SetBrain(role string, b Brain) {
	if e.brains == nil {
		e.brains = map[string]Brain{}
	}
	e.brains[role] = b
}

func (e *Engine) brainFor(role string) Brain {
	if b := e.brains[role]; b != nil {
		return b
	}
	return Scripted{}
}

func (e *Engine) WorkerByID(id string) *Worker {
	for _, w := range e.Workers {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func (e *Engine) ActiveWorker(role string) *Worker {
	for _, w := range e.Workers {
		if w.Active && w.Role == role {
			return w
		}
	}
	return nil
}

func (e *Engine) ExecutionByID(id string) *Execution {
	for _, x := range e.Executions {
		if x.ID == id {
			return x
		}
	}
	return nil
}

func (e *Engine) openExecution(workerID string) *Execution {
	for _, x := range e.Executions {
		if x.WorkerID == workerID && (x.Status == StatusRunning || x.Status == StatusWaitingApproval) {
			return x
		}
	}
	return nil
}

func (e *Engine) addMessage(workerID, from, content string, step uint64) *Message {
	e.MsgSeq++
	m := &Message{
		ID:        messageID(e.MsgSeq),
		WorkerID:  workerID,
		From:      from,
		Content:   content,
		Step:      step,
		Timestamp: time.Now().UTC(),
	}
	e.Messages = append(e.Messages, m)
	return m
}

// Hire debits the hire fee and activates a worker for the role. Fails
// when a worker of that role is already active or funds are short.
func (e *Engine) Hire(role string, period int, step uint64, led *ledger.Ledger) (*Worker, string, string) {
	if role == "" {
		return nil, protocol.ErrValidation, "missing role"
	}
	if w := e.ActiveWorker(role); w != nil {
		return nil, protocol.ErrConflict, fmt.Sprintf("worker %s already active for role %s", w.ID, role)
	}
	if !led.Charge(e.Policy.HireFee, ledger.TxPayment, "hire "+role, period) {
		return nil, protocol.ErrNoFunds, fmt.Sprintf("hire fee %.2f exceeds balance", e.Policy.HireFee)
	}
	e.WorkerSeq++
	w := &Worker{
		ID:            workerID(e.WorkerSeq),
		Role:          role,
		HiredPeriod:   period,
		Active:        true,
		TotalCostPaid: e.Policy.HireFee,
	}
	e.Workers = append(e.Workers, w)
	e.addMessage(w.ID, FromWorker, fmt.Sprintf("Hi, I'm your new %s. Send me a task whenever you're ready.", role), step)
	return w, "", ""
}

// Fire deactivates the worker. In-flight execution history is preserved;
// only new assignment is prevented.
func (e *Engine) Fire(id string, period int) (string, string) {
	w := e.WorkerByID(id)
	if w == nil {
		return protocol.ErrNotFound, fmt.Sprintf("no worker %q", id)
	}
	if !w.Active {
		return protocol.ErrPrecondition, fmt.Sprintf("worker %s already fired", id)
	}
	w.Active = false
	fired := period
	w.FiredPeriod = &fired
	return "", ""
}

// Assign opens a new execution for an active worker. The per-task fee is
// debited up front and accrues to the worker's cost.
func (e *Engine) Assign(workerID, task string, budget float64, maxSteps, period int, step uint64, led *ledger.Ledger) (*Execution, string, string) {
	w := e.WorkerByID(workerID)
	if w == nil {
		return nil, protocol.ErrNotFound, fmt.Sprintf("no worker %q", workerID)
	}
	if !w.Active {
		return nil, protocol.ErrPrecondition, fmt.Sprintf("worker %s is fired", workerID)
	}
	if x := e.openExecution(workerID); x != nil {
		return nil, protocol.ErrConflict, fmt.Sprintf("worker %s is busy with execution %s", workerID, x.ID)
	}
	if !led.Charge(e.Policy.TaskFee, ledger.TxCost, "task fee for "+workerID, period) {
		return nil, protocol.ErrNoFunds, fmt.Sprintf("task fee %.2f exceeds balance", e.Policy.TaskFee)
	}
	if maxSteps <= 0 || maxSteps > e.Policy.MaxSteps {
		maxSteps = e.Policy.MaxSteps
	}
	e.ExecSeq++
	x := &Execution{
		ID:       execID(e.ExecSeq),
		WorkerID: workerID,
		Task:     task,
		Budget:   budget,
		Status:   StatusRunning,
		MaxSteps: maxSteps,
		Cost:     e.Policy.TaskFee,
	}
	w.TotalCostPaid += e.Policy.TaskFee
	e.Executions = append(e.Executions, x)
	e.addMessage(workerID, FromWorker, fmt.Sprintf("Got it, starting on: %s", task), step)
	return x, "", ""
}

// Approve clears a pending approval and resumes the execution. A stale or
// mismatched approval id never changes status and never clears the gate.
func (e *Engine) Approve(execID, approvalID string, period int, step uint64, led *ledger.Ledger) (string, string) {
	x := e.ExecutionByID(execID)
	if x == nil {
		return protocol.ErrNotFound, fmt.Sprintf("no execution %q", execID)
	}
	if x.Status != StatusWaitingApproval {
		return protocol.ErrPrecondition, fmt.Sprintf("execution %s is %s, not waiting_approval", execID, x.Status)
	}
	if x.Pending == nil || x.Pending.ID != approvalID {
		return protocol.ErrApprovalMismatch, fmt.Sprintf("approval %q does not match pending request", approvalID)
	}
	amount := x.Pending.Amount
	if amount > 0 {
		if !led.Charge(amount, ledger.TxCost, fmt.Sprintf("approved worker spend (%s)", execID), period) {
			return protocol.ErrNoFunds, fmt.Sprintf("approved amount %.2f exceeds balance", amount)
		}
		x.Cost += amount
		if w := e.WorkerByID(x.WorkerID); w != nil {
			w.TotalCostPaid += amount
		}
	}
	x.Pending = nil
	x.SpendResolved = true
	x.Status = StatusRunning
	x.Steps = append(x.Steps, TranscriptStep{
		Number: x.CurrentStep,
		Action: "approval",
		Detail: fmt.Sprintf("approved %s (%.2f)", approvalID, amount),
		OK:     true,
	})
	e.addMessage(x.WorkerID, FromWorker, fmt.Sprintf("Thanks, approval %s received. Continuing.", approvalID), step)
	return "", ""
}

// Deny clears a pending approval without spending and resumes the
// execution.
func (e *Engine) Deny(execID, approvalID, reason string, step uint64) (string, string) {
	x := e.ExecutionByID(execID)
	if x == nil {
		return protocol.ErrNotFound, fmt.Sprintf("no execution %q", execID)
	}
	if x.Status != StatusWaitingApproval {
		return protocol.ErrPrecondition, fmt.Sprintf("execution %s is %s, not waiting_approval", execID, x.Status)
	}
	if x.Pending == nil || x.Pending.ID != approvalID {
		return protocol.ErrApprovalMismatch, fmt.Sprintf("approval %q does not match pending request", approvalID)
	}
	x.Pending = nil
	x.SpendResolved = true
	x.Status = StatusRunning
	x.Steps = append(x.Steps, TranscriptStep{
		Number: x.CurrentStep,
		Action: "denial",
		Detail: fmt.Sprintf("denied %s: %s", approvalID, reason),
		OK:     true,
	})
	e.addMessage(x.WorkerID, FromWorker, fmt.Sprintf("Understood, skipping that expense (%s).", reason), step)
	return "", ""
}

// StepAll advances every running execution by exactly one step. It must
// be called once per committed primary-agent step; waiting executions do
// not move.
func (e *Engine) StepAll(view WorldView, period int, led *ledger.Ledger) {
	for _, x := range e.Executions {
		if x.Status != StatusRunning {
			continue
		}
		if x.CurrentStep >= x.MaxSteps {
			x.Status = StatusFailed
			e.addMessage(x.WorkerID, FromWorker, fmt.Sprintf("Ran out of steps on: %s", x.Task), view.Step)
			continue
		}
		w := e.WorkerByID(x.WorkerID)
		role := ""
		if w != nil {
			role = w.Role
		}
		res := e.brainFor(role).AdvanceOneStep(x, view)

		x.CurrentStep++
		x.Steps = append(x.Steps, TranscriptStep{
			Number: x.CurrentStep,
			Action: res.Action,
			Detail: res.Detail,
			OK:     !res.Failed,
		})

		if res.Spend > 0 && !x.SpendResolved {
			if res.Spend > e.Policy.ApprovalThreshold {
				e.ApprovalSeq++
				x.Pending = &ApprovalRequest{
					ID:            approvID(e.ApprovalSeq),
					Type:          "spend",
					Description:   fmt.Sprintf("spend %.2f for: %s", res.Spend, x.Task),
					Amount:        res.Spend,
					RequestedStep: view.Step,
				}
				x.Status = StatusWaitingApproval
				e.addMessage(x.WorkerID, FromWorker,
					fmt.Sprintf("Need approval %s to spend %.2f on: %s", x.Pending.ID, res.Spend, x.Task), view.Step)
				continue
			}
			if led.Charge(res.Spend, ledger.TxCost, fmt.Sprintf("worker spend (%s)", x.ID), period) {
				x.Cost += res.Spend
				x.SpendResolved = true
				if w != nil {
					w.TotalCostPaid += res.Spend
				}
			} else {
				x.Status = StatusFailed
				e.addMessage(x.WorkerID, FromWorker, fmt.Sprintf("Couldn't cover %.2f, abandoning: %s", res.Spend, x.Task), view.Step)
				continue
			}
		}

		if res.Done {
			x.Status = StatusCompleted
			if w != nil {
				w.TotalTasksCompleted++
			}
			e.addMessage(x.WorkerID, FromWorker, fmt.Sprintf("Done: %s", x.Task), view.Step)
			continue
		}
		if res.Failed {
			x.Status = StatusFailed
			e.addMessage(x.WorkerID, FromWorker, fmt.Sprintf("Couldn't finish: %s", x.Task), view.Step)
		}
	}
}

// SettleWages charges each active worker's wage for the closing period.
// A worker whose wage cannot be covered quits on the spot; the unpaid
// wage is never silently absorbed.
func (e *Engine) SettleWages(period int, step uint64, led *ledger.Ledger) []string {
	var notes []string
	for _, w := range e.Workers {
		if !w.Active {
			continue
		}
		if led.Charge(e.Policy.DailyWage, ledger.TxWage, "wage for "+w.ID, period) {
			w.TotalCostPaid += e.Policy.DailyWage
			notes = append(notes, fmt.Sprintf("paid %s wage %.2f", w.ID, e.Policy.DailyWage))
			continue
		}
		w.Active = false
		fired := period
		w.FiredPeriod = &fired
		e.addMessage(w.ID, FromWorker, "I quit: my wage wasn't paid.", step)
		notes = append(notes, fmt.Sprintf("%s quit over unpaid wage", w.ID))
	}
	return notes
}

// SendToWorker records an agent message to a worker.
func (e *Engine) SendToWorker(workerID, content string, step uint64) (*Message, string, string) {
	w := e.WorkerByID(workerID)
	if w == nil {
		return nil, protocol.ErrNotFound, fmt.Sprintf("no worker %q", workerID)
	}
	m := e.addMessage(workerID, FromAgent, content, step)
	return m, "", ""
}

// UnreadFromWorkers returns worker-sent messages not yet read by the
// agent, marking them read.
func (e *Engine) UnreadFromWorkers() []*Message {
	var out []*Message
	for _, m := range e.Messages {
		if m.From == FromWorker && !m.Read {
			m.Read = true
			out = append(out, m)
		}
	}
	return out
}

// PendingApprovals lists executions blocked on approval.
func (e *Engine) PendingApprovals() []*Execution {
	var out []*Execution
	for _, x := range e.Executions {
		if x.Status == StatusWaitingApproval && x.Pending != nil {
			out = append(out, x)
		}
	}
	return out
}
