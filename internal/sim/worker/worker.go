package worker

import (
	"fmt"
	"time"
)

// Execution statuses.
const (
	StatusRunning         = "running"
	StatusWaitingApproval = "waiting_approval"
	StatusCompleted       = "completed"
	StatusFailed          = "failed"
)

// Message senders.
const (
	FromAgent  = "agent"
	FromWorker = "worker"
)

// Worker is a hired subordinate. At most one worker per role is active at
// a time. Firing deactivates but never deletes the record.
type Worker struct {
	ID                  string  `json:"id"`
	Role                string  `json:"role"`
	HiredPeriod         int     `json:"hired_period"`
	FiredPeriod         *int    `json:"fired_period,omitempty"`
	Active              bool    `json:"active"`
	TotalTasksCompleted int     `json:"total_tasks_completed"`
	TotalCostPaid       float64 `json:"total_cost_paid"`
}

// ApprovalRequest blocks an execution until the primary agent approves or
// denies it. Clearing it is the only way out of waiting_approval.
type ApprovalRequest struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount,omitempty"`
	RequestedStep uint64  `json:"requested_step"`
}

// TranscriptStep is one append-only entry in an execution's transcript.
type TranscriptStep struct {
	Number int    `json:"number"`
	Action string `json:"action"`
	Detail string `json:"detail"`
	OK     bool   `json:"ok"`
}

// Execution is one delegated task. It advances at most one step per
// primary-agent step.
type Execution struct {
	ID            string           `json:"id"`
	WorkerID      string           `json:"worker_id"`
	Task          string           `json:"task"`
	Budget        float64          `json:"budget,omitempty"`
	SpendResolved bool             `json:"spend_resolved,omitempty"`
	Status        string           `json:"status"`
	Steps         []TranscriptStep `json:"steps"`
	CurrentStep   int              `json:"current_step"`
	MaxSteps      int              `json:"max_steps"`
	Cost          float64          `json:"cost"`
	Pending       *ApprovalRequest `json:"pending_approval,omitempty"`
}

// Message is the only information channel between worker and primary
// agent outside direct tool calls. Delivery is immediate, unlike
// email-style correspondence which waits for the next period.
type Message struct {
	ID        string    `json:"id"`
	WorkerID  string    `json:"worker_id"`
	From      string    `json:"from"` // "agent" or "worker"
	Content   string    `json:"content"`
	Step      uint64    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// WorldView is the narrow, read-only view of the run a worker brain sees.
type WorldView struct {
	Period  int     `json:"period"`
	Step    uint64  `json:"step"`
	Balance float64 `json:"balance"`
}

// StepResult is what a brain produces for one step of an execution.
type StepResult struct {
	Action string
	Detail string
	Done   bool
	Failed bool
	Spend  float64 // requested expenditure; gated by the engine
}

// Brain decides a worker's next step. The real decision loop is an
// external collaborator; the engine only needs this narrow interface.
type Brain interface {
	AdvanceOneStep(exec *Execution, view WorldView) StepResult
}

func execID(seq int) string    { return fmt.Sprintf("X%d", seq) }
func workerID(seq int) string  { return fmt.Sprintf("W%d", seq) }
func messageID(seq int) string { return fmt.Sprintf("M%d", seq) }
func approvID(seq int) string  { return fmt.Sprintf("A%d", seq) }
