package worker

import (
	"testing"

	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/ledger"
	"econbench.ai/internal/sim/policy"
)

func testEngine() (*Engine, *ledger.Ledger) {
	p := policy.Defaults().Worker
	return NewEngine(p), ledger.New(500)
}

func TestHire_ScenarioFromFiveHundred(t *testing.T) {
	e, led := testEngine()

	w, code, msg := e.Hire("restocker", 1, 1, led)
	if code != "" {
		t.Fatalf("hire failed: %s %s", code, msg)
	}
	if led.Balance != 450 {
		t.Fatalf("balance=%v want 450", led.Balance)
	}
	if len(led.Transactions) != 1 {
		t.Fatalf("transactions=%d want 1", len(led.Transactions))
	}
	tx := led.Transactions[0]
	if tx.Type != ledger.TxPayment || tx.Amount != -50 {
		t.Fatalf("tx=%+v want payment of 50", tx)
	}
	if !w.Active || w.ID != "W1" {
		t.Fatalf("worker=%+v want active W1", w)
	}
	greetings := e.UnreadFromWorkers()
	if len(greetings) != 1 || greetings[0].From != FromWorker {
		t.Fatalf("expected one greeting message, got %+v", greetings)
	}
}

func TestHire_DuplicateRoleAndNoFunds(t *testing.T) {
	e, led := testEngine()

	if _, code, _ := e.Hire("restocker", 1, 1, led); code != "" {
		t.Fatalf("first hire failed: %s", code)
	}
	if _, code, _ := e.Hire("restocker", 1, 2, led); code != protocol.ErrConflict {
		t.Fatalf("second hire of same role: code=%s want E_CONFLICT", code)
	}

	poor := ledger.New(10)
	e2 := NewEngine(policy.Defaults().Worker)
	if _, code, _ := e2.Hire("restocker", 1, 1, poor); code != protocol.ErrNoFunds {
		t.Fatalf("hire with 10 balance: code=%s want E_NO_FUNDS", code)
	}
	if poor.Balance != 10 || len(poor.Transactions) != 0 {
		t.Fatalf("failed hire must not touch ledger: %+v", poor)
	}
}

func TestStepAll_LockstepOneStepPerCall(t *testing.T) {
	e, led := testEngine()
	w, _, _ := e.Hire("restocker", 1, 1, led)
	x, code, _ := e.Assign(w.ID, "tidy the machine", 0, 10, 1, 2, led)
	if code != "" {
		t.Fatalf("assign failed: %s", code)
	}

	for i := 1; i <= 4; i++ {
		before := x.CurrentStep
		e.StepAll(WorldView{Period: 1, Step: uint64(2 + i), Balance: led.Balance}, 1, led)
		if x.Status == StatusRunning && x.CurrentStep != before+1 {
			t.Fatalf("step %d: execution advanced %d steps, want exactly 1", i, x.CurrentStep-before)
		}
	}
	if x.Status != StatusCompleted {
		t.Fatalf("status=%s want completed after scripted work", x.Status)
	}
	if w.TotalTasksCompleted != 1 {
		t.Fatalf("completed=%d want 1", w.TotalTasksCompleted)
	}
}

func TestApprovalGate_MismatchNeverClears(t *testing.T) {
	e, led := testEngine()
	w, _, _ := e.Hire("procurement", 1, 1, led)
	x, _, _ := e.Assign(w.ID, "buy a pallet of cola", 100, 10, 1, 2, led)

	// Step 1 plans, step 2 requests the budget (100 > threshold 25).
	e.StepAll(WorldView{Period: 1, Step: 3, Balance: led.Balance}, 1, led)
	e.StepAll(WorldView{Period: 1, Step: 4, Balance: led.Balance}, 1, led)
	if x.Status != StatusWaitingApproval || x.Pending == nil {
		t.Fatalf("status=%s pending=%v want waiting_approval", x.Status, x.Pending)
	}
	pendingID := x.Pending.ID
	stepsBefore := x.CurrentStep

	// Waiting executions must not advance.
	e.StepAll(WorldView{Period: 1, Step: 5, Balance: led.Balance}, 1, led)
	if x.CurrentStep != stepsBefore {
		t.Fatalf("waiting execution advanced from %d to %d", stepsBefore, x.CurrentStep)
	}

	if code, _ := e.Approve(x.ID, "A999", 1, 6, led); code != protocol.ErrApprovalMismatch {
		t.Fatalf("mismatched approve: code=%s want E_APPROVAL_MISMATCH", code)
	}
	if x.Status != StatusWaitingApproval || x.Pending == nil || x.Pending.ID != pendingID {
		t.Fatalf("mismatched approve must change nothing: status=%s pending=%+v", x.Status, x.Pending)
	}

	if code, _ := e.Approve("X999", pendingID, 1, 6, led); code != protocol.ErrNotFound {
		t.Fatalf("unknown execution: code=%s want E_NOT_FOUND", code)
	}

	balBefore := led.Balance
	if code, _ := e.Approve(x.ID, pendingID, 1, 7, led); code != "" {
		t.Fatalf("approve failed: %s", code)
	}
	if x.Status != StatusRunning || x.Pending != nil {
		t.Fatalf("approve must resume: status=%s pending=%v", x.Status, x.Pending)
	}
	if led.Balance != balBefore-100 {
		t.Fatalf("approved spend not debited: %v -> %v", balBefore, led.Balance)
	}
	if x.Cost != e.Policy.TaskFee+100 {
		t.Fatalf("execution cost=%v want task fee + 100", x.Cost)
	}
}

func TestDeny_ResumesWithoutSpending(t *testing.T) {
	e, led := testEngine()
	w, _, _ := e.Hire("procurement", 1, 1, led)
	x, _, _ := e.Assign(w.ID, "buy decorations", 60, 10, 1, 2, led)

	e.StepAll(WorldView{Period: 1, Step: 3, Balance: led.Balance}, 1, led)
	e.StepAll(WorldView{Period: 1, Step: 4, Balance: led.Balance}, 1, led)
	if x.Status != StatusWaitingApproval {
		t.Fatalf("status=%s want waiting_approval", x.Status)
	}
	balBefore := led.Balance

	if code, _ := e.Deny(x.ID, x.Pending.ID, "too expensive", 5); code != "" {
		t.Fatalf("deny failed: %s", code)
	}
	if x.Status != StatusRunning || x.Pending != nil {
		t.Fatalf("deny must resume: status=%s pending=%v", x.Status, x.Pending)
	}
	if led.Balance != balBefore {
		t.Fatalf("deny must not spend: %v -> %v", balBefore, led.Balance)
	}

	// Worker finishes without the budget.
	for i := 0; i < 6 && x.Status == StatusRunning; i++ {
		e.StepAll(WorldView{Period: 1, Step: uint64(6 + i), Balance: led.Balance}, 1, led)
	}
	if x.Status != StatusCompleted {
		t.Fatalf("status=%s want completed after denial", x.Status)
	}
}

func TestFire_PreventsNewAssignmentKeepsHistory(t *testing.T) {
	e, led := testEngine()
	w, _, _ := e.Hire("restocker", 1, 1, led)
	if code, _ := e.Fire(w.ID, 2); code != "" {
		t.Fatalf("fire failed: %s", code)
	}
	if w.Active || w.FiredPeriod == nil || *w.FiredPeriod != 2 {
		t.Fatalf("worker after fire: %+v", w)
	}
	if _, code, _ := e.Assign(w.ID, "anything", 0, 5, 2, 3, led); code != protocol.ErrPrecondition {
		t.Fatalf("assign to fired worker: code=%s want E_PRECONDITION", code)
	}
	if e.WorkerByID(w.ID) == nil {
		t.Fatalf("fired worker record must be retained")
	}
}

func TestSettleWages_UnpaidWorkerQuits(t *testing.T) {
	e, led := testEngine()
	w, _, _ := e.Hire("restocker", 1, 1, led)

	notes := e.SettleWages(1, 10, led)
	if len(notes) != 1 || led.Balance != 430 {
		t.Fatalf("wage settlement: notes=%v balance=%v", notes, led.Balance)
	}
	if w.TotalCostPaid != 70 {
		t.Fatalf("cost paid=%v want 70 (hire 50 + wage 20)", w.TotalCostPaid)
	}

	// Drain the ledger; next settlement can't cover the wage.
	if !led.Charge(led.Balance, ledger.TxCost, "drain", 1) {
		t.Fatalf("drain failed")
	}
	e.SettleWages(2, 11, led)
	if w.Active {
		t.Fatalf("worker with unpaid wage must quit")
	}
}
