package worker

import "fmt"

// Scripted is the default deterministic brain. The real decision loop is
// an external collaborator; this stand-in plans, optionally asks to spend
// its budget, then works a fixed number of steps.
type Scripted struct {
	WorkSteps int // steps of "work" after planning; 0 means 3
}

func (b Scripted) AdvanceOneStep(exec *Execution, view WorldView) StepResult {
	work := b.WorkSteps
	if work <= 0 {
		work = 3
	}
	next := exec.CurrentStep + 1

	if next == 1 {
		return StepResult{Action: "plan", Detail: "planning: " + exec.Task}
	}
	if exec.Budget > 0 && !exec.SpendResolved {
		return StepResult{
			Action: "spend",
			Detail: fmt.Sprintf("requesting %.2f for supplies", exec.Budget),
			Spend:  exec.Budget,
		}
	}
	done := next >= 1+work || next >= exec.MaxSteps
	return StepResult{
		Action: "work",
		Detail: fmt.Sprintf("step %d of %s", next, exec.Task),
		Done:   done,
	}
}
