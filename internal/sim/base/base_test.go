package base

import "testing"

func TestApplyStepCost(t *testing.T) {
	s := NewBaseState()
	s.Score = 5

	if !s.ApplyStepCost(2) {
		t.Fatalf("affordable step cost should succeed")
	}
	if s.Score != 3 || s.FailureCount != 0 {
		t.Fatalf("score=%v failures=%d want 3/0", s.Score, s.FailureCount)
	}

	if s.ApplyStepCost(10) {
		t.Fatalf("unaffordable step cost should fail")
	}
	if s.Score != 3 {
		t.Fatalf("failed step cost must leave score untouched, got %v", s.Score)
	}
	if s.FailureCount != 1 {
		t.Fatalf("failures=%d want 1", s.FailureCount)
	}

	if s.ApplyStepCost(10) {
		t.Fatalf("unaffordable step cost should fail")
	}
	if s.FailureCount != 2 {
		t.Fatalf("failures=%d want 2", s.FailureCount)
	}

	if !s.ApplyStepCost(1) {
		t.Fatalf("affordable step cost should succeed")
	}
	if s.FailureCount != 0 {
		t.Fatalf("success must reset failure count, got %d", s.FailureCount)
	}
}

func TestAddEvent_AppendOnlyOrder(t *testing.T) {
	s := NewBaseState()
	s.AddEvent("SALE", 12, "overnight sales")
	s.Step = 2
	s.AddEvent("FEE", -2, "daily fee")

	if len(s.Events) != 2 {
		t.Fatalf("events=%d want 2", len(s.Events))
	}
	if s.Events[0].ID != "E1" || s.Events[1].ID != "E2" {
		t.Fatalf("event ids %q,%q want E1,E2", s.Events[0].ID, s.Events[1].ID)
	}
	if s.Events[1].Step != 2 {
		t.Fatalf("event step=%d want 2", s.Events[1].Step)
	}
}
