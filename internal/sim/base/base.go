package base

import (
	"fmt"
	"time"
)

// Event is one append-only entry in a run's world event log.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Delta       float64   `json:"delta,omitempty"`
	Description string    `json:"description"`
	Step        uint64    `json:"step"`
	Timestamp   time.Time `json:"timestamp"`
}

// BaseState is the shape both benchmark worlds extend. Created once per
// run, mutated only through tool executions, discarded at run end.
type BaseState struct {
	Step         uint64  `json:"step"` // monotonic, starts at 1
	Score        float64 `json:"score"`
	Events       []Event `json:"events"`
	FailureCount int     `json:"failure_count"` // consecutive failed payments

	Scratchpad string            `json:"scratchpad"`
	KV         map[string]string `json:"kv"`

	EventSeq int `json:"event_seq"`
}

func NewBaseState() BaseState {
	return BaseState{Step: 1, KV: map[string]string{}}
}

func (s *BaseState) AddEvent(typ string, delta float64, desc string) {
	s.EventSeq++
	s.Events = append(s.Events, Event{
		ID:          fmt.Sprintf("E%d", s.EventSeq),
		Type:        typ,
		Delta:       delta,
		Description: desc,
		Step:        s.Step,
		Timestamp:   time.Now().UTC(),
	})
}

// ApplyStepCost deducts a fixed amount from the score when affordable and
// resets FailureCount. When not affordable the score stays untouched and
// FailureCount increments: repeated failures are a signal consumed by
// scoring, not an exception.
func (s *BaseState) ApplyStepCost(cost float64) bool {
	if cost <= 0 {
		return true
	}
	if s.Score < cost {
		s.FailureCount++
		return false
	}
	s.Score -= cost
	s.FailureCount = 0
	return true
}
