package vending

import (
	"fmt"

	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/base"
	"econbench.ai/internal/sim/ledger"
	"econbench.ai/internal/sim/policy"
	"econbench.ai/internal/sim/toolreg"
	"econbench.ai/internal/sim/worker"
)

type Config struct {
	Seed   int64
	Policy policy.Policy
}

// New builds a fresh vending run: empty machine, starting balance, day 1.
func New(cfg Config) *State {
	p := cfg.Policy
	s := &State{
		BaseState: base.NewBaseState(),
		Policy:    p.Vending,
		Seed:      cfg.Seed,
		Day:       1,
		Led:       ledger.New(p.Vending.StartingBalance),
		Workers:   worker.NewEngine(p.Worker),
	}
	for row := 0; row < p.Vending.MachineRows; row++ {
		for col := 0; col < p.Vending.MachineCols; col++ {
			s.Slots = append(s.Slots, Slot{Row: row, Col: col, Size: sizeForRow(row)})
		}
	}
	s.Score = s.NetWorth()
	return s
}

func (s *State) Benchmark() string { return "vending" }

func (s *State) slot(row, col int) *Slot {
	if row < 0 || row >= s.Policy.MachineRows || col < 0 || col >= s.Policy.MachineCols {
		return nil
	}
	return &s.Slots[row*s.Policy.MachineCols+col]
}

func (s *State) storageItem(name string) *StorageItem {
	for i := range s.Storage {
		if s.Storage[i].Name == name {
			return &s.Storage[i]
		}
	}
	return nil
}

func (s *State) addToStorage(name string, qty int, costPerUnit float64, size string) {
	if it := s.storageItem(name); it != nil {
		it.Qty += qty
		it.CostPerUnit = costPerUnit
		return
	}
	s.Storage = append(s.Storage, StorageItem{Name: name, Qty: qty, CostPerUnit: costPerUnit, Size: size})
}

// InventoryAtCost values machine and storage stock at wholesale cost.
func (s *State) InventoryAtCost() float64 {
	total := 0.0
	for _, sl := range s.Slots {
		total += float64(sl.Qty) * sl.Cost
	}
	for _, it := range s.Storage {
		total += float64(it.Qty) * it.CostPerUnit
	}
	return total
}

// NetWorth is the scoring basis: balance plus uncollected machine cash
// plus inventory at cost.
func (s *State) NetWorth() float64 {
	return s.Led.NetWorth(s.MachineCash, s.InventoryAtCost())
}

// ScoreOf recomputes the final score from a state snapshot alone.
func ScoreOf(s *State) float64 { return s.NetWorth() }

func (s *State) queueEmail(from, to, subject, body string, deliveryDay int) {
	s.EmailSeq++
	s.Outbox = append(s.Outbox, Email{
		ID:      fmt.Sprintf("EM%d", s.EmailSeq),
		From:    from,
		To:      to,
		Subject: subject,
		Body:    body,
		Day:     deliveryDay,
	})
}

// Run-loop surface.

func (s *State) Tools() []protocol.ToolInfo { return vendingRegistry.Catalog() }

func (s *State) Apply(tool string, input map[string]any) toolreg.Result {
	if s.Done {
		return toolreg.Failf(protocol.ErrRunTerminated, "run over: %s", s.Reason)
	}
	if s.Pause {
		// The pause request stays armed; the call is refused, not absorbed.
		return toolreg.Fail(protocol.ErrPrecondition, "waiting for next day")
	}
	res := vendingRegistry.Dispatch(s, tool, input)
	if res.OK && s.Policy.StepCost > 0 {
		if s.Led.Charge(s.Policy.StepCost, ledger.TxCost, "action cost", s.Day) {
			s.FailureCount = 0
			s.Score = s.NetWorth()
		} else {
			s.FailureCount++
		}
	}
	return res
}

func (s *State) StepWorkers() {
	if s.Done {
		return
	}
	s.Workers.StepAll(worker.WorldView{Period: s.Day, Step: s.Step, Balance: s.Led.Balance}, s.Day, s.Led)
}

func (s *State) PausePending() bool { return s.Pause }

func (s *State) Terminated() (bool, string) { return s.Done, s.Reason }

func (s *State) Period() int         { return s.Day }
func (s *State) Balance() float64    { return s.Led.Balance }
func (s *State) CurrentStep() uint64 { return s.Step }
func (s *State) IncStep()            { s.Step++ }
func (s *State) FinalScore() float64 { return s.NetWorth() }

func (s *State) PeriodLog() []protocol.PeriodEntry { return s.Log }
