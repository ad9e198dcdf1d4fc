package rideshare

import (
	"math"

	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/base"
	"econbench.ai/internal/sim/ledger"
	"econbench.ai/internal/sim/policy"
	"econbench.ai/internal/sim/toolreg"
)

type Config struct {
	Seed   int64
	Policy policy.Policy
}

// Shifts begin at 06:00 on hour 1.
const startHourOfDay = 6

// New builds a fresh rideshare run: full tank, rested driver, parked in
// the suburbs at hour 1.
func New(cfg Config) *State {
	p := cfg.Policy.Rideshare
	s := &State{
		BaseState: base.NewBaseState(),
		Policy:    p,
		Seed:      cfg.Seed,
		Hour:      1,
		HourOfDay: startHourOfDay,
		Led:       ledger.New(p.StartingBalance),
		Status:    StatusOffline,
		Vehicle: Vehicle{
			FuelLevel:       100,
			FuelCapacityGal: p.FuelCapacityGal,
			MPGCity:         p.MPGCity,
			MPGHighway:      p.MPGHighway,
			ConditionScore:  100,
			Condition:       conditionFor(100),
		},
		Profile: Profile{
			Rating: 4.8,
			Tier:   tierFor(4.8),
		},
		Energy: Energy{
			Level:   100,
			Fatigue: fatigueFor(100),
			Mood:    "fresh",
		},
		CurrentZone: ZoneSuburbs,
		Zones:       make(map[string]*Zone, len(zoneOrder)),
	}
	for _, id := range zoneOrder {
		s.Zones[id] = &Zone{ID: id}
	}
	s.regenerateZones(1)
	return s
}

func (s *State) Benchmark() string { return "rideshare" }

// mpgFor picks the economy figure by trip length. Anything long enough
// to leave the zone grid reads as highway driving.
func (s *State) mpgFor(miles float64) float64 {
	if miles >= 10 {
		return s.Vehicle.MPGHighway
	}
	return s.Vehicle.MPGCity
}

// serviceDue reports whether the vehicle is past its maintenance
// interval. Overdue miles wear the vehicle at double rate.
func (s *State) serviceDue() bool {
	return s.Policy.ServiceDueMiles > 0 && s.Vehicle.MilesSinceService >= s.Policy.ServiceDueMiles
}

// burnFuel consumes fuel for the given miles and wears the vehicle.
// Returns false without mutating when the tank cannot cover the trip.
func (s *State) burnFuel(miles float64) bool {
	gallons := miles / s.mpgFor(miles)
	pct := gallons / s.Vehicle.FuelCapacityGal * 100
	if pct > s.Vehicle.FuelLevel {
		return false
	}
	wear := miles * 0.05
	if s.serviceDue() {
		wear *= 2
	}
	s.Vehicle.FuelLevel -= pct
	s.Vehicle.MilesSinceService += miles
	s.Vehicle.ConditionScore = math.Max(0, s.Vehicle.ConditionScore-wear)
	s.Vehicle.Condition = conditionFor(s.Vehicle.ConditionScore)
	return true
}

func (s *State) setEnergy(level float64) {
	if level > 100 {
		level = 100
	}
	if level < 0 {
		level = 0
	}
	s.Energy.Level = level
	s.Energy.Fatigue = fatigueFor(level)
}

func (s *State) recomputeProfile() {
	total := s.Profile.Accepted + s.Profile.Declined
	if total > 0 {
		s.Profile.AcceptanceRate = math.Round(float64(s.Profile.Accepted)/float64(total)*1000) / 1000
	}
	if s.Profile.Accepted > 0 {
		s.Profile.CancellationRate = math.Round(float64(s.Profile.Canceled)/float64(s.Profile.Accepted)*1000) / 1000
	}
	s.Profile.Tier = tierFor(s.Profile.Rating)
}

// scoreNow is net earnings for the shift: everything that flowed through
// the ledger, plus tips not yet collected, minus accrued step costs.
func (s *State) scoreNow() float64 {
	return s.Led.Balance - s.Led.StartingBalance + s.PendingTips - s.StepCostAccrued
}

func (s *State) findRequest(id string) (*Zone, int) {
	z := s.Zones[s.CurrentZone]
	for i, r := range z.Requests {
		if r.ID == id {
			return z, i
		}
	}
	return nil, -1
}

func (s *State) Tools() []protocol.ToolInfo { return rideshareRegistry.Catalog() }

func (s *State) Apply(tool string, input map[string]any) toolreg.Result {
	if s.Done {
		return toolreg.Failf(protocol.ErrRunTerminated, "run over: %s", s.Reason)
	}
	if s.Pause {
		// The pause request stays armed; the call is refused, not absorbed.
		return toolreg.Fail(protocol.ErrPrecondition, "waiting for next hour")
	}
	res := rideshareRegistry.Dispatch(s, tool, input)
	if res.OK && s.Policy.StepCost > 0 {
		if s.ApplyStepCost(s.Policy.StepCost) {
			s.StepCostAccrued += s.Policy.StepCost
		}
	}
	return res
}

// StepWorkers is a no-op: drivers work alone.
func (s *State) StepWorkers() {}

func (s *State) PausePending() bool { return s.Pause }

func (s *State) Terminated() (bool, string) { return s.Done, s.Reason }

func (s *State) Period() int         { return s.Hour }
func (s *State) Balance() float64    { return s.Led.Balance }
func (s *State) CurrentStep() uint64 { return s.Step }
func (s *State) IncStep()            { s.Step++ }
func (s *State) FinalScore() float64 { return s.scoreNow() }

func (s *State) PeriodLog() []protocol.PeriodEntry { return s.Log }
