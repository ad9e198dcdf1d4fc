package rideshare

import (
	"testing"

	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/ledger"
	"econbench.ai/internal/sim/policy"
)

func newTestState(mut func(*policy.Policy)) *State {
	p := policy.Defaults()
	if mut != nil {
		mut(&p)
	}
	return New(Config{Seed: 42, Policy: p})
}

func TestNew_FreshRun(t *testing.T) {
	s := newTestState(nil)
	if s.Hour != 1 || s.Step != 1 || s.HourOfDay != startHourOfDay {
		t.Fatalf("hour=%d step=%d hod=%d", s.Hour, s.Step, s.HourOfDay)
	}
	if s.Status != StatusOffline || s.CurrentZone != ZoneSuburbs {
		t.Fatalf("status=%s zone=%s", s.Status, s.CurrentZone)
	}
	if s.Vehicle.FuelLevel != 100 || s.Energy.Fatigue != FatigueRested {
		t.Fatalf("fuel=%v fatigue=%s", s.Vehicle.FuelLevel, s.Energy.Fatigue)
	}
	if s.Led.Balance != 100 || s.FinalScore() != 0 {
		t.Fatalf("balance=%v score=%v", s.Led.Balance, s.FinalScore())
	}
	if len(s.Zones) != 6 {
		t.Fatalf("zones=%d want 6", len(s.Zones))
	}
}

func TestSameSeedSameCity(t *testing.T) {
	a := newTestState(nil)
	b := newTestState(nil)
	for _, id := range zoneOrder {
		za, zb := a.Zones[id], b.Zones[id]
		if za.Surge != zb.Surge || za.GasPrice != zb.GasPrice || len(za.Requests) != len(zb.Requests) {
			t.Fatalf("zone %s diverged: %+v vs %+v", id, za, zb)
		}
		for i := range za.Requests {
			if *za.Requests[i] != *zb.Requests[i] {
				t.Fatalf("request %d in %s diverged", i, id)
			}
		}
	}
}

func TestRestRequiresOffline(t *testing.T) {
	s := newTestState(nil)
	if res := s.Apply("go_online", nil); !res.OK {
		t.Fatalf("go_online: %+v", res)
	}

	before := s.Energy.Level
	res := s.Apply("rest", map[string]any{"hours": float64(2)})
	if res.OK || res.Code != protocol.ErrPrecondition {
		t.Fatalf("rest while online: %+v want E_PRECONDITION", res)
	}
	if s.Energy.Level != before {
		t.Fatalf("energy changed on refused rest: %v -> %v", before, s.Energy.Level)
	}
}

func TestRestRecoveryExactAndCapped(t *testing.T) {
	s := newTestState(nil)
	s.Energy.Level = 40
	s.Energy.Fatigue = fatigueFor(40)
	s.HoursWorkedThisShift = 6

	// 2h below the shift-reset threshold: exact recovery, shift clock kept.
	res := s.Apply("rest", map[string]any{"hours": float64(2)})
	if !res.OK {
		t.Fatalf("rest: %+v", res)
	}
	if s.Energy.Level != 40+2*12 {
		t.Fatalf("energy=%v want 64", s.Energy.Level)
	}
	if s.HoursWorkedThisShift != 6 {
		t.Fatalf("shift clock reset by a short rest: %d", s.HoursWorkedThisShift)
	}

	// A long rest caps at 100 and resets the shift clock.
	res = s.Apply("rest", map[string]any{"hours": float64(10)})
	if !res.OK {
		t.Fatalf("rest: %+v", res)
	}
	if s.Energy.Level != 100 || s.Energy.Fatigue != FatigueRested {
		t.Fatalf("energy=%v fatigue=%s want 100/rested", s.Energy.Level, s.Energy.Fatigue)
	}
	if s.HoursWorkedThisShift != 0 {
		t.Fatalf("shift clock not reset: %d", s.HoursWorkedThisShift)
	}
}

func TestDangerousFatigueBlocksDriving(t *testing.T) {
	s := newTestState(nil)
	s.Energy.Level = 10
	s.Energy.Fatigue = fatigueFor(10)

	res := s.Apply("go_online", nil)
	if res.OK || res.Code != protocol.ErrPrecondition {
		t.Fatalf("go_online at dangerous fatigue: %+v", res)
	}
}

func TestAcceptAndCompleteRide(t *testing.T) {
	s := newTestState(nil)
	if res := s.Apply("go_online", nil); !res.OK {
		t.Fatalf("go_online: %+v", res)
	}
	// The airport always has morning demand.
	if res := s.Apply("drive_to_zone", map[string]any{"zone": ZoneAirport}); !res.OK {
		t.Fatalf("drive_to_zone: %+v", res)
	}
	reqs := s.Zones[ZoneAirport].Requests
	if len(reqs) == 0 {
		t.Fatalf("no airport requests at hour 1")
	}
	req := reqs[0]
	wantFare := round2((2.5 + 1.75*req.Miles) * req.Surge)

	res := s.Apply("accept_request", map[string]any{"request_id": req.ID})
	if !res.OK {
		t.Fatalf("accept_request: %+v", res)
	}
	if s.Status != StatusOnRide || s.Ride == nil || s.Ride.Fare != wantFare {
		t.Fatalf("ride not active as expected: status=%s ride=%+v", s.Status, s.Ride)
	}

	// Mid-ride the driver can neither accept again nor reposition.
	if res := s.Apply("accept_request", map[string]any{"request_id": req.ID}); res.OK || res.Code != protocol.ErrPrecondition {
		t.Fatalf("second accept: %+v", res)
	}
	if res := s.Apply("drive_to_zone", map[string]any{"zone": ZoneDowntown}); res.OK || res.Code != protocol.ErrPrecondition {
		t.Fatalf("reposition mid-ride: %+v", res)
	}

	dest := s.Ride.Dest
	for i := 0; s.Ride != nil && i < 5; i++ {
		s.Settle()
	}
	if s.Ride != nil {
		t.Fatalf("ride never completed")
	}
	if s.Status != StatusOnline || s.CurrentZone != dest {
		t.Fatalf("after ride: status=%s zone=%s want online/%s", s.Status, s.CurrentZone, dest)
	}
	if s.Profile.TotalRides != 1 || s.Profile.Accepted != 1 {
		t.Fatalf("profile=%+v", s.Profile)
	}
	// The fare landed in the ledger as an earning.
	found := false
	for _, tx := range s.Led.Transactions {
		if tx.Type == ledger.TxEarning && tx.Amount == wantFare {
			found = true
		}
	}
	if !found {
		t.Fatalf("no earning of %v in %+v", wantFare, s.Led.Transactions)
	}
}

func TestDeclineLowersAcceptance(t *testing.T) {
	s := newTestState(nil)
	s.Apply("go_online", nil)
	s.Apply("drive_to_zone", map[string]any{"zone": ZoneAirport})
	req := s.Zones[ZoneAirport].Requests[0]

	res := s.Apply("decline_request", map[string]any{"request_id": req.ID})
	if !res.OK {
		t.Fatalf("decline_request: %+v", res)
	}
	if s.Profile.Declined != 1 || s.Profile.AcceptanceRate != 0 {
		t.Fatalf("profile=%+v", s.Profile)
	}
	if res := s.Apply("decline_request", map[string]any{"request_id": req.ID}); res.OK || res.Code != protocol.ErrNotFound {
		t.Fatalf("declining twice: %+v", res)
	}
}

func TestRefuel(t *testing.T) {
	s := newTestState(nil)
	s.Vehicle.FuelLevel = 50

	price := s.Zones[s.CurrentZone].GasPrice
	wantCost := round2(0.5 * s.Vehicle.FuelCapacityGal * price)

	res := s.Apply("refuel", nil)
	if !res.OK {
		t.Fatalf("refuel: %+v", res)
	}
	if s.Vehicle.FuelLevel != 100 {
		t.Fatalf("fuel=%v want 100", s.Vehicle.FuelLevel)
	}
	if s.Led.Balance != 100-wantCost {
		t.Fatalf("balance=%v want %v", s.Led.Balance, 100-wantCost)
	}
	if res := s.Apply("refuel", nil); res.OK || res.Code != protocol.ErrPrecondition {
		t.Fatalf("refuel on full tank: %+v", res)
	}
}

func TestRefuelWithoutFunds(t *testing.T) {
	s := newTestState(func(p *policy.Policy) { p.Rideshare.StartingBalance = 1 })
	s.Vehicle.FuelLevel = 10

	res := s.Apply("refuel", nil)
	if res.OK || res.Code != protocol.ErrNoFunds {
		t.Fatalf("refuel broke: %+v want E_NO_FUNDS", res)
	}
	if s.Vehicle.FuelLevel != 10 || s.Led.Balance != 1 {
		t.Fatalf("refused refuel mutated state: fuel=%v balance=%v", s.Vehicle.FuelLevel, s.Led.Balance)
	}
}

func TestFuelGatesLongTrips(t *testing.T) {
	s := newTestState(nil)
	s.Vehicle.FuelLevel = 1

	res := s.Apply("drive_to_zone", map[string]any{"zone": ZoneAirport})
	if res.OK || res.Code != protocol.ErrNoResource {
		t.Fatalf("drive on empty tank: %+v", res)
	}
	if s.CurrentZone != ZoneSuburbs {
		t.Fatalf("moved without fuel: %s", s.CurrentZone)
	}
}

func TestHorizonEndsRun(t *testing.T) {
	s := newTestState(func(p *policy.Policy) { p.Rideshare.MaxHours = 3 })

	for i := 0; i < 3; i++ {
		if res := s.Apply("wait_for_next_hour", nil); !res.OK {
			t.Fatalf("wait hour %d: %+v", s.Hour, res)
		}
		if !s.PausePending() {
			t.Fatalf("pause not armed")
		}
		s.Settle()
	}
	done, reason := s.Terminated()
	if !done || reason != protocol.ReasonHorizon {
		t.Fatalf("done=%v reason=%q", done, reason)
	}
	if s.Hour != 4 || len(s.PeriodLog()) != 3 {
		t.Fatalf("hour=%d log=%d", s.Hour, len(s.PeriodLog()))
	}
	// Offline the whole time: only platform fees moved money.
	if s.Led.Balance != 100-3*0.5 {
		t.Fatalf("balance=%v want 98.5", s.Led.Balance)
	}
	if s.FinalScore() != -1.5 {
		t.Fatalf("score=%v want -1.5", s.FinalScore())
	}
	if res := s.Apply("check_status", nil); res.OK || res.Code != protocol.ErrRunTerminated {
		t.Fatalf("call after termination: %+v", res)
	}
}

func TestBankruptcyOnUnpaidFees(t *testing.T) {
	s := newTestState(func(p *policy.Policy) { p.Rideshare.StartingBalance = 0 })

	for i := 0; i < 10; i++ {
		if s.Done {
			t.Fatalf("terminated early at settle %d", i)
		}
		s.Apply("wait_for_next_hour", nil)
		s.Settle()
	}
	done, reason := s.Terminated()
	if !done || reason != protocol.ReasonBankrupt {
		t.Fatalf("done=%v reason=%q", done, reason)
	}
	if s.Led.Balance != 0 || len(s.Led.Transactions) != 0 {
		t.Fatalf("failed charges mutated the ledger: %+v", s.Led)
	}
	if s.FinalScore() != 0 {
		t.Fatalf("score=%v want 0", s.FinalScore())
	}
}

func TestPauseRefusesCallsWithoutDroppingRequest(t *testing.T) {
	s := newTestState(nil)
	if res := s.Apply("wait_for_next_hour", nil); !res.OK {
		t.Fatalf("wait: %+v", res)
	}
	res := s.Apply("check_status", nil)
	if res.OK || res.Code != protocol.ErrPrecondition {
		t.Fatalf("call while paused: %+v", res)
	}
	if !s.PausePending() {
		t.Fatalf("refused call dropped the pause request")
	}
	s.Settle()
	if s.PausePending() {
		t.Fatalf("settle left pause armed")
	}
	if res := s.Apply("check_status", nil); !res.OK {
		t.Fatalf("call after settle: %+v", res)
	}
}

func TestEnergyDrainsWhileOnline(t *testing.T) {
	s := newTestState(nil)
	s.Apply("go_online", nil)
	s.Apply("wait_for_next_hour", nil)
	s.Settle()

	if s.Energy.Level != 100-6 {
		t.Fatalf("energy=%v want 94", s.Energy.Level)
	}
	if s.HoursWorkedThisShift != 1 {
		t.Fatalf("shift hours=%d want 1", s.HoursWorkedThisShift)
	}

	// Offline hours cost nothing.
	s.Apply("go_offline", nil)
	s.Apply("wait_for_next_hour", nil)
	s.Settle()
	if s.Energy.Level != 94 || s.HoursWorkedThisShift != 1 {
		t.Fatalf("offline hour drained energy: %v / %d", s.Energy.Level, s.HoursWorkedThisShift)
	}
}

func TestCollectTips(t *testing.T) {
	s := newTestState(nil)
	if res := s.Apply("collect_tips", nil); res.OK || res.Code != protocol.ErrNoResource {
		t.Fatalf("collect with no tips: %+v", res)
	}
	s.PendingTips = 7.25
	scoreBefore := s.FinalScore()
	res := s.Apply("collect_tips", nil)
	if !res.OK {
		t.Fatalf("collect_tips: %+v", res)
	}
	if s.PendingTips != 0 || s.Led.Balance != 107.25 {
		t.Fatalf("tips=%v balance=%v", s.PendingTips, s.Led.Balance)
	}
	// Collection moves money, not score: tips counted either way.
	if s.FinalScore() != scoreBefore {
		t.Fatalf("score moved on collection: %v -> %v", scoreBefore, s.FinalScore())
	}
}

func TestOverdueServiceDoublesWear(t *testing.T) {
	s := newTestState(func(p *policy.Policy) { p.Rideshare.ServiceDueMiles = 50 })

	if !s.burnFuel(10) {
		t.Fatalf("burnFuel on a full tank refused")
	}
	if got := 100 - s.Vehicle.ConditionScore; got != 10*0.05 {
		t.Fatalf("wear=%v want 0.5", got)
	}

	res := s.Apply("check_status", nil)
	if res.Data["service_due"].(bool) {
		t.Fatalf("service flagged due at %v miles", s.Vehicle.MilesSinceService)
	}

	s.Vehicle.MilesSinceService = 60
	before := s.Vehicle.ConditionScore
	if !s.burnFuel(10) {
		t.Fatalf("burnFuel refused")
	}
	if got := before - s.Vehicle.ConditionScore; got != 10*0.05*2 {
		t.Fatalf("overdue wear=%v want 1", got)
	}
	res = s.Apply("check_status", nil)
	if !res.Data["service_due"].(bool) {
		t.Fatalf("overdue service not surfaced: %+v", res.Data)
	}
}

func TestServiceVehicle(t *testing.T) {
	s := newTestState(func(p *policy.Policy) { p.Rideshare.StartingBalance = 500 })
	s.Vehicle.MilesSinceService = 4200
	s.Vehicle.ConditionScore = 55
	s.Vehicle.Condition = conditionFor(55)

	s.Apply("go_online", nil)
	if res := s.Apply("service_vehicle", nil); res.OK || res.Code != protocol.ErrPrecondition {
		t.Fatalf("service while online: %+v", res)
	}
	s.Apply("go_offline", nil)

	res := s.Apply("service_vehicle", nil)
	if !res.OK {
		t.Fatalf("service_vehicle: %+v", res)
	}
	if s.Vehicle.MilesSinceService != 0 || s.Vehicle.Condition != "excellent" {
		t.Fatalf("vehicle=%+v", s.Vehicle)
	}
	if s.Led.Balance != 500-120 {
		t.Fatalf("balance=%v want 380", s.Led.Balance)
	}
}
