package rideshare

import (
	"fmt"
	"math"

	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/ledger"
	"econbench.ai/internal/sim/toolreg"
)

var rideshareRegistry = newRegistry()

const zoneSchema = `{
  "type":"object",
  "required":["zone"],
  "properties":{
    "zone":{"type":"string","enum":["AIRPORT","DOWNTOWN","MIDTOWN","SUBURBS","UNIVERSITY","ENTERTAINMENT"]}
  },
  "additionalProperties":false
}`

const requestIDSchema = `{
  "type":"object",
  "required":["request_id"],
  "properties":{"request_id":{"type":"string","minLength":1}},
  "additionalProperties":false
}`

func newRegistry() *toolreg.Registry[*State] {
	r := toolreg.NewRegistry[*State]()
	r.MustRegister(
		&toolreg.Tool[*State]{
			Name:        "go_online",
			Description: "Start accepting ride requests in the current zone.",
			Handler:     handleGoOnline,
		},
		&toolreg.Tool[*State]{
			Name:        "go_offline",
			Description: "Stop accepting requests. Required before resting or servicing the car.",
			Handler:     handleGoOffline,
		},
		&toolreg.Tool[*State]{
			Name:        "check_status",
			Description: "Full driver status: clock, zone, vehicle, energy, profile, money.",
			Handler:     handleCheckStatus,
		},
		&toolreg.Tool[*State]{
			Name:        "view_requests",
			Description: "List open ride requests in the current zone. Requests expire each hour.",
			Handler:     handleViewRequests,
		},
		&toolreg.Tool[*State]{
			Name:        "accept_request",
			Description: "Accept a ride request. Fare locks in at the surge shown.",
			Schema:      requestIDSchema,
			Handler:     handleAcceptRequest,
		},
		&toolreg.Tool[*State]{
			Name:        "decline_request",
			Description: "Decline a ride request. Lowers the acceptance rate.",
			Schema:      requestIDSchema,
			Handler:     handleDeclineRequest,
		},
		&toolreg.Tool[*State]{
			Name:        "drive_to_zone",
			Description: "Reposition to another zone, burning fuel for the distance.",
			Schema:      zoneSchema,
			Handler:     handleDriveToZone,
		},
		&toolreg.Tool[*State]{
			Name:        "refuel",
			Description: "Fill the tank at the current zone's gas price.",
			Handler:     handleRefuel,
		},
		&toolreg.Tool[*State]{
			Name:        "service_vehicle",
			Description: "Take the car in for service. Resets wear; requires being offline.",
			Handler:     handleServiceVehicle,
		},
		&toolreg.Tool[*State]{
			Name:        "rest",
			Description: "Rest while offline to recover energy. A long enough rest resets the shift clock.",
			Schema: `{
			  "type":"object",
			  "required":["hours"],
			  "properties":{"hours":{"type":"integer","minimum":1,"maximum":24}},
			  "additionalProperties":false
			}`,
			Handler: handleRest,
		},
		&toolreg.Tool[*State]{
			Name:        "eat_meal",
			Description: "Buy a meal for a modest energy boost. Not available mid-ride.",
			Handler:     handleEatMeal,
		},
		&toolreg.Tool[*State]{
			Name:        "collect_tips",
			Description: "Cash out accumulated rider tips.",
			Handler:     handleCollectTips,
		},
		&toolreg.Tool[*State]{
			Name:        "write_scratchpad",
			Description: "Replace or append to the free-form scratchpad.",
			Schema: `{
			  "type":"object",
			  "required":["text"],
			  "properties":{
			    "text":{"type":"string"},
			    "append":{"type":"boolean"}
			  },
			  "additionalProperties":false
			}`,
			Handler: func(s *State, in toolreg.Input) toolreg.Result {
				if in.Bool("append") && s.Scratchpad != "" {
					s.Scratchpad += "\n" + in.Str("text")
				} else {
					s.Scratchpad = in.Str("text")
				}
				return toolreg.OK(map[string]any{"len": len(s.Scratchpad)})
			},
		},
		&toolreg.Tool[*State]{
			Name:        "read_scratchpad",
			Description: "Read the scratchpad.",
			Handler: func(s *State, _ toolreg.Input) toolreg.Result {
				return toolreg.OK(map[string]any{"text": s.Scratchpad})
			},
		},
		&toolreg.Tool[*State]{
			Name:        "kv_set",
			Description: "Store a value in the agent-owned key-value store.",
			Schema: `{
			  "type":"object",
			  "required":["key","value"],
			  "properties":{
			    "key":{"type":"string","minLength":1},
			    "value":{"type":"string"}
			  },
			  "additionalProperties":false
			}`,
			Handler: func(s *State, in toolreg.Input) toolreg.Result {
				s.KV[in.Str("key")] = in.Str("value")
				return toolreg.OK(nil)
			},
		},
		&toolreg.Tool[*State]{
			Name:        "kv_get",
			Description: "Read a value from the key-value store.",
			Schema: `{
			  "type":"object",
			  "required":["key"],
			  "properties":{"key":{"type":"string","minLength":1}},
			  "additionalProperties":false
			}`,
			Handler: func(s *State, in toolreg.Input) toolreg.Result {
				v, ok := s.KV[in.Str("key")]
				if !ok {
					return toolreg.Failf(protocol.ErrNotFound, "no key %q", in.Str("key"))
				}
				return toolreg.OK(map[string]any{"value": v})
			},
		},
		&toolreg.Tool[*State]{
			Name:        "wait_for_next_hour",
			Description: "Let the hour pass. Active rides progress, energy drains, the platform fee settles.",
			Handler: func(s *State, _ toolreg.Input) toolreg.Result {
				s.Pause = true
				return toolreg.OK(map[string]any{"hour": s.Hour})
			},
		},
	)
	return r
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func handleGoOnline(s *State, _ toolreg.Input) toolreg.Result {
	if s.Status != StatusOffline {
		return toolreg.Fail(protocol.ErrPrecondition, "already online")
	}
	if s.Energy.Fatigue == FatigueDangerous {
		return toolreg.Fail(protocol.ErrPrecondition, "too fatigued to drive; rest first")
	}
	s.Status = StatusOnline
	s.AddEvent("ONLINE", 0, "went online in "+s.CurrentZone)
	return toolreg.OK(map[string]any{"zone": s.CurrentZone})
}

func handleGoOffline(s *State, _ toolreg.Input) toolreg.Result {
	switch s.Status {
	case StatusOnRide:
		return toolreg.Fail(protocol.ErrPrecondition, "finish the active ride first")
	case StatusOffline:
		return toolreg.Fail(protocol.ErrPrecondition, "already offline")
	}
	s.Status = StatusOffline
	s.AddEvent("OFFLINE", 0, "went offline")
	return toolreg.OK(nil)
}

func handleCheckStatus(s *State, _ toolreg.Input) toolreg.Result {
	data := map[string]any{
		"hour":         s.Hour,
		"hour_of_day":  s.HourOfDay,
		"status":       s.Status,
		"zone":         s.CurrentZone,
		"balance":      round2(s.Led.Balance),
		"score":        round2(s.scoreNow()),
		"pending_tips": round2(s.PendingTips),
		"shift_hours":  s.HoursWorkedThisShift,
		"vehicle":      s.Vehicle,
		"service_due":  s.serviceDue(),
		"energy":       s.Energy,
		"profile":      s.Profile,
	}
	if s.Ride != nil {
		data["ride"] = s.Ride
	}
	return toolreg.OK(data)
}

func handleViewRequests(s *State, _ toolreg.Input) toolreg.Result {
	if s.Status != StatusOnline {
		return toolreg.Fail(protocol.ErrPrecondition, "go online to see requests")
	}
	z := s.Zones[s.CurrentZone]
	return toolreg.OK(map[string]any{
		"zone":           z.ID,
		"surge":          z.Surge,
		"demand":         z.Demand,
		"active_drivers": z.ActiveDrivers,
		"requests":       z.Requests,
	})
}

func handleAcceptRequest(s *State, in toolreg.Input) toolreg.Result {
	if s.Status != StatusOnline {
		return toolreg.Fail(protocol.ErrPrecondition, "must be online")
	}
	if s.Ride != nil {
		return toolreg.Fail(protocol.ErrConflict, "a ride is already active")
	}
	if s.Energy.Fatigue == FatigueDangerous {
		return toolreg.Fail(protocol.ErrPrecondition, "too fatigued to drive; rest first")
	}
	z, i := s.findRequest(in.Str("request_id"))
	if i < 0 {
		return toolreg.Failf(protocol.ErrNotFound, "no request %s here", in.Str("request_id"))
	}
	req := z.Requests[i]
	gallons := req.Miles / s.mpgFor(req.Miles)
	if gallons/s.Vehicle.FuelCapacityGal*100 > s.Vehicle.FuelLevel {
		return toolreg.Fail(protocol.ErrNoResource, "not enough fuel for this trip")
	}
	fare := round2((s.Policy.BaseFare + s.Policy.PerMileRate*req.Miles) * req.Surge)
	z.Requests = append(z.Requests[:i], z.Requests[i+1:]...)
	s.Ride = &ActiveRide{
		RequestID:     req.ID,
		Zone:          req.Zone,
		Dest:          req.Dest,
		Miles:         req.Miles,
		Fare:          fare,
		AcceptedHour:  s.Hour,
		CompletesHour: s.Hour + 1 + int(req.Miles/15),
	}
	s.Status = StatusOnRide
	s.Profile.Accepted++
	s.recomputeProfile()
	s.AddEvent("RIDE_ACCEPT", 0, fmt.Sprintf("accepted %s to %s, fare %.2f", req.ID, req.Dest, fare))
	return toolreg.OK(map[string]any{"ride": s.Ride})
}

func handleDeclineRequest(s *State, in toolreg.Input) toolreg.Result {
	if s.Status != StatusOnline {
		return toolreg.Fail(protocol.ErrPrecondition, "must be online")
	}
	z, i := s.findRequest(in.Str("request_id"))
	if i < 0 {
		return toolreg.Failf(protocol.ErrNotFound, "no request %s here", in.Str("request_id"))
	}
	z.Requests = append(z.Requests[:i], z.Requests[i+1:]...)
	s.Profile.Declined++
	s.recomputeProfile()
	return toolreg.OK(map[string]any{"acceptance_rate": s.Profile.AcceptanceRate})
}

func handleDriveToZone(s *State, in toolreg.Input) toolreg.Result {
	if s.Status == StatusOnRide {
		return toolreg.Fail(protocol.ErrPrecondition, "cannot reposition mid-ride")
	}
	dest := in.Str("zone")
	if dest == s.CurrentZone {
		return toolreg.Fail(protocol.ErrPrecondition, "already in "+dest)
	}
	miles := zoneDistance(s.CurrentZone, dest)
	if !s.burnFuel(miles) {
		return toolreg.Fail(protocol.ErrNoResource, "not enough fuel to reach "+dest)
	}
	s.CurrentZone = dest
	s.AddEvent("REPOSITION", 0, fmt.Sprintf("drove %.1f mi to %s", miles, dest))
	return toolreg.OK(map[string]any{"zone": dest, "miles": miles, "fuel_level": round2(s.Vehicle.FuelLevel)})
}

func handleRefuel(s *State, _ toolreg.Input) toolreg.Result {
	if s.Status == StatusOnRide {
		return toolreg.Fail(protocol.ErrPrecondition, "cannot refuel mid-ride")
	}
	if s.Vehicle.FuelLevel >= 99.5 {
		return toolreg.Fail(protocol.ErrPrecondition, "tank is already full")
	}
	gallons := (100 - s.Vehicle.FuelLevel) / 100 * s.Vehicle.FuelCapacityGal
	price := s.Zones[s.CurrentZone].GasPrice
	cost := round2(gallons * price)
	if !s.Led.Charge(cost, ledger.TxCost, fmt.Sprintf("fuel %.1f gal at %s", gallons, s.CurrentZone), s.Hour) {
		return toolreg.Failf(protocol.ErrNoFunds, "refuel costs %.2f, balance %.2f", cost, s.Led.Balance)
	}
	s.Vehicle.FuelLevel = 100
	s.AddEvent("REFUEL", -cost, fmt.Sprintf("refueled at %s for %.2f", s.CurrentZone, cost))
	return toolreg.OK(map[string]any{"cost": cost, "gas_price": price})
}

func handleServiceVehicle(s *State, _ toolreg.Input) toolreg.Result {
	if s.Status != StatusOffline {
		return toolreg.Fail(protocol.ErrPrecondition, "go offline before servicing the car")
	}
	cost := s.Policy.ServiceCost
	if !s.Led.Charge(cost, ledger.TxCost, "vehicle service", s.Hour) {
		return toolreg.Failf(protocol.ErrNoFunds, "service costs %.2f, balance %.2f", cost, s.Led.Balance)
	}
	s.Vehicle.MilesSinceService = 0
	s.Vehicle.ConditionScore = 100
	s.Vehicle.Condition = conditionFor(100)
	s.AddEvent("SERVICE", -cost, "vehicle serviced")
	return toolreg.OK(map[string]any{"cost": cost, "condition": s.Vehicle.Condition})
}

func handleRest(s *State, in toolreg.Input) toolreg.Result {
	if s.Status != StatusOffline {
		return toolreg.Fail(protocol.ErrPrecondition, "go offline before resting")
	}
	hours := in.Int("hours")
	s.setEnergy(s.Energy.Level + float64(hours)*s.Policy.RestRecoveryPerHour)
	if hours >= s.Policy.ShiftResetRestHours {
		s.HoursWorkedThisShift = 0
	}
	s.Energy.Mood = "rested"
	s.AddEvent("REST", 0, fmt.Sprintf("rested %dh, energy %.0f", hours, s.Energy.Level))
	return toolreg.OK(map[string]any{
		"energy_level": s.Energy.Level,
		"fatigue":      s.Energy.Fatigue,
		"shift_hours":  s.HoursWorkedThisShift,
	})
}

func handleEatMeal(s *State, _ toolreg.Input) toolreg.Result {
	if s.Status == StatusOnRide {
		return toolreg.Fail(protocol.ErrPrecondition, "cannot eat mid-ride")
	}
	cost := s.Policy.MealCost
	if !s.Led.Charge(cost, ledger.TxCost, "meal", s.Hour) {
		return toolreg.Failf(protocol.ErrNoFunds, "a meal costs %.2f, balance %.2f", cost, s.Led.Balance)
	}
	s.setEnergy(s.Energy.Level + s.Policy.MealEnergy)
	s.Energy.Mood = "content"
	s.AddEvent("MEAL", -cost, "ate a meal")
	return toolreg.OK(map[string]any{"energy_level": s.Energy.Level, "cost": cost})
}

func handleCollectTips(s *State, _ toolreg.Input) toolreg.Result {
	if s.PendingTips <= 0 {
		return toolreg.Fail(protocol.ErrNoResource, "no tips to collect")
	}
	tips := round2(s.PendingTips)
	s.Led.Credit(tips, ledger.TxCollection, "rider tips", s.Hour)
	s.PendingTips = 0
	s.AddEvent("TIPS", tips, fmt.Sprintf("collected %.2f in tips", tips))
	return toolreg.OK(map[string]any{"collected": tips, "balance": round2(s.Led.Balance)})
}
