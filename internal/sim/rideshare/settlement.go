package rideshare

import (
	"fmt"
	"math"
	"math/rand"

	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/ledger"
)

// rideRand salts the per-hour stream so ride outcomes never echo the
// zone regeneration draws for the same hour.
func rideRand(seed int64, hour int) *rand.Rand {
	return rand.New(rand.NewSource(seed ^ int64(hour)*0x9e3779b9 + 7))
}

// completeRideIfDue finishes the active ride when its completion hour
// has arrived: fare earned, fuel burned, wear applied, driver dropped
// in the destination zone back online.
func (s *State) completeRideIfDue(closingHour int, rng *rand.Rand) {
	if s.Ride == nil || s.Ride.CompletesHour > closingHour+1 {
		return
	}
	r := s.Ride

	// Fuel was verified at accept; nothing can drain the tank mid-ride.
	s.burnFuel(r.Miles)

	s.Led.Credit(r.Fare, ledger.TxEarning, fmt.Sprintf("fare %s %s->%s", r.RequestID, r.Zone, r.Dest), closingHour)
	s.AddEvent("RIDE_DONE", r.Fare, fmt.Sprintf("completed %s, fare %.2f", r.RequestID, r.Fare))

	// Roughly a third of riders tip, 10-25% of the fare.
	if rng.Float64() < 0.35 {
		tip := math.Round(r.Fare*(0.10+rng.Float64()*0.15)*100) / 100
		s.PendingTips += tip
		s.AddEvent("TIP", tip, fmt.Sprintf("rider tipped %.2f", tip))
	}

	// Ratings drift toward the rider's experience of the trip.
	drift := (rng.Float64() - 0.35) * 0.06
	s.Profile.Rating = math.Max(1, math.Min(5, math.Round((s.Profile.Rating+drift)*100)/100))
	s.Profile.TotalRides++
	s.recomputeProfile()

	s.CurrentZone = r.Dest
	s.Status = StatusOnline
	s.Ride = nil
}

// Settle closes the current hour. Order is fixed: working-hour effects,
// ride completion, the platform fee, clock advance, city regeneration,
// then termination checks.
func (s *State) Settle() {
	if s.Done {
		return
	}
	closing := s.Hour
	rng := rideRand(s.Seed, closing)

	if s.Status != StatusOffline {
		s.setEnergy(s.Energy.Level - s.Policy.EnergyDrainPerHour)
		s.HoursWorkedThisShift++
		if s.Energy.Fatigue == FatigueDangerous {
			s.Energy.Mood = "drained"
		} else if s.HoursWorkedThisShift > 8 {
			s.Energy.Mood = "worn"
		}
	}

	s.completeRideIfDue(closing, rng)

	// The platform fee is owed whether or not the driver worked.
	if !s.Led.MandatoryCharge(s.Policy.HourlyPlatformFee, ledger.TxFee, "platform fee", closing) {
		s.AddEvent("FEE_MISSED", 0, fmt.Sprintf("platform fee unpaid (%d consecutive)", s.Led.ConsecutiveUnpaid))
	}

	s.Hour++
	s.HourOfDay = (s.HourOfDay + 1) % 24
	s.regenerateZones(s.Hour)

	s.Score = s.scoreNow()
	s.Log = append(s.Log, protocol.PeriodEntry{Period: closing, Value: s.Score})
	s.Pause = false

	if s.Led.ConsecutiveUnpaid >= s.Policy.BankruptcyThreshold {
		s.Done = true
		s.Reason = protocol.ReasonBankrupt
		return
	}
	if s.Hour > s.Policy.MaxHours {
		s.Done = true
		s.Reason = protocol.ReasonHorizon
	}
}
