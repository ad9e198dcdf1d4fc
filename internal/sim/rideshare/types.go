package rideshare

import (
	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/base"
	"econbench.ai/internal/sim/ledger"
	"econbench.ai/internal/sim/policy"
)

// Driver statuses.
const (
	StatusOffline = "offline"
	StatusOnline  = "online"
	StatusOnRide  = "on_ride"
)

// Fatigue bands, a monotone function of energy level.
const (
	FatigueRested    = "rested"
	FatigueNormal    = "normal"
	FatigueTired     = "tired"
	FatigueExhausted = "exhausted"
	FatigueDangerous = "dangerous"
)

type Vehicle struct {
	FuelLevel         float64 `json:"fuel_level"` // percent, 0..100
	FuelCapacityGal   float64 `json:"fuel_capacity_gal"`
	MPGCity           float64 `json:"mpg_city"`
	MPGHighway        float64 `json:"mpg_highway"`
	Condition         string  `json:"condition"`
	ConditionScore    float64 `json:"condition_score"` // 0..100
	MilesSinceService float64 `json:"miles_since_service"`
}

type Profile struct {
	Rating           float64 `json:"rating"` // 1..5
	TotalRides       int     `json:"total_rides"`
	AcceptanceRate   float64 `json:"acceptance_rate"`
	CancellationRate float64 `json:"cancellation_rate"`
	Tier             string  `json:"tier"`
	Accepted         int     `json:"accepted"`
	Declined         int     `json:"declined"`
	Canceled         int     `json:"canceled"`
}

type Energy struct {
	Level   float64 `json:"level"` // 0..100
	Fatigue string  `json:"fatigue"`
	Mood    string  `json:"mood"`
}

// PendingRequest is a rider waiting in a zone. Requests expire at the
// next hour boundary.
type PendingRequest struct {
	ID          string  `json:"id"`
	Zone        string  `json:"zone"`
	Dest        string  `json:"dest"`
	Miles       float64 `json:"miles"`
	Surge       float64 `json:"surge"`
	ExpiresHour int     `json:"expires_hour"`
}

type ActiveRide struct {
	RequestID     string  `json:"request_id"`
	Zone          string  `json:"zone"`
	Dest          string  `json:"dest"`
	Miles         float64 `json:"miles"`
	Fare          float64 `json:"fare"`
	AcceptedHour  int     `json:"accepted_hour"`
	CompletesHour int     `json:"completes_hour"`
}

type Zone struct {
	ID             string            `json:"id"`
	Demand         float64           `json:"demand"`
	Surge          float64           `json:"surge"`
	ActiveDrivers  int               `json:"active_drivers"`
	GasPrice       float64           `json:"gas_price"`
	Requests       []*PendingRequest `json:"requests"`
}

// State is the rideshare shift world.
type State struct {
	base.BaseState

	Policy policy.Rideshare `json:"policy"`
	Seed   int64            `json:"seed"`

	Hour      int `json:"hour"`        // 1..MaxHours
	HourOfDay int `json:"hour_of_day"` // 0..23

	Led *ledger.Ledger `json:"ledger"`

	Status      string  `json:"status"`
	CurrentZone string  `json:"current_zone"`
	Vehicle     Vehicle `json:"vehicle"`
	Profile     Profile `json:"profile"`
	Energy      Energy  `json:"energy"`

	HoursWorkedThisShift int     `json:"hours_worked_this_shift"`
	PendingTips          float64 `json:"pending_tips"`
	StepCostAccrued      float64 `json:"step_cost_accrued"`

	Zones map[string]*Zone `json:"zones"`
	Ride  *ActiveRide      `json:"ride,omitempty"`

	Pause  bool   `json:"pause"`
	Done   bool   `json:"done"`
	Reason string `json:"reason,omitempty"`

	Log []protocol.PeriodEntry `json:"period_log"`

	ReqSeq int `json:"req_seq"`
}

func fatigueFor(level float64) string {
	switch {
	case level >= 80:
		return FatigueRested
	case level >= 60:
		return FatigueNormal
	case level >= 40:
		return FatigueTired
	case level >= 20:
		return FatigueExhausted
	default:
		return FatigueDangerous
	}
}

func conditionFor(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 70:
		return "good"
	case score >= 50:
		return "fair"
	case score >= 30:
		return "poor"
	default:
		return "critical"
	}
}

func tierFor(rating float64) string {
	switch {
	case rating >= 4.9:
		return "platinum"
	case rating >= 4.7:
		return "gold"
	case rating >= 4.5:
		return "silver"
	default:
		return "standard"
	}
}
