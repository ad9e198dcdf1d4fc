package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds every tunable constant for both benchmarks. Anything a
// deployment may want to vary per run (shift reset hours, wage timing,
// fees) lives here rather than in code.
type Policy struct {
	Vending   Vending   `yaml:"vending"`
	Rideshare Rideshare `yaml:"rideshare"`
	Worker    Worker    `yaml:"worker"`
}

type Vending struct {
	StartingBalance     float64 `yaml:"starting_balance"`
	DailyFee            float64 `yaml:"daily_fee"`
	BankruptcyThreshold int     `yaml:"bankruptcy_threshold"`
	MaxDays             int     `yaml:"max_days"`
	OrderLeadDays       int     `yaml:"order_lead_days"`
	MachineRows         int     `yaml:"machine_rows"`
	MachineCols         int     `yaml:"machine_cols"`
	StepCost            float64 `yaml:"step_cost"`
}

type Rideshare struct {
	StartingBalance     float64 `yaml:"starting_balance"`
	HourlyPlatformFee   float64 `yaml:"hourly_platform_fee"`
	BankruptcyThreshold int     `yaml:"bankruptcy_threshold"`
	MaxHours            int     `yaml:"max_hours"`
	BaseFare            float64 `yaml:"base_fare"`
	PerMileRate         float64 `yaml:"per_mile_rate"`
	RestRecoveryPerHour float64 `yaml:"rest_recovery_per_hour"`
	ShiftResetRestHours int     `yaml:"shift_reset_rest_hours"`
	EnergyDrainPerHour  float64 `yaml:"energy_drain_per_hour"`
	FuelCapacityGal     float64 `yaml:"fuel_capacity_gal"`
	MPGCity             float64 `yaml:"mpg_city"`
	MPGHighway          float64 `yaml:"mpg_highway"`
	MealCost            float64 `yaml:"meal_cost"`
	MealEnergy          float64 `yaml:"meal_energy"`
	ServiceDueMiles     float64 `yaml:"service_due_miles"`
	ServiceCost         float64 `yaml:"service_cost"`
	StepCost            float64 `yaml:"step_cost"`
}

type Worker struct {
	HireFee           float64 `yaml:"hire_fee"`
	DailyWage         float64 `yaml:"daily_wage"`
	TaskFee           float64 `yaml:"task_fee"`
	MaxSteps          int     `yaml:"max_steps"`
	ApprovalThreshold float64 `yaml:"approval_threshold"`
}

// Defaults mirrors configs/policy.yaml. Snapshot resumes fall back to it
// when the file is absent.
func Defaults() Policy {
	return Policy{
		Vending: Vending{
			StartingBalance:     500,
			DailyFee:            2,
			BankruptcyThreshold: 10,
			MaxDays:             365,
			OrderLeadDays:       2,
			MachineRows:         4,
			MachineCols:         3,
			StepCost:            0,
		},
		Rideshare: Rideshare{
			StartingBalance:     100,
			HourlyPlatformFee:   0.5,
			BankruptcyThreshold: 10,
			MaxHours:            168,
			BaseFare:            2.5,
			PerMileRate:         1.75,
			RestRecoveryPerHour: 12,
			ShiftResetRestHours: 4,
			EnergyDrainPerHour:  6,
			FuelCapacityGal:     13,
			MPGCity:             26,
			MPGHighway:          34,
			MealCost:            12,
			MealEnergy:          15,
			ServiceDueMiles:     5000,
			ServiceCost:         120,
			StepCost:            0,
		},
		Worker: Worker{
			HireFee:           50,
			DailyWage:         20,
			TaskFee:           5,
			MaxSteps:          20,
			ApprovalThreshold: 25,
		},
	}
}

func Load(path string) (Policy, error) {
	p := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("policy.yaml: %w", err)
	}
	return p, nil
}
