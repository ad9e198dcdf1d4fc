package vending

import (
	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/base"
	"econbench.ai/internal/sim/ledger"
	"econbench.ai/internal/sim/policy"
	"econbench.ai/internal/sim/worker"
)

// Slot sizes by machine row. Size is immutable and determined by row.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// Slot is one position in the machine grid. Empty convention: Product ==
// "", Cost == 0, Qty == 0, Price == 0.
type Slot struct {
	Row     int     `json:"row"`
	Col     int     `json:"col"`
	Size    string  `json:"size"`
	Product string  `json:"product,omitempty"`
	Cost    float64 `json:"cost"`
	Qty     int     `json:"qty"`
	Price   float64 `json:"price"`
}

type StorageItem struct {
	Name        string  `json:"name"`
	Qty         int     `json:"qty"`
	CostPerUnit float64 `json:"cost_per_unit"`
	Size        string  `json:"size"`
}

type OrderItem struct {
	Product  string  `json:"product"`
	Qty      int     `json:"qty"`
	UnitCost float64 `json:"unit_cost"`
}

// PendingOrder is created when payment clears. Goods become stockable
// only once the current day reaches DeliveryDay; Delivered flips exactly
// once.
type PendingOrder struct {
	ID          string      `json:"id"`
	Items       []OrderItem `json:"items"`
	TotalPaid   float64     `json:"total_paid"`
	OrderDay    int         `json:"order_day"`
	DeliveryDay int         `json:"delivery_day"`
	Delivered   bool        `json:"delivered"`
}

// Email, unlike worker messages, is delivered at period boundaries.
type Email struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Day     int    `json:"day"` // delivery day
	Read    bool   `json:"read"`
}

// State is the vending business world. It is owned by exactly one run
// and mutated only through tool dispatch on the run's writer goroutine.
type State struct {
	base.BaseState

	Policy policy.Vending `json:"policy"`
	Seed   int64          `json:"seed"`

	Day         int            `json:"day"`
	Led         *ledger.Ledger `json:"ledger"`
	MachineCash float64        `json:"machine_cash"`

	Slots   []Slot          `json:"slots"` // row-major
	Storage []StorageItem   `json:"storage"`
	Orders  []*PendingOrder `json:"orders"`

	Inbox  []Email `json:"inbox"`
	Outbox []Email `json:"outbox"` // queued for future delivery days

	Workers *worker.Engine `json:"workers"`

	Pause  bool   `json:"pause"`
	Done   bool   `json:"done"`
	Reason string `json:"reason,omitempty"`

	Log []protocol.PeriodEntry `json:"period_log"`

	OrderSeq int `json:"order_seq"`
	EmailSeq int `json:"email_seq"`
}

func sizeForRow(row int) string {
	switch {
	case row <= 1:
		return SizeSmall
	case row == 2:
		return SizeMedium
	default:
		return SizeLarge
	}
}

func capacityFor(size string) int {
	switch size {
	case SizeSmall:
		return 12
	case SizeMedium:
		return 8
	default:
		return 4
	}
}
