package vending

import (
	"fmt"
	"math/rand"

	"econbench.ai/internal/protocol"
	"econbench.ai/internal/sim/ledger"
)

// demandRand derives a fresh source per day so settlement stays
// deterministic across snapshot resumes: no stateful RNG survives in the
// world state.
func demandRand(seed int64, day int) *rand.Rand {
	return rand.New(rand.NewSource(seed ^ (int64(day) * 0x9e3779b9)))
}

// priceFactor scales demand by how far the price sits from suggested
// retail. At retail the factor is ~0.8; cheap slots sell faster, anything
// near double retail stops selling.
func priceFactor(ratio float64) float64 {
	f := 1.75 - 0.95*ratio
	if f < 0 {
		return 0
	}
	if f > 1.5 {
		return 1.5
	}
	return f
}

func dayFactor(day int) float64 {
	switch day % 7 {
	case 5, 6: // weekend: office traffic drops
		return 0.7
	case 4:
		return 1.15
	default:
		return 1.0
	}
}

func (s *State) resolveOvernightSales() {
	rng := demandRand(s.Seed, s.Day)
	soldUnits := 0
	revenue := 0.0
	for i := range s.Slots {
		sl := &s.Slots[i]
		if sl.Product == "" || sl.Qty <= 0 || sl.Price <= 0 {
			continue
		}
		p := productByName(sl.Product)
		if p == nil {
			continue
		}
		expected := p.BaseDemand * priceFactor(sl.Price/p.Retail) * dayFactor(s.Day)
		units := int(expected + rng.Float64()*2)
		if units > sl.Qty {
			units = sl.Qty
		}
		if units <= 0 {
			continue
		}
		sl.Qty -= units
		soldUnits += units
		revenue += float64(units) * sl.Price
		if sl.Qty == 0 {
			// Empty convention: clear the slot except its price setting.
			sl.Product = ""
			sl.Cost = 0
			sl.Price = 0
		}
	}
	if soldUnits > 0 {
		s.MachineCash += revenue
		s.AddEvent("SALES", revenue, fmt.Sprintf("overnight: sold %d units for %.2f", soldUnits, revenue))
	}
}

func (s *State) deliverDueOrders(newDay int) {
	for _, o := range s.Orders {
		if o.Delivered || o.DeliveryDay > newDay {
			continue
		}
		for _, it := range o.Items {
			size := SizeSmall
			if p := productByName(it.Product); p != nil {
				size = p.Size
			}
			s.addToStorage(it.Product, it.Qty, it.UnitCost, size)
		}
		o.Delivered = true
		s.AddEvent("DELIVERY", 0, fmt.Sprintf("order %s delivered to storage", o.ID))
		s.queueEmail("logistics@supplier.example", "owner@machine.example",
			"Delivery complete: "+o.ID,
			fmt.Sprintf("Your order %s arrived and was placed in storage on day %d.", o.ID, newDay),
			newDay)
	}
}

func (s *State) deliverEmails(newDay int) {
	kept := s.Outbox[:0]
	for _, em := range s.Outbox {
		if em.Day <= newDay {
			s.Inbox = append(s.Inbox, em)
			continue
		}
		kept = append(kept, em)
	}
	s.Outbox = kept
}

// Settle runs the overnight batch: sales, mandatory fee, deliveries,
// email, wages, then re-opens the day. Order is fixed; tests depend on
// fees being charged before wages.
func (s *State) Settle() {
	if s.Done {
		return
	}
	closing := s.Day
	newDay := s.Day + 1

	s.resolveOvernightSales()

	if !s.Led.MandatoryCharge(s.Policy.DailyFee, ledger.TxFee, "daily operating fee", closing) {
		s.AddEvent("FEE_UNPAID", -s.Policy.DailyFee,
			fmt.Sprintf("daily fee unpaid (%d consecutive)", s.Led.ConsecutiveUnpaid))
	} else {
		s.AddEvent("FEE", -s.Policy.DailyFee, "daily operating fee")
	}

	s.deliverDueOrders(newDay)
	s.deliverEmails(newDay)

	for _, note := range s.Workers.SettleWages(closing, s.Step, s.Led) {
		s.AddEvent("WAGE", 0, note)
	}

	s.Day = newDay
	s.Pause = false
	s.Score = s.NetWorth()
	s.Log = append(s.Log, protocol.PeriodEntry{Period: closing, Value: s.Score})

	if s.Led.ConsecutiveUnpaid >= s.Policy.BankruptcyThreshold {
		s.Done = true
		s.Reason = protocol.ReasonBankrupt
		s.AddEvent("BANKRUPT", 0, fmt.Sprintf("%d consecutive unpaid fees", s.Led.ConsecutiveUnpaid))
		return
	}
	if s.Day > s.Policy.MaxDays {
		s.Done = true
		s.Reason = protocol.ReasonHorizon
	}
}
