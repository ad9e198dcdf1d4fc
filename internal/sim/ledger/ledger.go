package ledger

import (
	"fmt"
	"time"
)

// Transaction types.
const (
	TxFee        = "fee"
	TxPayment    = "payment"
	TxCollection = "collection"
	TxCost       = "cost"
	TxEarning    = "earning"
	TxWage       = "wage"
)

// Transaction is immutable once appended. Every balance mutation pairs
// with exactly one transaction whose signed amount matches the mutation.
type Transaction struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"` // positive credit, negative debit
	Description string    `json:"description"`
	Period      int       `json:"period"`
	Timestamp   time.Time `json:"timestamp"`
}

type Ledger struct {
	StartingBalance   float64       `json:"starting_balance"`
	Balance           float64       `json:"balance"`
	Transactions      []Transaction `json:"transactions"`
	ConsecutiveUnpaid int           `json:"consecutive_unpaid"`

	TxSeq int `json:"tx_seq"`
}

func New(starting float64) *Ledger {
	return &Ledger{StartingBalance: starting, Balance: starting}
}

func (l *Ledger) append(typ string, amount float64, desc string, period int) {
	l.TxSeq++
	l.Transactions = append(l.Transactions, Transaction{
		ID:          fmt.Sprintf("T%d", l.TxSeq),
		Type:        typ,
		Amount:      amount,
		Description: desc,
		Period:      period,
		Timestamp:   time.Now().UTC(),
	})
}

// Charge debits amount. Returns false without touching state when the
// balance cannot cover it.
func (l *Ledger) Charge(amount float64, typ, desc string, period int) bool {
	if amount < 0 {
		return false
	}
	if l.Balance < amount {
		return false
	}
	l.Balance -= amount
	l.append(typ, -amount, desc, period)
	return true
}

// MandatoryCharge is Charge for fees that must be paid every period.
// Failure increments ConsecutiveUnpaid; success resets it to zero.
func (l *Ledger) MandatoryCharge(amount float64, typ, desc string, period int) bool {
	if l.Balance < amount {
		l.ConsecutiveUnpaid++
		return false
	}
	l.Balance -= amount
	l.append(typ, -amount, desc, period)
	l.ConsecutiveUnpaid = 0
	return true
}

// Credit always succeeds.
func (l *Ledger) Credit(amount float64, typ, desc string, period int) {
	if amount < 0 {
		amount = 0
	}
	l.Balance += amount
	l.append(typ, amount, desc, period)
}

// NetWorth is the scoring basis: liquid balance plus uncollected cash
// plus inventory valued at cost.
func (l *Ledger) NetWorth(uncollectedCash, inventoryAtCost float64) float64 {
	return l.Balance + uncollectedCash + inventoryAtCost
}
