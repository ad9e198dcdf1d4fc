package ledger

import "testing"

func TestLedger_BalanceMatchesTransactionSum(t *testing.T) {
	l := New(500)

	ops := 0
	if !l.Charge(120, TxCost, "order", 1) {
		t.Fatalf("charge 120 from 500 should succeed")
	}
	ops++
	l.Credit(40, TxCollection, "cash pickup", 1)
	ops++
	if !l.MandatoryCharge(2, TxFee, "daily fee", 1) {
		t.Fatalf("fee 2 from 420 should succeed")
	}
	ops++
	if l.Charge(10000, TxCost, "too big", 2) {
		t.Fatalf("charge over balance should fail")
	}

	sum := 0.0
	for _, tx := range l.Transactions {
		sum += tx.Amount
	}
	if got, want := l.Balance, l.StartingBalance+sum; got != want {
		t.Fatalf("balance=%v want starting+sum=%v", got, want)
	}
	if len(l.Transactions) != ops {
		t.Fatalf("transactions=%d want %d (one per successful op)", len(l.Transactions), ops)
	}
}

func TestLedger_MandatoryChargeUnpaidCounter(t *testing.T) {
	l := New(5)

	if l.MandatoryCharge(10, TxFee, "fee", 1) {
		t.Fatalf("fee over balance should fail")
	}
	if l.Balance != 5 {
		t.Fatalf("failed mandatory charge must leave balance unchanged, got %v", l.Balance)
	}
	if l.ConsecutiveUnpaid != 1 {
		t.Fatalf("unpaid=%d want 1", l.ConsecutiveUnpaid)
	}
	if len(l.Transactions) != 0 {
		t.Fatalf("failed charge must not append a transaction")
	}

	if l.MandatoryCharge(10, TxFee, "fee", 2) {
		t.Fatalf("fee should still fail")
	}
	if l.ConsecutiveUnpaid != 2 {
		t.Fatalf("unpaid=%d want 2", l.ConsecutiveUnpaid)
	}

	l.Credit(100, TxEarning, "sale", 3)
	if !l.MandatoryCharge(10, TxFee, "fee", 3) {
		t.Fatalf("fee should succeed after credit")
	}
	if l.ConsecutiveUnpaid != 0 {
		t.Fatalf("successful mandatory charge must reset unpaid counter, got %d", l.ConsecutiveUnpaid)
	}
}

func TestLedger_NetWorth(t *testing.T) {
	l := New(450)
	if got := l.NetWorth(35, 60); got != 545 {
		t.Fatalf("net worth=%v want 545", got)
	}
}
