package orchestrator

// Flow identifies which of the three product flows a transaction runs.
type Flow int

const (
	FlowC2B Flow = iota // coin-to-bill: pay in coins, receive bills
	FlowB2C             // bill-to-coin: pay a bill, receive coins
	FlowB2B             // bill-to-bill: pay a bill, receive bills
)

func (f Flow) String() string {
	switch f {
	case FlowC2B:
		return "C2B"
	case FlowB2C:
		return "B2C"
	case FlowB2B:
		return "B2B"
	default:
		return "unknown"
	}
}

func feeTableFor(flow Flow) map[int]int {
	switch flow {
	case FlowC2B:
		return FeeTableC2B
	case FlowB2C:
		return FeeTableB2C
	case FlowB2B:
		return FeeTableB2B
	default:
		return nil
	}
}

// FeeFor looks up the fee for amount under flow's table; ok is false if
// amount isn't a listed denomination/bracket for that flow.
func FeeFor(flow Flow, amount int) (fee int, ok bool) {
	table := feeTableFor(flow)
	if table == nil {
		return 0, false
	}
	fee, ok = table[amount]
	return fee, ok
}

// RequiredAmount is the total the user must tender: selected_amount+fee
// for C2B (the fee rides along with the requested amount, collected in
// coins); fee alone for B2C/B2B (paid in coins, with bill-deduction
// fallback on shortfall).
func RequiredAmount(flow Flow, selectedAmount, fee int) int {
	if flow == FlowC2B {
		return selectedAmount + fee
	}
	return fee
}

// AmountToDispenseC2B implements spec §4.G's C2B row: the fee rides
// bundled with the requested amount, so whatever the user overpaid above
// required flows straight into the payout.
func AmountToDispenseC2B(selectedAmount, insertedCoin, required int) int {
	return selectedAmount + (insertedCoin - required)
}

// AmountToDispenseB2xCoinsCovered implements the B2C/B2B row where the
// fee was paid in coins and fully covered: excessCoins = insertedCoin -
// fee may be zero but is never negative here by construction.
func AmountToDispenseB2xCoinsCovered(selectedAmount, excessCoins int) int {
	return selectedAmount + excessCoins
}

// AmountToDispenseB2xCoinsShort implements the B2C/B2B row where coins
// fell short of the fee: the shortfall is deducted from the payout and
// whatever coins did arrive are credited back in.
func AmountToDispenseB2xCoinsShort(selectedAmount, fee, insertedCoin int) int {
	return selectedAmount - fee + insertedCoin
}

// AmountToDispenseB2xBillDeducted implements the B2C/B2B row where the
// user opts to deduct the fee from the bill outright instead of paying
// coins at all.
func AmountToDispenseB2xBillDeducted(selectedAmount, fee int) int {
	return selectedAmount - fee
}
