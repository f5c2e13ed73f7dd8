package domain

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits the store keeps for
// balances, limits and transaction amounts.
const AmountScale = 5

// Money is rendered as JSON numbers everywhere: HTTP bodies, outbox events
// and inbox payloads.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ValidateAmountScale rejects amounts carrying more fractional digits than
// the store can persist without rounding.
func ValidateAmountScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return Validationf("amount supports at most %d decimal places", AmountScale)
	}
	return nil
}
