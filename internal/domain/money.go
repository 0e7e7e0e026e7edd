package domain

import "github.com/shopspring/decimal"

// AmountScale — количество знаков после запятой для денежных сумм.
const AmountScale = 2

// validAmount проверяет неотрицательность и точность суммы.
func amountViolations(amount decimal.Decimal) []error {
	var errs []error
	if amount.IsNegative() {
		errs = append(errs, ErrItemAmountInvalid)
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		errs = append(errs, ErrItemAmountPrecision)
	}
	return errs
}

// lineTotal считает unit_amount × quantity.
func lineTotal(unitAmount decimal.Decimal, qty int32) decimal.Decimal {
	return unitAmount.Mul(decimal.NewFromInt32(qty))
}
