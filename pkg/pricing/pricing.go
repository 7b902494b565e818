// Package pricing derives checkout amounts from stored batch fees.
package pricing

import "fmt"

const bpsDenominator = 10000

// Tax returns the tax on fee at rateBps basis points, rounded half up, in minor units.
func Tax(fee, rateBps int64) int64 {
	if fee <= 0 || rateBps <= 0 {
		return 0
	}
	return (fee*rateBps + bpsDenominator/2) / bpsDenominator
}

// Total returns fee plus tax. Inputs are validated so a misconfigured rate cannot underprice.
func Total(fee, rateBps int64) (int64, error) {
	if fee < 0 {
		return 0, fmt.Errorf("negative fee %d", fee)
	}
	if rateBps < 0 || rateBps > bpsDenominator {
		return 0, fmt.Errorf("tax rate %d bps out of range", rateBps)
	}
	return fee + Tax(fee, rateBps), nil
}

// Split recovers the pre-tax fee and the tax from a total charged at rateBps.
func Split(total, rateBps int64) (fee, tax int64) {
	if total <= 0 || rateBps <= 0 {
		return total, 0
	}
	denom := bpsDenominator + rateBps
	fee = (total*bpsDenominator + denom/2) / denom
	return fee, total - fee
}

// Decimal renders minor units as a two-decimal string.
func Decimal(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

// Format renders minor units followed by the currency code.
func Format(amount int64, currency string) string {
	return Decimal(amount) + " " + currency
}
