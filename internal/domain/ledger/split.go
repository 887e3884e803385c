package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FeePercent is the skim taken from every stake at session start.
const FeePercent = 1

// Split divides amount into the 1% fee and the remainder. The fee is
// floored; any rounding excess stays with the remainder.
func Split(amount uint64) (fee, remainder uint64) {
	fee = amount / 100 * FeePercent
	fee += amount % 100 * FeePercent / 100
	return fee, amount - fee
}

// Payout returns the amount returned or forfeited for a stake.
func Payout(stake uint64) uint64 {
	_, remainder := Split(stake)
	return remainder
}

// ToTokens formats base units as a decimal token amount.
func ToTokens(units uint64) string {
	whole := units / BaseUnitsPerToken
	frac := units % BaseUnitsPerToken
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	s := fmt.Sprintf("%d.%09d", whole, frac)
	return strings.TrimRight(s, "0")
}

// ParseTokens converts a decimal token amount to base units. Digits past
// the ninth decimal place are truncated.
func ParseTokens(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	wholePart, fracPart, _ := strings.Cut(s, ".")
	if wholePart == "" {
		wholePart = "0"
	}
	whole, err := strconv.ParseUint(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if len(fracPart) > 9 {
		fracPart = fracPart[:9]
	}
	var frac uint64
	if fracPart != "" {
		frac, err = strconv.ParseUint(fracPart+strings.Repeat("0", 9-len(fracPart)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", s, err)
		}
	}
	if whole > (math.MaxUint64-frac)/BaseUnitsPerToken {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	return whole*BaseUnitsPerToken + frac, nil
}
