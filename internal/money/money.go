package money

import (
	"fmt"
	"strings"
)

// Centavos is a BRL amount in integer minor units. Plan prices and
// commissions are compared for exact equality, so amounts are never
// held as binary floating point.
type Centavos int64

// ParseReal converts a decimal string like "19.90", "19.9" or "50"
// into centavos. Anything that is not a plain non-negative decimal
// with at most two fraction digits is rejected.
func ParseReal(s string) (Centavos, error) {
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" || !isDigits(intPart) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if hasFrac && (fracPart == "" || len(fracPart) > 2 || !isDigits(fracPart)) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	var total int64
	for _, r := range intPart {
		total = total*10 + int64(r-'0')
		if total > 1<<40 {
			return 0, fmt.Errorf("amount %q out of range", s)
		}
	}
	total *= 100

	if hasFrac {
		frac := int64(0)
		for _, r := range fracPart {
			frac = frac*10 + int64(r-'0')
		}
		if len(fracPart) == 1 {
			frac *= 10
		}
		total += frac
	}
	return Centavos(total), nil
}

// Reais returns the amount as a float for gateway payloads that
// expect a JSON number in whole reais.
func (c Centavos) Reais() float64 {
	return float64(c) / 100
}

func (c Centavos) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
