package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "Total NT$ 245.00", "Total $12.50", "Total 245"
	reFareTotal = regexp.MustCompile(`(?i)Total\s+(?:[A-Z]{0,3}\$?\s?)?([\d,]+(?:\.\d{1,2})?)`)
	// Loose retry: any number after "Total", possibly across markup noise.
	reFareLoose = regexp.MustCompile(`(?is)Total\b.{0,200}?([\d,]+\.\d{1,2})`)
	reNumber    = regexp.MustCompile(`([\d,]+(?:\.\d{1,2})?)`)
)

// parseAmount converts a matched number token (thousands separators allowed)
// to a non-negative amount rounded to 2 decimals.
func parseAmount(tok string) (float64, bool) {
	tok = strings.ReplaceAll(strings.TrimSpace(tok), ",", "")
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return math.Round(v*100) / 100, true
}

// extractFare resolves the total fare: strict "Total <amount>" pattern over
// the plain body, then a total-tagged markup element, then a looser retry.
func extractFare(plain, markup string) (float64, bool) {
	if m := reFareTotal.FindStringSubmatch(plain); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			return v, true
		}
	}
	if frag := totalFragment(markup); frag != "" {
		if m := reNumber.FindStringSubmatch(frag); m != nil {
			if v, ok := parseAmount(m[1]); ok {
				return v, true
			}
		}
	}
	if m := reFareLoose.FindStringSubmatch(plain); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			return v, true
		}
	}
	return 0, false
}
