package extract

import (
	"regexp"
	"strings"
)

var (
	rePlateEN = regexp.MustCompile(`(?i)License Plate[:：]\s*([A-Za-z0-9-]+)`)
	rePlateZH = regexp.MustCompile(`車牌[:：]\s*([^\n\r]+)`)
	reRental  = regexp.MustCompile(`(?i)Rental company[:：]\s*([^\n\r]+)`)
	// Fleet names usually start with a Taiwanese city prefix.
	reCityPrefix = regexp.MustCompile(`(?:台北|臺北|新北|桃園|台中|臺中|台南|臺南|高雄|基隆|新竹|嘉義|宜蘭|花蓮)[^\s,，]*`)
)

// matchVehicle runs the label-matching tiers against one text body:
// explicit license plate labels first, then the rental company line.
func matchVehicle(text string) (string, bool) {
	if m := rePlateEN.FindStringSubmatch(text); m != nil {
		if v := strings.TrimSpace(m[1]); v != "" {
			return v, true
		}
	}
	if m := rePlateZH.FindStringSubmatch(text); m != nil {
		if v := NormalizeVehicle(m[1]); v != "" {
			return v, true
		}
	}
	if m := reRental.FindStringSubmatch(text); m != nil {
		if v := cleanRentalLine(m[1]); v != "" {
			return v, true
		}
	}
	return "", false
}

// cleanRentalLine reduces a "Rental company:" value to a vehicle identifier:
// first comma segment, fullwidth folded, with a known-city-prefix match
// preferred, else the last whitespace-delimited token, else the whole line.
func cleanRentalLine(line string) string {
	cleaned := NormalizeVehicle(line)
	if i := strings.Index(cleaned, ","); i >= 0 {
		cleaned = strings.TrimSpace(cleaned[:i])
	}
	if cleaned == "" {
		return ""
	}
	if m := reCityPrefix.FindString(cleaned); m != "" {
		return m
	}
	fields := strings.Fields(cleaned)
	if len(fields) > 1 {
		return fields[len(fields)-1]
	}
	return cleaned
}

// extractVehicle resolves the vehicle identifier from the plain body first,
// then from the markup stripped to text.
func extractVehicle(plain, markup string) (string, bool) {
	if v, ok := matchVehicle(plain); ok {
		return v, true
	}
	if markup != "" {
		if v, ok := matchVehicle(StripTags(markup)); ok {
			return v, true
		}
	}
	return "", false
}
