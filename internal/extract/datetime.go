package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chiayu-tsai/uber-receipts-sync/constants"
)

// Pre-compiled patterns for the date/time tiers.
var (
	// "Dec 5, 2024" / "December 5, 2024"
	reDateEN = regexp.MustCompile(`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+(\d{1,2}),\s*(\d{4})`)
	// "2024年12月5日"
	reDateZH = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
	// "8:15", "8:15 PM", "20:15"
	reTime = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?:\s*([AaPp])\.?[Mm]\.?)?`)
)

var monthNum = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// dateMatch is a resolved date plus the offset just past its source token,
// used to bound the follow-up time search.
type dateMatch struct {
	ymd string // YYYY-MM-DD
	end int
}

// matchDate finds the first date token in s, English month-name tier first,
// then the localized tier.
func matchDate(s string) (dateMatch, bool) {
	if loc := reDateEN.FindStringSubmatchIndex(s); loc != nil {
		mon := strings.ToLower(s[loc[2]:loc[3]])
		day, _ := strconv.Atoi(s[loc[4]:loc[5]])
		year, _ := strconv.Atoi(s[loc[6]:loc[7]])
		m, ok := monthNum[mon]
		if ok && day >= 1 && day <= 31 {
			return dateMatch{ymd: fmt.Sprintf("%04d-%02d-%02d", year, m, day), end: loc[1]}, true
		}
	}
	if loc := reDateZH.FindStringSubmatchIndex(s); loc != nil {
		year, _ := strconv.Atoi(s[loc[2]:loc[3]])
		mon, _ := strconv.Atoi(s[loc[4]:loc[5]])
		day, _ := strconv.Atoi(s[loc[6]:loc[7]])
		if mon >= 1 && mon <= 12 && day >= 1 && day <= 31 {
			return dateMatch{ymd: fmt.Sprintf("%04d-%02d-%02d", year, mon, day), end: loc[1]}, true
		}
	}
	return dateMatch{}, false
}

// matchTime finds the first time token in s and normalizes it to HH:mm,
// 24-hour. A trailing AM/PM marker converts a 12-hour source.
func matchTime(s string) (string, bool) {
	m := reTime.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if minute > 59 {
		return "", false
	}
	switch strings.ToLower(m[3]) {
	case "p":
		if hour > 12 {
			return "", false
		}
		if hour != 12 {
			hour += 12
		}
	case "a":
		if hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return "", false
		}
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// extractDateTime resolves ride date and time from the plain body, falling
// back to date-tagged markup fragments. The time token is searched in a
// bounded window after the date match first, then in the remainder.
func extractDateTime(plain, markup string) (date, clock string, ok bool) {
	if dm, found := matchDate(plain); found {
		rest := plain[dm.end:]
		window := rest
		if len(window) > constants.TimeSearchWindow {
			window = window[:constants.TimeSearchWindow]
		}
		if t, found := matchTime(window); found {
			return dm.ymd, t, true
		}
		if t, found := matchTime(rest); found {
			return dm.ymd, t, true
		}
		return "", "", false
	}

	// Markup fallback: first date-tagged fragment is the date string, the
	// second is the time string; re-run the same sub-parsers on them.
	frags := dateFragments(markup)
	if len(frags) >= 2 {
		dm, foundDate := matchDate(frags[0])
		t, foundTime := matchTime(frags[1])
		if foundDate && foundTime {
			return dm.ymd, t, true
		}
	}
	return "", "", false
}
