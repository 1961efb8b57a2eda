// Package extract reduces receipt e-mail bodies to structured ride records.
//
// Every field is resolved by an ordered chain of independent pure matchers
// with explicit fallback tiers (plain text first, markup second), so new
// vendor template variants can be added as further tiers without touching
// the existing ones.
package extract

import (
	"strings"

	"github.com/chiayu-tsai/uber-receipts-sync/constants"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/entity"
)

// Parse failure reasons, recorded verbatim on error rows.
const (
	ReasonMissingDateTime = "missing date/time"
	ReasonMissingFare     = "missing fare"
	ReasonMissingVehicle  = "missing vehicle"
)

// Skippable reports whether a message should be skipped before parsing:
// cancelled rides and charge-summary digests are not receipts. They are
// counted separately from parse failures and never occupy a dedup key.
func Skippable(subject, plain string) bool {
	haystack := strings.ToLower(subject + "\n" + plain)
	for _, p := range constants.CancellationPhrases {
		if strings.Contains(haystack, strings.ToLower(p)) {
			return true
		}
	}
	for _, p := range constants.SummaryPhrases {
		if strings.Contains(haystack, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Parse maps a message's plain-text and markup bodies to a ParseOutcome.
// Failure to resolve any field is terminal for the message; there is no
// partially-populated receipt.
func Parse(plain, markup string) entity.ParseOutcome {
	date, clock, ok := extractDateTime(plain, markup)
	if !ok {
		return entity.Failed(ReasonMissingDateTime)
	}

	fare, ok := extractFare(plain, markup)
	if !ok {
		return entity.Failed(ReasonMissingFare)
	}

	vehicle, ok := extractVehicle(plain, markup)
	if !ok {
		return entity.Failed(ReasonMissingVehicle)
	}

	return entity.OK(entity.ParsedReceipt{
		RideDate: date,
		RideTime: clock,
		Vehicle:  NormalizeVehicle(vehicle),
		Fare:     fare,
	})
}
