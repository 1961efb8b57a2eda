package extract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"github.com/chiayu-tsai/uber-receipts-sync/constants"
)

var (
	anySpaces     = regexp.MustCompile(`\s+`)
	forbiddenFile = regexp.MustCompile(`[\\/:*?"<>|]`)
)

// NormalizeVehicle folds fullwidth characters to their ASCII forms, folds
// ideographic separators, collapses whitespace and strips trailing
// punctuation. It is idempotent: applying it twice equals applying it once.
func NormalizeVehicle(s string) string {
	s = width.Fold.String(s)
	s = strings.NewReplacer("、", ",", "。", ".").Replace(s)
	s = anySpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ",.;:")
	return strings.TrimSpace(s)
}

// BuildUniqueKey derives the deduplication identity of a receipt. Two
// receipts with the same key are the same ride.
func BuildUniqueKey(date, clock, vehicle string, fare float64) string {
	return strings.Join([]string{
		strings.TrimSpace(date),
		strings.TrimSpace(clock),
		NormalizeVehicle(vehicle),
		fmt.Sprintf("%.2f", fare),
	}, "|")
}

// ArtifactFileName derives the deterministic PDF filename for a receipt.
// Re-deriving it for an already-stored record reproduces the same name,
// which is what makes artifact creation idempotent.
func ArtifactFileName(date, clock, vehicle string, fare float64) string {
	name := fmt.Sprintf("Uber_%s_%s_%s_%.2f.pdf",
		date,
		strings.ReplaceAll(clock, ":", "-"),
		strings.ReplaceAll(NormalizeVehicle(vehicle), " ", ""),
		fare,
	)
	name = forbiddenFile.ReplaceAllString(name, "_")
	// The cap counts runes so a CJK vehicle name is never cut mid-character.
	if r := []rune(name); len(r) > constants.FileNameMaxLen {
		name = string(r[:constants.FileNameMaxLen-len(".pdf")]) + ".pdf"
	}
	return name
}
