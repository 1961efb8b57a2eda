// Package mailbox abstracts the mail search service the sync job scans.
// The orchestrator depends only on these types, never on a concrete
// provider binding.
package mailbox

import (
	"context"
	"time"
)

// Message is the decoded content of one mail message.
type Message struct {
	ID        string
	Subject   string
	Received  time.Time
	PlainBody string
	HTMLBody  string
}

// Thread is one conversation thread with its messages in returned order.
type Thread struct {
	ID       string
	Messages []Message
}

// Source lists a label's threads with stable pagination. Thread order is
// assumed stable across calls for a given label, which is what makes an
// integer offset a valid resume point.
type Source interface {
	// ResolveLabel verifies the label exists before any state is touched.
	// A missing label is a fatal configuration failure.
	ResolveLabel(ctx context.Context, name string) error
	// Page returns up to size threads starting at offset. An empty page
	// means the label is exhausted.
	Page(ctx context.Context, label string, offset, size int) ([]Thread, error)
}
