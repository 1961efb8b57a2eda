package constants

// CancellationPhrases mark a message as a cancelled ride. Matching messages
// are skipped before parsing and never occupy a dedup key or error row.
var CancellationPhrases = []string{
	"canceled",
	"cancelled",
	"已取消",
	"cancellation fee",
	"取消費",
}

// SummaryPhrases mark periodic charge-summary digests, which are not ride
// receipts. They share the cancellation skip path.
var SummaryPhrases = []string{
	"charge summary",
	"monthly summary",
	"乘車摘要",
}
