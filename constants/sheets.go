package constants

// ResultHeaders is the exact header tuple of a label's results sheet.
// Column order: ride date, ride time, vehicle, fare, artifact path.
var ResultHeaders = []string{"日期", "時間", "車牌", "費用", "PDF 連結網址"}

// ErrorHeaders is the exact header tuple of a label's errors sheet.
// Column order: message timestamp, subject, reason, message ID, body snippet.
var ErrorHeaders = []string{"郵件時間", "主旨", "原因", "郵件 ID", "內文片段"}

// ErrorSheetSuffix is appended to a label's sanitized sheet name for the
// parallel errors sheet.
const ErrorSheetSuffix = "_errors"

// FallbackSheetName is used when a label sanitizes to the empty string.
const FallbackSheetName = "Receipts"

// MaxSheetNameLen is the XLSX worksheet name limit.
const MaxSheetNameLen = 31
