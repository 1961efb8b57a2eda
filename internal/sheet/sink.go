// Package sheet maintains the per-label results and errors tables of the
// receipts workbook.
package sheet

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/chiayu-tsai/uber-receipts-sync/constants"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/entity"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/extract"
)

// Worksheet-illegal characters plus filesystem ones, per sanitization rules.
var illegalSheetChars = regexp.MustCompile(`[\\/:*?\[\]"<>|]`)

// SanitizeSheetName derives a worksheet name from a label: illegal characters
// replaced, length capped in characters, fixed fallback when nothing
// survives. The cap counts runes, not bytes, so CJK labels are never cut
// mid-character.
func SanitizeSheetName(label string) string {
	name := illegalSheetChars.ReplaceAllString(strings.TrimSpace(label), "_")
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > constants.MaxSheetNameLen {
		name = string(r[:constants.MaxSheetNameLen])
	}
	if strings.TrimSpace(strings.Trim(name, "_")) == "" {
		return constants.FallbackSheetName
	}
	return name
}

// ErrorSheetName is the parallel errors sheet for a label.
func ErrorSheetName(label string) string {
	base := SanitizeSheetName(label)
	if r := []rune(base); len(r)+len(constants.ErrorSheetSuffix) > constants.MaxSheetNameLen {
		base = string(r[:constants.MaxSheetNameLen-len(constants.ErrorSheetSuffix)])
	}
	return base + constants.ErrorSheetSuffix
}

// Sink buffers result and error rows for one label and flushes them in
// batches to the workbook. Flush must be called before every suspension
// point; rows still buffered at a crash are lost by design (the checkpoint
// is only advanced after a flush).
type Sink struct {
	path   string
	f      *excelize.File
	logger *slog.Logger

	resultSheet string
	errorSheet  string
	batchSize   int

	resultBuf []entity.ResultRow
	errorBuf  []entity.ErrorRow

	nextResultRow int // 1-based row index of the next empty results row
	nextErrorRow  int

	errorIDs map[string]struct{} // message IDs already recorded, across runs
}

// Open loads (or creates) the workbook and prepares both sheets for the
// label: exact headers, column formats, frozen header row.
func Open(path, label string, batchSize int, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = constants.RowBatchSize
	}

	var f *excelize.File
	created := false
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
	} else {
		f = excelize.NewFile()
		created = true
	}

	s := &Sink{
		path:        path,
		f:           f,
		logger:      logger,
		resultSheet: SanitizeSheetName(label),
		errorSheet:  ErrorSheetName(label),
		batchSize:   batchSize,
		errorIDs:    make(map[string]struct{}),
	}

	if err := s.ensureSheet(s.resultSheet, constants.ResultHeaders); err != nil {
		return nil, err
	}
	if err := s.ensureSheet(s.errorSheet, constants.ErrorHeaders); err != nil {
		return nil, err
	}
	if created && s.resultSheet != "Sheet1" && s.errorSheet != "Sheet1" {
		// Drop the placeholder sheet excelize puts in new workbooks.
		if err := f.DeleteSheet("Sheet1"); err != nil {
			logger.Warn("sheet.cleanup.failed", "err", err)
		}
	}
	s.applyFormats()

	s.nextResultRow = s.usedRows(s.resultSheet) + 1
	s.nextErrorRow = s.usedRows(s.errorSheet) + 1
	return s, nil
}

// ResultSheet returns the sanitized results sheet name.
func (s *Sink) ResultSheet() string { return s.resultSheet }

// ErrorSheet returns the errors sheet name.
func (s *Sink) ErrorSheet() string { return s.errorSheet }

func (s *Sink) ensureSheet(name string, headers []string) error {
	if idx, _ := s.f.GetSheetIndex(name); idx == -1 {
		if _, err := s.f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
	}

	rows, err := s.f.GetRows(name)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", name, err)
	}
	ok := len(rows) > 0 && len(rows[0]) >= len(headers)
	if ok {
		for i, h := range headers {
			if strings.TrimSpace(rows[0][i]) != h {
				ok = false
				break
			}
		}
	}
	if !ok {
		if err := s.f.SetSheetRow(name, "A1", &headers); err != nil {
			return fmt.Errorf("write header of %q: %w", name, err)
		}
	}

	// Freeze the header row.
	if err := s.f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		s.logger.Warn("sheet.freeze.failed", "sheet", name, "err", err)
	}
	return nil
}

// applyFormats forces text format on text columns (plates and dates must not
// be auto-coerced) and a 2-decimal numeric format on the fare column.
// Formatting failures are non-fatal.
func (s *Sink) applyFormats() {
	textStyle, err := s.f.NewStyle(&excelize.Style{NumFmt: 49}) // @ (text)
	if err == nil {
		for _, cols := range []string{"A:C", "E:E"} {
			if err := s.f.SetColStyle(s.resultSheet, cols, textStyle); err != nil {
				s.logger.Warn("sheet.format.failed", "sheet", s.resultSheet, "cols", cols, "err", err)
			}
		}
		if err := s.f.SetColStyle(s.errorSheet, "A:E", textStyle); err != nil {
			s.logger.Warn("sheet.format.failed", "sheet", s.errorSheet, "cols", "A:E", "err", err)
		}
	}
	fareStyle, err := s.f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err == nil {
		if err := s.f.SetColStyle(s.resultSheet, "D:D", fareStyle); err != nil {
			s.logger.Warn("sheet.format.failed", "sheet", s.resultSheet, "cols", "D:D", "err", err)
		}
	}

	// Readability only; failure is fine.
	_ = s.f.SetColWidth(s.resultSheet, "A", "C", 14)
	_ = s.f.SetColWidth(s.resultSheet, "E", "E", 60)
	_ = s.f.SetColWidth(s.errorSheet, "B", "B", 40)
	_ = s.f.SetColWidth(s.errorSheet, "E", "E", 60)
}

func (s *Sink) usedRows(name string) int {
	rows, err := s.f.GetRows(name)
	if err != nil {
		return 1
	}
	n := len(rows)
	if n < 1 {
		n = 1
	}
	return n
}

// LoadExisting reconstructs the unique-key set and the recorded error
// message IDs from prior rows. This is how cross-run deduplication works
// without a separate index.
func (s *Sink) LoadExisting() (map[string]struct{}, map[string]struct{}, error) {
	keys := make(map[string]struct{})

	rows, err := s.f.GetRows(s.resultSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read results: %w", err)
	}
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		fare, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			continue
		}
		keys[extract.BuildUniqueKey(row[0], row[1], row[2], fare)] = struct{}{}
	}

	errRows, err := s.f.GetRows(s.errorSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read errors: %w", err)
	}
	for i, row := range errRows {
		if i == 0 || len(row) < 4 {
			continue
		}
		if id := strings.TrimSpace(row[3]); id != "" {
			s.errorIDs[id] = struct{}{}
		}
	}

	ids := make(map[string]struct{}, len(s.errorIDs))
	for id := range s.errorIDs {
		ids[id] = struct{}{}
	}
	return keys, ids, nil
}

// AppendResult buffers one result row, flushing when the batch fills.
func (s *Sink) AppendResult(row entity.ResultRow) error {
	s.resultBuf = append(s.resultBuf, row)
	if len(s.resultBuf)+len(s.errorBuf) >= s.batchSize {
		return s.Flush()
	}
	return nil
}

// AppendError buffers one error row unless the message was already recorded.
// Returns true if the row was accepted.
func (s *Sink) AppendError(row entity.ErrorRow) (bool, error) {
	if _, seen := s.errorIDs[row.MessageID]; seen {
		return false, nil
	}
	s.errorIDs[row.MessageID] = struct{}{}
	if r := []rune(row.Snippet); len(r) > constants.SnippetMaxLen {
		row.Snippet = string(r[:constants.SnippetMaxLen])
	}
	s.errorBuf = append(s.errorBuf, row)
	if len(s.resultBuf)+len(s.errorBuf) >= s.batchSize {
		return true, s.Flush()
	}
	return true, nil
}

// Flush writes all buffered rows and saves the workbook.
func (s *Sink) Flush() error {
	for _, row := range s.resultBuf {
		cell := fmt.Sprintf("A%d", s.nextResultRow)
		values := []any{row.RideDate, row.RideTime, row.Vehicle, row.Fare, row.ArtifactPath}
		if err := s.f.SetSheetRow(s.resultSheet, cell, &values); err != nil {
			return fmt.Errorf("append result row: %w", err)
		}
		s.nextResultRow++
	}
	for _, row := range s.errorBuf {
		cell := fmt.Sprintf("A%d", s.nextErrorRow)
		values := []any{
			row.ReceivedAt.Format(time.RFC3339),
			row.Subject,
			row.Reason,
			row.MessageID,
			row.Snippet,
		}
		if err := s.f.SetSheetRow(s.errorSheet, cell, &values); err != nil {
			return fmt.Errorf("append error row: %w", err)
		}
		s.nextErrorRow++
	}

	flushed := len(s.resultBuf) + len(s.errorBuf)
	s.resultBuf = s.resultBuf[:0]
	s.errorBuf = s.errorBuf[:0]

	if err := s.f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	if flushed > 0 {
		s.logger.Info("sheet.flush", "rows", flushed, "workbook", s.path)
	}
	return nil
}

// Close flushes any remaining rows and releases the workbook.
func (s *Sink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.f.Close()
}
