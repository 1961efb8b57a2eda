// Package artifact renders receipt message bodies to PDF files under a
// label-scoped folder tree.
package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var forbiddenSegment = regexp.MustCompile(`[\\:*?"<>|]`)

// Store creates or reuses one PDF per receipt. Filenames are deterministic,
// so re-running after a partial failure reuses files instead of duplicating
// them.
type Store struct {
	root   string
	logger *slog.Logger
}

func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}
}

// FolderFor returns the folder for a label, mirroring any hierarchical
// separators in the label name and creating missing segments.
func (s *Store) FolderFor(label string) (string, error) {
	dir := s.root
	for _, seg := range strings.Split(label, "/") {
		seg = strings.TrimSpace(forbiddenSegment.ReplaceAllString(seg, "_"))
		if seg == "" {
			continue
		}
		dir = filepath.Join(dir, seg)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact folder: %w", err)
	}
	return dir, nil
}

// Ensure renders body into fileName inside the label folder, or reuses an
// existing file of that name. Either way the file ends up world-readable;
// a failed permission change on reuse is logged and non-fatal.
func (s *Store) Ensure(label, fileName, body string) (path string, reused bool, err error) {
	dir, err := s.FolderFor(label)
	if err != nil {
		return "", false, err
	}
	path = filepath.Join(dir, fileName)

	if _, err := os.Stat(path); err == nil {
		if err := os.Chmod(path, 0o644); err != nil {
			s.logger.Warn("artifact.share.failed", "path", path, "err", err)
		}
		s.logger.Info("artifact.reuse", "path", path)
		return path, true, nil
	}

	if err := renderPDF(path, body); err != nil {
		return "", false, fmt.Errorf("render %s: %w", fileName, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return "", false, fmt.Errorf("set artifact permissions: %w", err)
	}
	return path, false, nil
}

// systemFont finds a Unicode-capable font for CJK receipt bodies.
func systemFont() string {
	candidates := []string{
		"assets/fonts/TaipeiSansTCBeta-Regular.ttf",
	}
	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates, "/Library/Fonts/Arial Unicode.ttf")
	case "linux":
		candidates = append(candidates,
			"/usr/share/fonts/truetype/droid/DroidSansFallbackFull.ttf",
			"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
		)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func renderPDF(path, body string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	if fontPath := systemFont(); fontPath != "" {
		pdf.AddUTF8Font("receipt", "", fontPath)
		pdf.SetFont("receipt", "", 11)
	} else {
		// Core font; non-Latin glyphs degrade but the record survives.
		pdf.SetFont("Helvetica", "", 11)
	}
	pdf.AddPage()
	pdf.MultiCell(0, 6, body, "", "L", false)
	return pdf.OutputFileAndClose(path)
}
