package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/insightdelivered/pfinance/internal/extractor"
	"github.com/insightdelivered/pfinance/internal/models"
)

var pdfMagic = []byte("%PDF")

// DetectKind decides the document kind from magic bytes, then from the file
// extension. Plain UTF-8 text is taken for a delimited spreadsheet export.
func DetectKind(filename string, data []byte) (models.SourceKind, error) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	switch {
	case bytes.Contains(head, pdfMagic):
		return models.SourcePDF, nil
	case extractor.DetectSheetFormat(data) != extractor.FormatCSV:
		return models.SourceSpreadsheet, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.SourcePDF, nil
	case ".csv", ".xlsx", ".xls", ".txt":
		return models.SourceSpreadsheet, nil
	}

	if len(head) > 0 && utf8.Valid(head) && bytes.ContainsAny(head, ";,\t") {
		return models.SourceSpreadsheet, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, filename)
}

// ParseKind reads a user-supplied kind name.
func ParseKind(s string) (models.SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return models.SourcePDF, nil
	case "spreadsheet", "sheet", "xlsx", "xls", "csv":
		return models.SourceSpreadsheet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
}
