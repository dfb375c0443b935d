package ingest

import (
	"errors"
	"fmt"

	"github.com/insightdelivered/pfinance/internal/models"
)

var (
	// ErrUnsupportedKind means the document is neither a PDF nor a spreadsheet.
	ErrUnsupportedKind = errors.New("unsupported document kind")
	// ErrDocumentTooSmall means a PDF is below the configured minimum size.
	ErrDocumentTooSmall = errors.New("document too small")
)

// FatalError aborts the ingestion of one document. Nothing was persisted.
type FatalError struct {
	Kind   models.SourceKind
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("ingestion failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("%s ingestion failed: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(kind models.SourceKind, reason string, err error) *FatalError {
	return &FatalError{Kind: kind, Reason: reason, Err: err}
}

// IsFatal reports whether err aborted a document.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
