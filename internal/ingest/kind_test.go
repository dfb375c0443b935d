package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/pfinance/internal/models"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     models.SourceKind
		wantErr  bool
	}{
		{"pdf magic", "x.bin", []byte("%PDF-1.7\n..."), models.SourcePDF, false},
		{"xlsx magic", "x.bin", []byte("PK\x03\x04rest"), models.SourceSpreadsheet, false},
		{"xls magic", "x.bin", []byte{0xD0, 0xCF, 0x11, 0xE0, 0x00}, models.SourceSpreadsheet, false},
		{"pdf extension", "estratto.PDF", []byte{0x00, 0x01}, models.SourcePDF, false},
		{"csv extension", "movimenti.csv", []byte("a"), models.SourceSpreadsheet, false},
		{"delimited text", "upload", []byte("Data;Importo\n"), models.SourceSpreadsheet, false},
		{"binary junk", "upload", []byte{0xFF, 0xFE, 0x00}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectKind(tt.filename, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnsupportedKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]models.SourceKind{
		"pdf":   models.SourcePDF,
		" PDF ": models.SourcePDF,
		"xlsx":  models.SourceSpreadsheet,
		"csv":   models.SourceSpreadsheet,
		"sheet": models.SourceSpreadsheet,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("docx")
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestFatalError(t *testing.T) {
	err := fatal(models.SourcePDF, "unreadable document", ErrDocumentTooSmall)
	assert.Equal(t, "pdf ingestion failed: unreadable document: document too small", err.Error())
	assert.ErrorIs(t, err, ErrDocumentTooSmall)
	assert.True(t, IsFatal(err))
	assert.False(t, IsFatal(ErrDocumentTooSmall))
}
