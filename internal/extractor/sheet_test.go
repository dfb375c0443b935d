package extractor

import (
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDetectSheetFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, DetectSheetFormat([]byte("PK\x03\x04rest")))
	assert.Equal(t, FormatXLS, DetectSheetFormat([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1}))
	assert.Equal(t, FormatCSV, DetectSheetFormat([]byte("Data;Importo\n")))
}

func TestExtractCells_CSVSemicolon(t *testing.T) {
	data := []byte("\xEF\xBB\xBFData contabile;Data valuta;Addebiti;Accrediti;Descrizione\n" +
		"13/09/2025;13/09/2025;15,24;;PAGAMENTO POS\n")

	rows, err := ExtractCells(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Data contabile", rows[0][0])
	assert.Equal(t, "15,24", rows[1][2])
	assert.Equal(t, "", rows[1][3])
}

func TestExtractCells_CSVComma(t *testing.T) {
	rows, err := ExtractCells([]byte("Date,Description,Amount\n2025-09-13,Coffee,-2.50\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2025-09-13", "Coffee", "-2.50"}, rows[1])
}

func TestExtractCells_Empty(t *testing.T) {
	_, err := ExtractCells([]byte(""))
	assert.True(t, errors.Is(err, ErrEmptySheet))
}

func TestExtractCells_XLSXRawValues(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Data contabile", "Data valuta", "Addebiti", "Accrediti", "Descrizione"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{45913, 45913, 15.24, "", "PAGAMENTO POS"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := ExtractCells(buf.Bytes())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, "Data contabile", rows[0][0])
	assert.Equal(t, "45913", rows[1][0])
	assert.Equal(t, "15.24", rows[1][2])
	assert.Equal(t, "PAGAMENTO POS", rows[1][4])
}

func TestExtractCells_CorruptXLSX(t *testing.T) {
	_, err := ExtractCells([]byte("PK\x03\x04not really a zip"))
	assert.True(t, errors.Is(err, ErrUnreadable))
}

func TestExtractFragments_Garbage(t *testing.T) {
	_, err := ExtractFragments([]byte("this is not a pdf at all"))
	assert.True(t, errors.Is(err, ErrUnreadable))
}

func TestMergeGlyphs(t *testing.T) {
	glyphs := []pdf.Text{
		{S: "P", X: 10, Y: 500, W: 6, FontSize: 10},
		{S: "O", X: 16, Y: 500, W: 6, FontSize: 10},
		{S: "S", X: 22, Y: 500, W: 6, FontSize: 10},
		{S: " ", X: 28, Y: 500, W: 3, FontSize: 10},
		{S: "15,24", X: 200, Y: 500, W: 25, FontSize: 10},
		{S: "X", X: 10, Y: 480, W: 6, FontSize: 10},
	}

	got := mergeGlyphs(glyphs)
	require.Len(t, got, 3)
	assert.Equal(t, "POS", got[0].Text)
	assert.InDelta(t, 18.0, got[0].Width, 0.001)
	assert.Equal(t, "15,24", got[1].Text)
	assert.Equal(t, "X", got[2].Text)
}

func TestIsReadableText(t *testing.T) {
	assert.True(t, isReadableText([]string{"Estratto conto", "Saldo contabile 1.234,56"}))
	assert.False(t, isReadableText([]string{"short"}))
	assert.False(t, isReadableText([]string{"\x01\x02\x03\x04\x05\x06\x07\x08\x0e\x0f\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a saldo"}))
	assert.False(t, isReadableText([]string{"lorem ipsum dolor sit amet consectetur"}))
}
