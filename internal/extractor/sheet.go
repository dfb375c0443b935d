package extractor

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// SheetFormat is the container format of a tabular statement.
type SheetFormat string

const (
	FormatXLSX SheetFormat = "xlsx"
	FormatXLS  SheetFormat = "xls"
	FormatCSV  SheetFormat = "csv"
)

var (
	xlsxMagic = []byte("PK\x03\x04")
	xlsMagic  = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// ErrEmptySheet means the workbook has no rows to parse.
var ErrEmptySheet = errors.New("spreadsheet has no rows")

// DetectSheetFormat inspects magic bytes; anything that is not a zip or OLE
// container is treated as delimited text.
func DetectSheetFormat(data []byte) SheetFormat {
	switch {
	case bytes.HasPrefix(data, xlsxMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, xlsMagic):
		return FormatXLS
	default:
		return FormatCSV
	}
}

// SheetExtractor yields the first sheet of a workbook as a row-major grid.
type SheetExtractor struct{}

// ExtractCells implements the tabular extraction contract.
func (SheetExtractor) ExtractCells(data []byte) ([][]string, error) {
	return ExtractCells(data)
}

// ExtractCells returns stringified cell values of the first sheet, header
// rows included. Dates in xlsx files come back as serial numbers.
func ExtractCells(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = fmt.Errorf("%w: spreadsheet reader crashed: %v", ErrUnreadable, r)
		}
	}()

	switch DetectSheetFormat(data) {
	case FormatXLSX:
		rows, err = readXLSX(data)
	case FormatXLS:
		rows, err = readXLS(data)
	default:
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: opening xlsx: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %v", ErrUnreadable, sheets[0], err)
	}
	return rows, nil
}

func readXLS(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: opening xls: %v", ErrUnreadable, err)
	}
	if wb.NumSheets() == 0 {
		return nil, ErrEmptySheet
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptySheet
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = strings.TrimSpace(row.Col(c))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading csv: %v", ErrUnreadable, err)
	}
	return rows, nil
}

// sniffDelimiter picks the most frequent of ; , and tab in the first lines.
// Italian exports default to semicolons since the comma is the decimal mark.
func sniffDelimiter(data []byte) rune {
	sample := string(data)
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	best, bestCount := ';', strings.Count(sample, ";")
	for _, d := range []rune{'\t', ','} {
		if n := strings.Count(sample, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
