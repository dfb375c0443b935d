package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/insightdelivered/pfinance/internal/models"
)

var (
	// ErrUnreadable means the bytes could not be opened as a PDF.
	ErrUnreadable = errors.New("document could not be read")
	// ErrNoText means the PDF opened but carries no usable text layer.
	ErrNoText = errors.New("no readable text in document")
)

// PDFExtractor reads positioned text runs with ledongthuc/pdf.
type PDFExtractor struct{}

// ExtractFragments returns one fragment slice per page, in page order.
func (PDFExtractor) ExtractFragments(data []byte) ([][]models.Fragment, error) {
	return ExtractFragments(data)
}

// ExtractFragments opens a PDF from memory and returns its word-level
// fragments. Scanned (image-only) documents yield ErrNoText.
func ExtractFragments(data []byte) (pages [][]models.Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: PDF library crashed: %v", ErrUnreadable, r)
		}
	}()

	r, openErr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if openErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, openErr)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", ErrUnreadable)
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		pages = append(pages, mergeGlyphs(content.Text))
	}

	if !isReadableText(Reconstruct(pages, DefaultColumnGap)) {
		return nil, ErrNoText
	}
	return pages, nil
}

// mergeGlyphs joins consecutive glyphs on the same baseline into word runs.
// Many generators emit one Text per character; the layout step needs words.
func mergeGlyphs(texts []pdf.Text) []models.Fragment {
	var out []models.Fragment
	var cur *models.Fragment
	var curEnd, curSize float64

	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			out = append(out, *cur)
		}
		cur = nil
	}

	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			flush()
			continue
		}
		if cur != nil {
			tol := curSize * 0.2
			if tol <= 0 {
				tol = 1.5
			}
			gap := t.X - curEnd
			if math.Round(t.Y) != math.Round(cur.Y) || gap > tol || gap < -tol {
				flush()
			}
		}
		if cur == nil {
			cur = &models.Fragment{Text: t.S, X: t.X, Y: t.Y}
		} else {
			cur.Text += t.S
		}
		curEnd = t.X + t.W
		curSize = t.FontSize
		cur.Width = curEnd - cur.X
	}
	flush()
	return out
}

// textQuality returns the share of characters that are plain letters, digits,
// whitespace or common statement punctuation. Identity-encoded fonts produce
// runs of symbols that fail this check.
func textQuality(lines []string) float64 {
	total := 0
	readable := 0
	for _, line := range lines {
		for _, r := range line {
			total++
			if (unicode.IsLetter(r) && r < 0x250) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
				strings.ContainsRune(".,-/:;()'\"€$%&@#!?+=*", r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords appear in virtually every Italian or English bank statement.
var commonWords = []string{
	"saldo", "conto", "data", "valuta", "movimenti", "importo", "descrizione",
	"addebit", "accredit", "pagamento", "bonifico", "estratto",
	"balance", "account", "date", "amount", "statement", "payment",
}

func containsCommonWords(lines []string) bool {
	combined := strings.ToLower(strings.Join(lines, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires a minimum amount of text, mostly readable
// characters, and at least one recognizable statement word.
func isReadableText(lines []string) bool {
	n := 0
	for _, l := range lines {
		n += len(strings.TrimSpace(l))
	}
	if n <= 20 {
		return false
	}
	if textQuality(lines) <= 0.6 {
		return false
	}
	return containsCommonWords(lines)
}
