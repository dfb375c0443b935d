package extractor

import (
	"math"
	"sort"
	"strings"

	"github.com/insightdelivered/pfinance/internal/models"
)

// DefaultColumnGap is the horizontal distance (PDF units) above which two
// neighbouring fragments are treated as separate columns.
const DefaultColumnGap = 50.0

// ColumnSeparator is appended after the normal single space when a column
// gap is detected. Parsers split columns on runs of 3+ spaces.
const ColumnSeparator = "   "

// Reconstruct turns positioned fragments into text lines, page by page.
// The same fragment set always produces the same output.
func Reconstruct(pages [][]models.Fragment, columnGap float64) []string {
	var lines []string
	for _, page := range pages {
		lines = append(lines, ReconstructPage(page, columnGap)...)
	}
	return lines
}

// ReconstructPage groups one page's fragments into lines.
func ReconstructPage(fragments []models.Fragment, columnGap float64) []string {
	if columnGap <= 0 {
		columnGap = DefaultColumnGap
	}

	// Group by rounded Y so glyph runs on the same baseline share a line
	rowMap := make(map[int][]models.Fragment)
	for _, f := range fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		yKey := int(math.Round(f.Y))
		rowMap[yKey] = append(rowMap[yKey], f)
	}

	// PDF Y grows upward, so top of page is the largest Y
	yKeys := make([]int, 0, len(rowMap))
	for y := range rowMap {
		yKeys = append(yKeys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

	var lines []string
	for _, y := range yKeys {
		items := rowMap[y]
		// Stable so fragments sharing an X keep extraction order
		sort.SliceStable(items, func(a, b int) bool {
			return items[a].X < items[b].X
		})

		var sb strings.Builder
		for j, item := range items {
			if j > 0 {
				sb.WriteString(" ")
				if gapBetween(items[j-1], item) > columnGap {
					sb.WriteString(ColumnSeparator)
				}
			}
			sb.WriteString(strings.TrimSpace(item.Text))
		}
		line := strings.TrimSpace(sb.String())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// gapBetween measures from the end of prev when its width is known,
// otherwise from its start.
func gapBetween(prev, next models.Fragment) float64 {
	return next.X - (prev.X + prev.Width)
}
