// Package dedup fingerprints transactions so repeated imports of the same
// document are recognized.
package dedup

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/pfinance/internal/models"
)

// Hash returns the content hash over (date, amount, description, type).
// The description is trimmed, lowercased and whitespace-collapsed first, so
// spacing differences do not produce distinct hashes.
func Hash(date string, amount decimal.Decimal, description string, txType models.TxType) string {
	desc := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	key := fmt.Sprintf("%s-%s-%s-%s", date, amount.StringFixed(2), desc, txType)

	// 32-bit rolling hash (h*31 + c) over UTF-16 code units.
	var h int32
	for _, c := range utf16.Encode([]rune(key)) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

// HashTransaction hashes t by its canonical fields.
func HashTransaction(t models.Transaction) string {
	return Hash(t.DateISO(), t.Amount, t.Description, t.Type)
}

// Set is the set of hashes already persisted plus those seen in this run.
type Set struct {
	seen map[string]struct{}
}

// NewSet seeds a set with existing hashes.
func NewSet(existing []string) *Set {
	s := &Set{seen: make(map[string]struct{}, len(existing))}
	for _, h := range existing {
		s.seen[h] = struct{}{}
	}
	return s
}

// Add records h and reports whether it was new.
func (s *Set) Add(h string) bool {
	if _, ok := s.seen[h]; ok {
		return false
	}
	s.seen[h] = struct{}{}
	return true
}

// Contains reports whether h is known.
func (s *Set) Contains(h string) bool {
	_, ok := s.seen[h]
	return ok
}

// Split partitions txs into those with unseen hashes and the duplicate count,
// keeping the first occurrence of each hash. Hashes are filled in when empty.
func (s *Set) Split(txs []models.Transaction) ([]models.Transaction, int) {
	fresh := make([]models.Transaction, 0, len(txs))
	dups := 0
	for _, t := range txs {
		if t.Hash == "" {
			t.Hash = HashTransaction(t)
		}
		if !s.Add(t.Hash) {
			dups++
			continue
		}
		fresh = append(fresh, t)
	}
	return fresh, dups
}
