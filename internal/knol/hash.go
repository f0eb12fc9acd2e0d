package knol

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/conorfennell/memodeck/internal/domain"
)

// Normalize renders a row as text after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each
// value before joining them, prefixed by the row index.
func Normalize(row domain.Row) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		p = strings.TrimSpace(p)
		return p
	}

	parts := make([]string, 0, len(row.Fields)+1)
	parts = append(parts, strconv.Itoa(row.Index))
	for _, f := range row.Fields {
		parts = append(parts, normalizePart(f.Name)+"="+normalizePart(f.Value))
	}

	// We join with a newline to ensure separation between fields,
	// preventing accidental joining of values.
	return strings.Join(parts, "\n")
}

// Hash normalizes every row of a deck and returns the SHA-256 hash of the
// result as a hex string.
func Hash(rows []domain.Row) string {
	h := sha256.New()
	for _, row := range rows {
		h.Write([]byte(Normalize(row)))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
