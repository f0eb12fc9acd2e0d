package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/conorfennell/memodeck/internal/domain"
)

// ParseExport reads a row export, either the {"data": [...]} object the
// remote parser returns or a bare array of rows. Rows without an index
// are numbered by position.
func ParseExport(r io.Reader) ([]domain.Row, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeRows(raw)
}

// DecodeRows decodes an export held in memory.
func DecodeRows(raw []byte) ([]domain.Row, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty row export")
	}

	var rows []domain.Row
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode rows: %w", err)
		}
	} else {
		var c struct {
			Data *[]domain.Row `json:"data"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode rows: %w", err)
		}
		if c.Data == nil {
			return nil, fmt.Errorf("row export has no data field")
		}
		rows = *c.Data
	}
	return domain.NormalizeIndexes(rows)
}
