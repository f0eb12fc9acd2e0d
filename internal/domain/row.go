package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// indexField is the reserved key carrying a row's identity in its JSON form.
const indexField = "index"

// Field is one named, displayed value of a row.
type Field struct {
	Name  string
	Value string
}

// Row represents a single unit of study material: an ordered list of
// fields plus an index that is stable for the lifetime of its deck.
type Row struct {
	Index  int
	Fields []Field
}

// NewRow builds a row from alternating name/value pairs.
func NewRow(index int, pairs ...string) Row {
	r := Row{Index: index}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Fields = append(r.Fields, Field{Name: pairs[i], Value: pairs[i+1]})
	}
	return r
}

// Value returns the value of the named field.
func (r Row) Value(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns the displayed values in field order.
func (r Row) Values() []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Value
	}
	return out
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	c := Row{Index: r.Index}
	if r.Fields != nil {
		c.Fields = append([]Field(nil), r.Fields...)
	}
	return c
}

// MarshalJSON writes the row as an object with "index" first followed by
// the fields in their original order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"index":`)
	buf.WriteString(strconv.Itoa(r.Index))
	for _, f := range r.Fields {
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a row object, keeping the key order of the input.
// A missing index is reported as -1 so callers can assign one.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}

	row := Row{Index: -1}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("row: field %q: %w", key, err)
		}
		if key == indexField {
			idx, err := parseIndex(raw)
			if err != nil {
				return err
			}
			row.Index = idx
			continue
		}
		row.Fields = append(row.Fields, Field{Name: key, Value: displayValue(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = row
	return nil
}

func parseIndex(raw json.RawMessage) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("row: invalid index %s", raw)
	}
	return int(f), nil
}

// displayValue renders any JSON value as the string shown to the user.
func displayValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// Collection is the stored form of one pool: {"data": [...]}.
type Collection struct {
	Data []Row `json:"data"`
}

// IndexOf returns the position of the row with the given index, or -1.
func IndexOf(rows []Row, index int) int {
	for i, r := range rows {
		if r.Index == index {
			return i
		}
	}
	return -1
}

// Without returns a copy of rows with the row at position i removed.
func Without(rows []Row, i int) []Row {
	out := make([]Row, 0, len(rows)-1)
	out = append(out, rows[:i]...)
	return append(out, rows[i+1:]...)
}

// NormalizeIndexes assigns positional indexes to rows that carry none and
// reports an error if two rows share an index.
func NormalizeIndexes(rows []Row) ([]Row, error) {
	out := make([]Row, len(rows))
	seen := make(map[int]bool, len(rows))
	for i, r := range rows {
		r = r.Clone()
		if r.Index < 0 {
			r.Index = i
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("duplicate row index %d", r.Index)
		}
		seen[r.Index] = true
		out[i] = r
	}
	return out, nil
}
