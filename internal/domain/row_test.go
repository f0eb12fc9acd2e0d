package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRowUnmarshalKeepsFieldOrder(t *testing.T) {
	input := `{"word":"chat","index":3,"meaning":"cat","level":2,"note":null}`

	var row Row
	if err := json.Unmarshal([]byte(input), &row); err != nil {
		t.Fatalf("Unmarshal() returned an unexpected error: %v", err)
	}

	want := NewRow(3, "word", "chat", "meaning", "cat", "level", "2", "note", "")
	if diff := cmp.Diff(want, row); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}

	out, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() returned an unexpected error: %v", err)
	}
	expected := `{"index":3,"word":"chat","meaning":"cat","level":"2","note":""}`
	if string(out) != expected {
		t.Errorf("Expected %s, but got %s", expected, out)
	}
}

func TestRowUnmarshalIndex(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{name: "missing index", input: `{"0":"a"}`, expected: -1},
		{name: "quoted index", input: `{"index":"7","0":"a"}`, expected: 7},
		{name: "float index", input: `{"index":4.0}`, expected: 4},
		{name: "garbage index", input: `{"index":"x"}`, wantErr: true},
		{name: "fractional index", input: `{"index":1.7}`, wantErr: true},
		{name: "huge index", input: `{"index":1e300}`, wantErr: true},
		{name: "NaN index", input: `{"index":"NaN"}`, wantErr: true},
		{name: "infinite index", input: `{"index":"-Inf"}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var row Row
			err := json.Unmarshal([]byte(tc.input), &row)
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() returned an unexpected error: %v", err)
			}
			if row.Index != tc.expected {
				t.Errorf("Expected index %d, but got %d", tc.expected, row.Index)
			}
		})
	}
}

func TestNormalizeIndexes(t *testing.T) {
	rows := []Row{
		{Index: -1, Fields: []Field{{"q", "a"}}},
		{Index: -1, Fields: []Field{{"q", "b"}}},
	}
	got, err := NormalizeIndexes(rows)
	if err != nil {
		t.Fatalf("NormalizeIndexes() returned an unexpected error: %v", err)
	}
	if got[0].Index != 0 || got[1].Index != 1 {
		t.Errorf("Expected positional indexes 0 and 1, got %d and %d", got[0].Index, got[1].Index)
	}
	if rows[0].Index != -1 {
		t.Error("Expected the input rows to be left untouched")
	}

	if _, err := NormalizeIndexes([]Row{{Index: 2}, {Index: 2}}); err == nil {
		t.Error("Expected an error for duplicate indexes")
	}
}

func TestPolicyPlayMode(t *testing.T) {
	for _, mode := range []string{"loop", "random"} {
		p, err := ParsePolicy(mode)
		if err != nil {
			t.Fatalf("ParsePolicy(%q) returned an unexpected error: %v", mode, err)
		}
		if p.PlayMode() != mode {
			t.Errorf("Expected play mode %q, got %q", mode, p.PlayMode())
		}
	}
	if _, err := ParsePolicy("shuffle"); err == nil {
		t.Error("Expected an error for an unknown play mode")
	}
}

func TestPreferencesValidate(t *testing.T) {
	if err := DefaultPreferences().Validate(); err != nil {
		t.Fatalf("Expected defaults to be valid, got %v", err)
	}
	p := DefaultPreferences()
	p.IntervalSeconds = 0
	if err := p.Validate(); err == nil {
		t.Error("Expected a zero interval to be rejected")
	}
	p = DefaultPreferences()
	p.Policy = "shuffle"
	if err := p.Validate(); err == nil {
		t.Error("Expected an unknown policy to be rejected")
	}
}
