package table

import (
	"strconv"
	"strings"
	"time"
)

// Source is a read-only tabular accessor. Row 0 is the header row.
// Reads outside the table return the Empty value.
type Source interface {
	Rows() int
	Cell(row, col int) Value
}

// Kind discriminates the cell value union.
type Kind int

const (
	Empty Kind = iota
	String
	Number
	Bool
	Timestamp
)

// Value is one spreadsheet-like cell. Exactly one of the typed fields is
// meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	B    bool
	Time time.Time
}

func StringValue(s string) Value     { return Value{Kind: String, Str: s} }
func NumberValue(n float64) Value    { return Value{Kind: Number, Num: n} }
func BoolValue(b bool) Value         { return Value{Kind: Bool, B: b} }
func TimeValue(t time.Time) Value    { return Value{Kind: Timestamp, Time: t} }

// AsString renders the cell the way it would appear in a sheet.
func (v Value) AsString() string {
	switch v.Kind {
	case String:
		return v.Str
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case Bool:
		if v.B {
			return "true"
		}
		return "false"
	case Timestamp:
		return v.Time.Format(time.RFC3339)
	}
	return ""
}

// AsIntegerOr returns the cell as an integer. Non-integer numbers,
// non-numeric strings and empty cells yield def.
func (v Value) AsIntegerOr(def int) int {
	switch v.Kind {
	case Number:
		if v.Num != float64(int(v.Num)) {
			return def
		}
		return int(v.Num)
	case String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return def
		}
		return n
	}
	return def
}

// AsBool interprets booleans and the usual truthy spellings.
func (v Value) AsBool() bool {
	switch v.Kind {
	case Bool:
		return v.B
	case Number:
		return v.Num != 0
	case String:
		s := strings.ToLower(strings.TrimSpace(v.Str))
		return s == "true" || s == "yes" || s == "1" || s == "on"
	}
	return false
}

// AsDayTime returns the cell as an "HH:mm:ss" time-of-day string.
// Timestamp cells use their clock components; everything else is taken
// verbatim as a time string.
func (v Value) AsDayTime() string {
	if v.Kind == Timestamp {
		return v.Time.Format("15:04:05")
	}
	return v.AsString()
}

// IsEmpty reports whether the cell holds no value at all. A String cell
// holding "" also counts as empty.
func (v Value) IsEmpty() bool {
	return v.Kind == Empty || (v.Kind == String && v.Str == "")
}

// Memory is an in-memory Source, used by tests and by the settings
// override layer.
type Memory struct {
	Values [][]Value
}

func (m *Memory) Rows() int {
	return len(m.Values)
}

func (m *Memory) Cell(row, col int) Value {
	if row < 0 || row >= len(m.Values) {
		return Value{}
	}
	r := m.Values[row]
	if col < 0 || col >= len(r) {
		return Value{}
	}
	return r[col]
}
