package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Dir reads tables from a directory of CSV files, one file per table.
type Dir struct {
	path string
}

func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Open loads the named table. A missing file is reported as an error so
// callers can distinguish absent required tables (fatal) from merely
// empty ones.
func (d *Dir) Open(name string) (Source, error) {
	f, err := os.Open(filepath.Join(d.path, name+".csv"))
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}

	values := make([][]Value, len(records))
	for i, record := range records {
		row := make([]Value, len(record))
		for j, cell := range record {
			row[j] = sniffValue(cell)
		}
		values[i] = row
	}
	return &Memory{Values: values}, nil
}

// sniffValue types a raw CSV cell: bool literals, numbers and RFC 3339
// timestamps are promoted, everything else stays a string.
func sniffValue(s string) Value {
	if s == "" {
		return Value{}
	}
	switch s {
	case "true", "TRUE", "True":
		return BoolValue(true)
	case "false", "FALSE", "False":
		return BoolValue(false)
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return NumberValue(n)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return TimeValue(t)
	}
	return StringValue(s)
}
