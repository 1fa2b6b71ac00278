package gateway

import (
	"bytes"
	"encoding/json"
)

// Record is one result row. Column order from the statement's result
// metadata is preserved, both for Get lookups and for JSON encoding.
type Record struct {
	Columns []string
	Values  []any
}

// Get returns the value for a column, or nil if the record has no such column.
func (r Record) Get(column string) any {
	for i, col := range r.Columns {
		if col == column && i < len(r.Values) {
			return r.Values[i]
		}
	}
	return nil
}

// MarshalJSON encodes the record as a JSON object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val := []byte("null")
		if i < len(r.Values) {
			val, err = json.Marshal(r.Values[i])
			if err != nil {
				return nil, err
			}
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the normalized outcome of one statement execution: an ordered
// record set for row-returning statements, or an affected-row count.
type Result struct {
	Columns  []string
	Records  []Record
	RowCount int
	Affected int64
	IsRows   bool
}
