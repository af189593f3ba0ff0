// Package pipeline loads CSV datasets and turns them into training sets:
// load, process, split, then hand over to the trainer.
package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Table is a row-oriented dataset with ordered columns. Missing cells are nil.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Records returns the rows as column-keyed maps.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out
}

// MarshalJSON writes the table as an array of records whose keys follow the
// column order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, c := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(row[j])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// ParseRecords decodes a JSON array of records. Columns appear in the order
// their keys are first seen; a record missing a key gets nil in that column.
// A load response object ({"data": [...]}) is accepted as well.
func ParseRecords(data []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch tok {
	case json.Delim('['):
		return decodeRecords(dec)
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if key, _ := keyTok.(string); key == "data" {
				open, err := dec.Token()
				if err != nil {
					return nil, err
				}
				if open != json.Delim('[') {
					return nil, errors.New("data must be an array of records")
				}
				return decodeRecords(dec)
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
		return nil, errors.New("object has no data field")
	}
	return nil, errors.New("expected an array of records")
}

func decodeRecords(dec *json.Decoder) (*Table, error) {
	t := &Table{}
	index := make(map[string]int)
	var records []map[string]any

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if tok != json.Delim('{') {
			return nil, fmt.Errorf("record %d is not an object", len(records))
		}
		rec := make(map[string]any)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key := keyTok.(string)
			var value any
			if err := dec.Decode(&value); err != nil {
				return nil, err
			}
			if _, ok := index[key]; !ok {
				index[key] = len(t.Columns)
				t.Columns = append(t.Columns, key)
			}
			rec[key] = value
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	t.Rows = make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(t.Columns))
		for key, value := range rec {
			row[index[key]] = value
		}
		t.Rows[i] = row
	}
	return t, nil
}
