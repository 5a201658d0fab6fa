// Package dataset encodes the published solar dataset: a JSON array wrapped
// in a JavaScript variable assignment, e.g.
//
//	var solarData = [
//	  {
//	    "Latitude": "37.5665",
//	    ...
//	  }
//	]
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// DefaultVarName is the variable the front-end reads.
const DefaultVarName = "solarData"

// Prefix returns the text written before the JSON array.
func Prefix(varName string) string {
	if varName == "" {
		varName = DefaultVarName
	}
	return "var " + varName + " = "
}

// Field is one key/value pair of a Record. Value holds raw JSON.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Record is a JSON object whose field order is preserved in both directions.
type Record []Field

// Get returns the value of key. String values are unquoted; other JSON
// values are returned as their raw text.
func (r Record) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key != key {
			continue
		}
		var s string
		if err := json.Unmarshal(f.Value, &s); err == nil {
			return s, true
		}
		return string(f.Value), true
	}
	return "", false
}

// MarshalJSON writes the fields in order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(f.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping field order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object, got %v", tok)
	}

	out := Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: value of %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}

// FromCSV converts CSV records to dataset records, one string field per
// column. Short rows get null for their missing columns.
func FromCSV(header []string, rows [][]string) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, 0, len(header))
		for i, col := range header {
			f := Field{Key: col, Value: json.RawMessage("null")}
			if i < len(row) {
				if v, err := marshalString(row[i]); err == nil {
					f.Value = v
				}
			}
			rec = append(rec, f)
		}
		out = append(out, rec)
	}
	return out
}

// Encode writes prefix followed by records as a 2-space indented JSON array
// and a trailing newline.
func Encode(w io.Writer, prefix string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	if _, err := io.WriteString(w, prefix); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// Decode parses data written by Encode. The prefix is optional.
func Decode(data []byte, prefix string) ([]Record, error) {
	content := strings.TrimSpace(string(data))
	if p := strings.TrimSpace(prefix); p != "" && strings.HasPrefix(content, p) {
		content = strings.TrimSpace(strings.TrimPrefix(content, p))
	}

	var records []Record
	if err := json.Unmarshal([]byte(content), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadFile reads a published dataset. A missing file, or content that does
// not decode as a list, yields an empty dataset. Only read errors are
// returned.
func LoadFile(path, prefix string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	records, err := Decode(data, prefix)
	if err != nil {
		return nil, nil
	}
	return records, nil
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
