// ABOUTME: Record type for decoded rxt documents
// ABOUTME: Handles JSON decode/encode and extraction of the required timestamp field

package rxtdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// TimestampField is the only record field the store interprets.
const TimestampField = "timestamp"

// Record is a decoded resolve document. Numbers decoded from storage are kept
// as json.Number so a record reads back exactly as it was written.
type Record map[string]any

// Timestamp returns the record's timestamp field.
func (r Record) Timestamp() (int64, error) {
	raw, ok := r[TimestampField]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: missing %q field", ErrInvalidRecord, TimestampField)
	}

	var ts int64
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer: %s", ErrInvalidRecord, TimestampField, v)
		}
		ts = n
	case int:
		ts = int64(v)
	case int32:
		ts = int64(v)
	case int64:
		ts = v
	case uint32:
		ts = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %q out of range: %d", ErrInvalidRecord, TimestampField, v)
		}
		ts = int64(v)
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("%w: %q is not an integer: %v", ErrInvalidRecord, TimestampField, v)
		}
		ts = int64(v)
	default:
		return 0, fmt.Errorf("%w: %q has unsupported type %T", ErrInvalidRecord, TimestampField, raw)
	}

	if ts < 0 {
		return 0, fmt.Errorf("%w: %q is negative: %d", ErrInvalidRecord, TimestampField, ts)
	}
	return ts, nil
}

// DecodeRecord reads a single JSON object from r.
func DecodeRecord(r io.Reader) (Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: content is not a JSON object", ErrDecode)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after record", ErrDecode)
	}
	return rec, nil
}

// ParseRecord decodes a record from raw bytes.
func ParseRecord(data []byte) (Record, error) {
	return DecodeRecord(bytes.NewReader(data))
}

// Encode serializes the record as indented JSON.
func (r Record) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return append(data, '\n'), nil
}
