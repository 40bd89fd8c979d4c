package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// object is a decoded JSON object that remembers the order of its keys, so
// fields this service does not interpret are written back where they were.
type object struct {
	keys   []string
	values map[string]json.RawMessage
}

func (o object) get(key string) (json.RawMessage, bool) {
	raw, ok := o.values[key]
	return raw, ok && !isNull(raw)
}

// field is a value to write in place of (or after) the decoded fields.
type field struct {
	key   string
	value any
}

func decodeObject(data []byte) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return object{}, err
	}
	if tok == nil {
		return object{}, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return object{}, errors.New("expected a JSON object")
	}

	o := object{values: map[string]json.RawMessage{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return object{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return object{}, fmt.Errorf("unexpected object key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return object{}, fmt.Errorf("failed to decode field %q: %w", key, err)
		}
		if _, seen := o.values[key]; !seen {
			o.keys = append(o.keys, key)
		}
		o.values[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return object{}, err
	}
	return o, nil
}

// encode writes the decoded fields in their original order, replacing those
// named in overrides. Overrides for keys the object did not have go last.
func (o object) encode(overrides ...field) ([]byte, error) {
	replaced := make(map[string]json.RawMessage, len(overrides))
	for _, f := range overrides {
		raw, err := marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", f.key, err)
		}
		replaced[f.key] = raw
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, raw json.RawMessage) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := marshal(key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(raw)
		return nil
	}

	for _, key := range o.keys {
		raw := o.values[key]
		if r, ok := replaced[key]; ok {
			raw = r
		}
		if err := write(key, raw); err != nil {
			return nil, err
		}
	}
	for _, f := range overrides {
		if _, seen := o.values[f.key]; seen {
			continue
		}
		if err := write(f.key, replaced[f.key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshal encodes v without escaping <, > and &.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func stringField(o object, key string) (string, error) {
	raw, ok := o.get(key)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: field %q must be a string", ErrInvalidDocument, key)
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
