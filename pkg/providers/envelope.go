package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Envelope is an open JSON object that preserves field order and carries
// every value as raw JSON. Only a handful of fields are ever decoded; the
// rest are forwarded byte-for-byte.
type Envelope struct {
	fields *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewEnvelope returns an empty envelope.
func NewEnvelope() *Envelope {
	return &Envelope{fields: orderedmap.New[string, json.RawMessage]()}
}

// ParseEnvelope decodes a JSON object.
func ParseEnvelope(data []byte) (*Envelope, error) {
	env := NewEnvelope()
	if err := env.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return env, nil
}

// EnvelopeFrom builds an envelope from a Go map. Keys are inserted in the
// order given by keys, followed by any remaining keys of m.
func EnvelopeFrom(m map[string]any, keys ...string) (*Envelope, error) {
	env := NewEnvelope()
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if err := env.Set(k, v); err != nil {
			return nil, err
		}
		seen[k] = true
	}
	for k, v := range m {
		if seen[k] {
			continue
		}
		if err := env.Set(k, v); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func (e *Envelope) ensure() {
	if e.fields == nil {
		e.fields = orderedmap.New[string, json.RawMessage]()
	}
}

// Len returns the number of fields.
func (e *Envelope) Len() int {
	if e == nil || e.fields == nil {
		return 0
	}
	return e.fields.Len()
}

// Keys returns field names in order.
func (e *Envelope) Keys() []string {
	if e == nil || e.fields == nil {
		return nil
	}
	keys := make([]string, 0, e.fields.Len())
	for pair := e.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Raw returns the raw JSON of a field.
func (e *Envelope) Raw(key string) (json.RawMessage, bool) {
	if e == nil || e.fields == nil {
		return nil, false
	}
	return e.fields.Get(key)
}

// Has reports whether a field is present.
func (e *Envelope) Has(key string) bool {
	_, ok := e.Raw(key)
	return ok
}

// Decode unmarshals a field into v. It reports false if the field is absent.
func (e *Envelope) Decode(key string, v any) (bool, error) {
	raw, ok := e.Raw(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode field %q: %w", key, err)
	}
	return true, nil
}

// Set marshals v into a field, keeping its position if it already exists.
func (e *Envelope) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode field %q: %w", key, err)
	}
	e.SetRaw(key, raw)
	return nil
}

// SetRaw stores raw JSON in a field without validation.
func (e *Envelope) SetRaw(key string, raw json.RawMessage) {
	e.ensure()
	e.fields.Set(key, raw)
}

// Delete removes a field.
func (e *Envelope) Delete(key string) {
	if e == nil || e.fields == nil {
		return
	}
	e.fields.Delete(key)
}

// Clone returns a shallow copy: the field list is new, raw values are shared.
func (e *Envelope) Clone() *Envelope {
	out := NewEnvelope()
	if e == nil || e.fields == nil {
		return out
	}
	for pair := e.fields.Oldest(); pair != nil; pair = pair.Next() {
		out.fields.Set(pair.Key, pair.Value)
	}
	return out
}

// MarshalJSON encodes the envelope as a JSON object in field order.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	if e == nil || e.fields == nil {
		return []byte("{}"), nil
	}
	return e.fields.MarshalJSON()
}

// UnmarshalJSON replaces the envelope's fields with the decoded object.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("envelope must be a JSON object")
	}
	fields := orderedmap.New[string, json.RawMessage]()
	if err := fields.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	e.fields = fields
	return nil
}

// Model returns the "model" field if it is a string.
func (e *Envelope) Model() (string, bool) {
	var model string
	ok, err := e.Decode("model", &model)
	if !ok || err != nil {
		return "", false
	}
	return model, true
}

// Messages returns the raw elements of the "messages" array.
func (e *Envelope) Messages() ([]json.RawMessage, bool) {
	var msgs []json.RawMessage
	ok, err := e.Decode("messages", &msgs)
	if !ok || err != nil || msgs == nil {
		return nil, false
	}
	return msgs, true
}

// Stream reports whether the request asked for a streamed response.
func (e *Envelope) Stream() bool {
	var stream bool
	ok, err := e.Decode("stream", &stream)
	return ok && err == nil && stream
}

// Validate checks the fields the gateway itself depends on: a non-empty
// string "model" and a non-empty "messages" array.
func (e *Envelope) Validate() *Error {
	if e == nil {
		return NewMissingFieldError("model")
	}
	raw, ok := e.Raw("model")
	if !ok || isJSONNull(raw) {
		return NewMissingFieldError("model")
	}
	model, ok := e.Model()
	if !ok {
		return NewInvalidFieldError("model", "must be a string")
	}
	if model == "" {
		return NewMissingFieldError("model")
	}

	raw, ok = e.Raw("messages")
	if !ok || isJSONNull(raw) {
		return NewMissingFieldError("messages")
	}
	msgs, ok := e.Messages()
	if !ok {
		return NewInvalidFieldError("messages", "must be an array")
	}
	if len(msgs) == 0 {
		return NewMissingFieldError("messages")
	}
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
