package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"meridian-hq/nexus/pkg/providers"
)

// part is one element of a structured content array.
type part struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// Normalize flattens one message "content" value into a JSON string.
//
//   - a string is kept
//   - null is kept
//   - an array of parts carrying "text" becomes the texts joined by a
//     space; parts without text (images, audio) are dropped
//   - an array of strings is joined by a space
//   - anything else becomes its compact JSON text
//
// changed reports whether the returned value differs from raw.
func Normalize(raw json.RawMessage) (out json.RawMessage, changed bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return raw, false, nil
	}

	switch trimmed[0] {
	case '"', 'n':
		return raw, false, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false, fmt.Errorf("decode content: %w", err)
		}
		text, err := joinItems(items)
		if err != nil {
			return nil, false, err
		}
		return encodeString(text), true, nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, false, fmt.Errorf("decode content: %w", err)
		}
		return encodeString(buf.String()), true, nil
	}
}

func joinItems(items []json.RawMessage) (string, error) {
	texts := make([]string, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		switch item[0] {
		case '"':
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return "", fmt.Errorf("decode content item: %w", err)
			}
			texts = append(texts, s)
		case '{':
			var p part
			if err := json.Unmarshal(item, &p); err != nil {
				return "", fmt.Errorf("decode content part: %w", err)
			}
			if p.Text == nil || (p.Type != "" && p.Type != "text") {
				continue
			}
			texts = append(texts, *p.Text)
		default:
			var buf bytes.Buffer
			if err := json.Compact(&buf, item); err != nil {
				return "", fmt.Errorf("decode content item: %w", err)
			}
			texts = append(texts, buf.String())
		}
	}
	return strings.Join(texts, " "), nil
}

func encodeString(s string) json.RawMessage {
	// json.Marshal of a string cannot fail.
	b, _ := json.Marshal(s)
	return b
}

// NormalizeMessages rewrites the "content" of every message in env in
// place. Messages that are not objects, or have no content, are left
// untouched. Field order inside each message is preserved.
func NormalizeMessages(env *providers.Envelope) error {
	msgs, ok := env.Messages()
	if !ok {
		return nil
	}

	dirty := false
	for i, raw := range msgs {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		msg, err := providers.ParseEnvelope(trimmed)
		if err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
		content, ok := msg.Raw("content")
		if !ok {
			continue
		}
		normalized, changed, err := Normalize(content)
		if err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
		if !changed {
			continue
		}
		msg.SetRaw("content", normalized)
		encoded, err := msg.MarshalJSON()
		if err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
		msgs[i] = encoded
		dirty = true
	}

	if !dirty {
		return nil
	}
	return env.Set("messages", msgs)
}
