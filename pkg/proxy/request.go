package proxy

import (
	"errors"
	"io"
	"net/http"

	"meridian-hq/nexus/pkg/providers"
)

// ParseChatRequest reads the request body into an envelope. A positive
// maxBytes caps the body size.
func ParseChatRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (*providers.Envelope, *providers.Error) {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, NewRequestTooLargeError(tooLarge.Limit)
		}
		return nil, NewInvalidJSONError(err)
	}

	env, err := providers.ParseEnvelope(data)
	if err != nil {
		return nil, NewInvalidJSONError(err)
	}
	return env, nil
}
