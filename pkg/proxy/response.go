package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"meridian-hq/nexus/pkg/providers"
)

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteError writes err as {"error": {...}} with the mapped status.
func WriteError(w http.ResponseWriter, err error) error {
	perr := providers.AsError(err)
	return WriteJSON(w, StatusCode(perr), perr.Body())
}

// SetSSEHeaders prepares w for an event-stream relay.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("X-Accel-Buffering", "no")
}

// RelayResult summarizes one relayed stream.
type RelayResult struct {
	Chunks int
	Bytes  int64

	// UpstreamErr is set when the provider stream failed mid-way
	UpstreamErr *providers.Error

	// ClientErr is set when writing to the client failed or ctx ended
	ClientErr error
}

// RelayStream copies upstream event-stream bytes to w unchanged, flushing
// after every chunk. The stream is always closed on return. An upstream
// failure after the headers are sent is reported as a final
// "data: {error}" event.
func RelayStream(ctx context.Context, w http.ResponseWriter, stream *providers.Stream) RelayResult {
	var res RelayResult
	rc := http.NewResponseController(w)

	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				res.ClientErr = ctx.Err()
				return res
			}
			res.UpstreamErr = providers.AsError(err)
			_ = WriteSSEError(w, res.UpstreamErr)
			return res
		}
		n, werr := w.Write(chunk)
		res.Bytes += int64(n)
		if werr != nil {
			res.ClientErr = werr
			return res
		}
		res.Chunks++
		if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
			res.ClientErr = ferr
			return res
		}
	}
	return res
}

// WriteSSEError writes an error as a single event.
func WriteSSEError(w http.ResponseWriter, perr *providers.Error) error {
	data, err := json.Marshal(perr.Body())
	if err != nil {
		return fmt.Errorf("failed to marshal SSE error: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE error: %w", err)
	}
	if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
