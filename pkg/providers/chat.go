package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
)

// ChatCompletion forwards env to the provider's chat endpoint.
//
// The "model" field is rewritten to the upstream id; every other field is
// sent as received. A streamed response is returned as a Stream that owns the
// connection; a buffered response is size-checked, parsed, and has its
// "model" field restored to the name the caller used. Chat calls are never
// retried.
func (c *Connection) ChatCompletion(ctx context.Context, env *Envelope) (result *ChatResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("chat completion panicked", "panic", r)
			result, err = nil, NewInternalError(fmt.Errorf("panic: %v", r))
		}
	}()

	if verr := env.Validate(); verr != nil {
		return nil, verr
	}
	if c.isClosed() {
		return nil, NewTransportError(c.endpoint.Name, ErrConnectionClosed)
	}

	model, _ := env.Model()
	_, upstream := ParseModelName(model)

	payload := env.Clone()
	if err := payload.Set("model", upstream); err != nil {
		return nil, NewInternalError(err)
	}
	body, err := payload.MarshalJSON()
	if err != nil {
		return nil, NewInternalError(err)
	}

	streaming := env.Stream()
	timeout := c.cfg.NonStreamTimeout
	if streaming {
		timeout = c.cfg.StreamTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	done, err := c.acquire(callCtx)
	if err != nil {
		cancel()
		perr := NewTransportError(c.endpoint.Name, err)
		c.recordFailure(perr)
		return nil, perr
	}

	// release is handed to the Stream on the streaming path.
	release := func() {
		cancel()
		done()
	}
	defer func() {
		if release != nil {
			release()
		}
	}()

	req, err := c.newRequest(callCtx, http.MethodPost, c.endpoint.ChatURL(), bytes.NewReader(body))
	if err != nil {
		return nil, NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	c.logger.Debug("sending chat completion",
		"model", upstream,
		"stream", streaming,
		"url", c.endpoint.ChatURL(),
	)

	start := c.now()
	resp, err := c.client.Do(req)
	if err != nil {
		perr := NewTransportError(c.endpoint.Name, err)
		c.recordFailure(perr)
		return nil, perr
	}
	c.recorder.RecordLatency(c.endpoint.Name, "chat", c.now().Sub(start))

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok && isStreamResponse(resp, streaming) {
		s := newStream(c.endpoint.Name, resp.Body, cancel, func() {
			done()
			c.recorder.StreamClosed(c.endpoint.Name)
		}, c.logger)
		release = nil
		c.recorder.StreamOpened(c.endpoint.Name)
		c.recorder.RecordRequest(c.endpoint.Name, "chat", "success")
		return &ChatResult{Provider: c.endpoint.Name, Model: model, Stream: s}, nil
	}
	defer resp.Body.Close()

	if !ok {
		perr := NewStatusError(c.endpoint.Name, resp.StatusCode, snippet(resp.Body))
		c.recordFailure(perr)
		return nil, perr
	}

	data, err := readLimited(resp.Body, resp.ContentLength, c.cfg.MaxResponseSize)
	if err != nil {
		var perr *Error
		if errors.Is(err, ErrResponseTooLarge) {
			perr = NewTooLargeError(c.endpoint.Name, c.cfg.MaxResponseSize)
		} else {
			perr = NewTransportError(c.endpoint.Name, err)
		}
		c.recordFailure(perr)
		return nil, perr
	}

	out, err := ParseEnvelope(data)
	if err != nil {
		perr := NewInvalidResponseError(c.endpoint.Name, err)
		c.recordFailure(perr)
		return nil, perr
	}
	if out.Has("model") {
		if err := out.Set("model", model); err != nil {
			return nil, NewInternalError(err)
		}
	}

	c.recorder.RecordRequest(c.endpoint.Name, "chat", "success")
	return &ChatResult{Provider: c.endpoint.Name, Model: model, Body: out}, nil
}

func (c *Connection) recordFailure(err *Error) {
	c.recorder.RecordRequest(c.endpoint.Name, "chat", "error")
	c.recorder.RecordError(c.endpoint.Name, err.Code)
	c.logger.Warn("chat completion failed",
		"code", err.Code,
		"status", err.StatusCode,
		"error", err.Message,
	)
}

// isStreamResponse picks the streaming branch for an event-stream response,
// or for a streamed request whose response is not JSON.
func isStreamResponse(resp *http.Response, requested bool) bool {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/event-stream":
		return true
	case "application/json":
		return false
	}
	return requested
}
