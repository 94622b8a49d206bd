package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletionBuffered(t *testing.T) {
	var upstream map[string]any
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&upstream))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4-0613","choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer server.Close()

	conn, err := NewConnection(Endpoint{Name: "acme", BaseURL: server.URL + "/v1", APIKey: "sk-acme"}, DefaultClientConfig())
	require.NoError(t, err)
	defer conn.Close()

	env := chatEnvelope(t, "acme/gpt-4", map[string]any{"temperature": 0.3, "x_custom": map[string]any{"a": 1}})
	result, err := conn.ChatCompletion(context.Background(), env)
	require.NoError(t, err)
	require.False(t, result.IsStream())

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-acme", gotAuth)
	assert.Equal(t, "gpt-4", upstream["model"])
	assert.Equal(t, 0.3, upstream["temperature"])
	assert.Equal(t, map[string]any{"a": float64(1)}, upstream["x_custom"])

	model, _ := result.Body.Model()
	assert.Equal(t, "acme/gpt-4", model)
	assert.Equal(t, []string{"id", "model", "choices"}, result.Body.Keys())

	// The caller's envelope is untouched.
	original, _ := env.Model()
	assert.Equal(t, "acme/gpt-4", original)
}

func TestChatCompletionBaseURLIsChatEndpoint(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"choices":[]}`), nil
	}}
	ep := Endpoint{Name: "acme", BaseURL: "https://acme.test/api/chat/completions"}
	conn := newTestConnection(t, ep, DefaultClientConfig(), transport)

	result, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", nil))
	require.NoError(t, err)
	assert.Equal(t, "https://acme.test/api/chat/completions", transport.LastRequest().URL.String())
	assert.False(t, result.Body.Has("model"), "model is only rewritten when upstream returns one")
}

func TestChatCompletionInvalidRequestMakesNoCall(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	}}
	conn := newTestConnection(t, testEndpoint("acme"), DefaultClientConfig(), transport)

	env, err := ParseEnvelope([]byte(`{"model":"acme/m"}`))
	require.NoError(t, err)

	_, err = conn.ChatCompletion(context.Background(), env)
	perr := AsError(err)
	assert.Equal(t, TypeInvalidRequest, perr.Type)
	assert.Equal(t, CodeMissingField, perr.Code)
	assert.Equal(t, 0, transport.Calls())
}

func TestChatCompletionUpstreamErrorReleasesOnce(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`), nil
	}}
	conn := newTestConnection(t, testEndpoint("acme"), DefaultClientConfig(), transport)

	_, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", nil))
	perr := AsError(err)
	assert.Equal(t, TypeProviderError, perr.Type)
	assert.Equal(t, CodeProviderRequestFailed, perr.Code)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Contains(t, perr.Message, "acme")
	assert.Contains(t, perr.Message, "slow down")

	require.Len(t, transport.bodies, 1)
	assert.Equal(t, 1, transport.bodies[0].Closes())
	assert.Equal(t, 1, transport.Calls(), "chat calls are never retried")
}

func TestChatCompletionOversizedResponse(t *testing.T) {
	const limit = 1024

	tests := []struct {
		name          string
		contentLength func(body string) int64
	}{
		{"declared length too large", func(body string) int64 { return int64(len(body)) }},
		{"length unknown", func(string) int64 { return -1 }},
		{"length understated", func(string) int64 { return 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := sizedBody(4 * limit)
			reads := &countingReader{r: strings.NewReader(body)}
			transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode:    http.StatusOK,
					Header:        http.Header{"Content-Type": []string{"application/json"}},
					Body:          &trackedBody{Reader: reads},
					ContentLength: tt.contentLength(body),
				}, nil
			}}

			cfg := DefaultClientConfig()
			cfg.MaxResponseSize = limit
			conn := newTestConnection(t, testEndpoint("acme"), cfg, transport)

			result, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", nil))
			assert.Nil(t, result)

			perr := AsError(err)
			assert.Equal(t, TypeProviderError, perr.Type)
			assert.Equal(t, CodeResponseTooLarge, perr.Code)
			assert.ErrorIs(t, err, ErrResponseTooLarge)

			require.Len(t, transport.bodies, 1)
			assert.Equal(t, 1, transport.bodies[0].Closes())
			assert.LessOrEqual(t, reads.n, int64(limit+1), "body must not be buffered past the limit")
		})
	}
}

func TestChatCompletionMalformedBody(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `not json`), nil
	}}
	conn := newTestConnection(t, testEndpoint("acme"), DefaultClientConfig(), transport)

	_, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", nil))
	assert.Equal(t, CodeInvalidProviderResponse, AsError(err).Code)
	assert.Equal(t, 1, transport.bodies[0].Closes())
}

func TestChatCompletionTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := DefaultClientConfig()
	cfg.NonStreamTimeout = 50 * time.Millisecond
	conn, err := NewConnection(Endpoint{Name: "slow", BaseURL: server.URL}, cfg)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ChatCompletion(context.Background(), chatEnvelope(t, "slow/m", nil))
	perr := AsError(err)
	assert.Equal(t, TypeProviderError, perr.Type)
	assert.Equal(t, CodeProviderTimeout, perr.Code)
	assert.True(t, IsTimeout(err))
}

func TestChatCompletionStreamExhaustion(t *testing.T) {
	events := "data: {\"choices\":[{\"delta\":{\"content\":\"he\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n" +
		"data: [DONE]\n\n"

	var tracked *trackedBody
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "text/event-stream", req.Header.Get("Accept"))
		tracked = &trackedBody{Reader: strings.NewReader(events)}
		return &http.Response{
			StatusCode:    http.StatusOK,
			Header:        http.Header{"Content-Type": []string{"text/event-stream; charset=utf-8"}},
			Body:          tracked,
			ContentLength: -1,
		}, nil
	}}
	conn := newTestConnection(t, testEndpoint("acme"), DefaultClientConfig(), transport)

	result, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", map[string]any{"stream": true}))
	require.NoError(t, err)
	require.True(t, result.IsStream())
	assert.Equal(t, 0, tracked.Closes(), "stream must not be released before consumption")

	var got strings.Builder
	for chunk, err := range result.Stream.Chunks(context.Background()) {
		require.NoError(t, err)
		got.Write(chunk)
	}

	assert.Equal(t, events, got.String())
	assert.Equal(t, 1, tracked.Closes())

	require.NoError(t, result.Stream.Close())
	assert.Equal(t, 1, tracked.Closes())

	_, err = result.Stream.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestChatCompletionStreamCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	tracked := &trackedBody{Reader: pr, closer: pr.Close}
	transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode:    http.StatusOK,
			Header:        http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:          tracked,
			ContentLength: -1,
		}, nil
	}}
	conn := newTestConnection(t, testEndpoint("acme"), DefaultClientConfig(), transport)

	result, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", map[string]any{"stream": true}))
	require.NoError(t, err)

	go func() {
		_, _ = pw.Write([]byte("data: first\n\n"))
	}()

	ctx, cancel := context.WithCancel(context.Background())
	chunk, err := result.Stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "data: first\n\n", string(chunk))

	// The next read blocks until the consumer cancels.
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = result.Stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tracked.Closes())

	require.NoError(t, result.Stream.Close())
	_, err = result.Stream.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, tracked.Closes())
}

func TestChatCompletionStreamBreakReleases(t *testing.T) {
	var tracked *trackedBody
	transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		tracked = &trackedBody{Reader: strings.NewReader(strings.Repeat("data: x\n\n", 10))}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       tracked,
		}, nil
	}}
	conn := newTestConnection(t, testEndpoint("acme"), DefaultClientConfig(), transport)

	result, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", map[string]any{"stream": true}))
	require.NoError(t, err)

	for range result.Stream.Chunks(context.Background()) {
		break
	}
	assert.Equal(t, 1, tracked.Closes())
}

func TestChatCompletionStreamMidStreamError(t *testing.T) {
	var tracked *trackedBody
	transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		tracked = &trackedBody{Reader: io.MultiReader(strings.NewReader("data: a\n\n"), errReader{errors.New("connection reset")})}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       tracked,
		}, nil
	}}
	conn := newTestConnection(t, testEndpoint("acme"), DefaultClientConfig(), transport)

	result, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", map[string]any{"stream": true}))
	require.NoError(t, err)

	var chunks int
	var streamErr error
	for _, err := range result.Stream.Chunks(context.Background()) {
		if err != nil {
			streamErr = err
			continue
		}
		chunks++
	}
	assert.Equal(t, 1, chunks)
	assert.Equal(t, TypeProviderError, AsError(streamErr).Type)
	assert.Equal(t, 1, tracked.Closes())
}

func TestChatCompletionStreamRequestedButJSONReturned(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"model":"m","choices":[]}`), nil
	}}
	conn := newTestConnection(t, testEndpoint("acme"), DefaultClientConfig(), transport)

	result, err := conn.ChatCompletion(context.Background(), chatEnvelope(t, "acme/m", map[string]any{"stream": true}))
	require.NoError(t, err)
	assert.False(t, result.IsStream())
	model, _ := result.Body.Model()
	assert.Equal(t, "acme/m", model)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
