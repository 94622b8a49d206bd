package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer is an OpenAI-compatible upstream for tests. By default it
// serves its model list on /v1/models and echoes chat completions on
// /v1/chat/completions, streaming when the request asks for it. Any path
// can be overridden with SetResponse.
type MockServer struct {
	server *httptest.Server

	mu        sync.Mutex
	models    []string
	responses map[string]MockResponse
	counts    map[string]int
	bodies    map[string][]byte
	headers   map[string]http.Header
}

// MockResponse defines a canned response for one path.
type MockResponse struct {
	StatusCode   int
	Body         any
	Delay        time.Duration
	Headers      map[string]string
	StreamChunks []string // sent as "data: <chunk>" events followed by [DONE]
}

// NewMockServer starts a mock upstream exposing models.
func NewMockServer(models ...string) *MockServer {
	ms := &MockServer{
		models:    models,
		responses: make(map[string]MockResponse),
		counts:    make(map[string]int),
		bodies:    make(map[string][]byte),
		headers:   make(map[string]http.Header),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the server root.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// BaseURL returns the API root to configure as a provider base_url.
func (ms *MockServer) BaseURL() string {
	return ms.server.URL + "/v1"
}

// Close shuts the server down.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetModels replaces the served model list.
func (ms *MockServer) SetModels(models ...string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.models = models
}

// SetResponse overrides the response for path (e.g. "/v1/models").
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// ClearResponse restores the default behavior for path.
func (ms *MockServer) ClearResponse(path string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.responses, path)
}

// RequestCount returns the number of requests received on path.
func (ms *MockServer) RequestCount(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.counts[path]
}

// LastBody returns the most recent request body received on path.
func (ms *MockServer) LastBody(path string) []byte {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.bodies[path]
}

// LastHeader returns the headers of the most recent request on path.
func (ms *MockServer) LastHeader(path string) http.Header {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.headers[path]
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.counts[r.URL.Path]++
	ms.bodies[r.URL.Path] = body
	ms.headers[r.URL.Path] = r.Header.Clone()
	response, overridden := ms.responses[r.URL.Path]
	models := append([]string(nil), ms.models...)
	ms.mu.Unlock()

	if overridden {
		ms.serveCanned(w, r, response)
		return
	}

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/models"):
		writeJSON(w, http.StatusOK, MockModelsResponse(models...))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/chat/completions"):
		ms.serveEcho(w, r, body)
	default:
		http.NotFound(w, r)
	}
}

// serveEcho answers a chat completion with the requested model, streaming
// when the request has "stream": true.
func (ms *MockServer) serveEcho(w http.ResponseWriter, r *http.Request, body []byte) {
	var req struct {
		Model  string `json:"model"`
		Stream bool   `json:"stream"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, MockErrorBody("invalid JSON"))
		return
	}
	if req.Stream {
		writeStream(w, r, []string{
			MockStreamChunk(req.Model, "Hello", ""),
			MockStreamChunk(req.Model, " world", "stop"),
		})
		return
	}
	writeJSON(w, http.StatusOK, MockChatResponse("Hello world", req.Model))
}

func (ms *MockServer) serveCanned(w http.ResponseWriter, r *http.Request, response MockResponse) {
	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.StreamChunks) > 0 {
		writeStream(w, r, response.StreamChunks)
		return
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = io.WriteString(w, v)
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeStream sends chunks as server-sent events followed by [DONE].
func writeStream(w http.ResponseWriter, r *http.Request, chunks []string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, chunk := range chunks {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
		select {
		case <-time.After(5 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// MockModelsResponse builds a /models body listing ids.
func MockModelsResponse(ids ...string) map[string]any {
	data := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]any{
			"id":       id,
			"object":   "model",
			"created":  1700000000,
			"owned_by": "upstream",
		})
	}
	return map[string]any{"object": "list", "data": data}
}

// MockChatResponse builds a buffered chat completion body.
func MockChatResponse(content, model string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

// MockStreamChunk builds one chat.completion.chunk payload.
func MockStreamChunk(model, delta, finishReason string) string {
	var finish any
	if finishReason != "" {
		finish = finishReason
	}
	chunk := map[string]any{
		"id":      "chatcmpl-123",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]any{
			{
				"index":         0,
				"delta":         map[string]any{"content": delta},
				"finish_reason": finish,
			},
		},
	}
	data, _ := json.Marshal(chunk)
	return string(data)
}

// MockErrorBody builds an OpenAI-style error body.
func MockErrorBody(message string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
		},
	}
}

// MockErrorResponse creates a canned error response.
func MockErrorResponse(statusCode int, message string) MockResponse {
	return MockResponse{StatusCode: statusCode, Body: MockErrorBody(message)}
}

// MockAuthError creates a 401 response.
func MockAuthError() MockResponse {
	return MockErrorResponse(http.StatusUnauthorized, "Invalid API key")
}

// MockServerError creates a 500 response.
func MockServerError() MockResponse {
	return MockErrorResponse(http.StatusInternalServerError, "Internal server error")
}

// MockTimeoutError creates a response slow enough to trip a short timeout.
func MockTimeoutError(delay time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       MockChatResponse("too late", "slow"),
		Delay:      delay,
	}
}
