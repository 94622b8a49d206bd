package providers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelName(t *testing.T) {
	tests := []struct {
		input        string
		wantProvider string
		wantModel    string
	}{
		{"acme/gpt-4", "acme", "gpt-4"},
		{"gpt-4", "", "gpt-4"},
		{"acme/org/model:latest", "acme", "org/model:latest"},
		{"/gpt-4", "", "gpt-4"},
		{"acme/", "acme", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			provider, model := ParseModelName(tt.input)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func TestNewEndpoint(t *testing.T) {
	ep, err := NewEndpoint(" acme ", "https://api.acme.test/v1/", "sk", []string{"a", " ", "b"})
	require.NoError(t, err)
	assert.Equal(t, "acme", ep.Name)
	assert.Equal(t, "https://api.acme.test/v1", ep.BaseURL)
	assert.Equal(t, []string{"a", "b"}, ep.Models)

	_, err = NewEndpoint("", "https://x.test", "", nil)
	assert.Error(t, err)

	_, err = NewEndpoint("a/b", "https://x.test", "", nil)
	assert.Error(t, err)

	_, err = NewEndpoint("acme", " ", "", nil)
	assert.Error(t, err)
}

func TestEndpointURLs(t *testing.T) {
	tests := []struct {
		name       string
		baseURL    string
		wantPath   string
		wantChat   string
		wantModels string
	}{
		{
			name:       "api root",
			baseURL:    "https://api.acme.test/v1",
			wantPath:   "/chat/completions",
			wantChat:   "https://api.acme.test/v1/chat/completions",
			wantModels: "https://api.acme.test/v1/models",
		},
		{
			name:       "already chat endpoint",
			baseURL:    "https://api.acme.test/v1/chat/completions/",
			wantPath:   "",
			wantChat:   "https://api.acme.test/v1/chat/completions",
			wantModels: "https://api.acme.test/v1/models",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := NewEndpoint("acme", tt.baseURL, "", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, ep.ChatPath())
			assert.Equal(t, tt.wantChat, ep.ChatURL())
			assert.Equal(t, tt.wantModels, ep.ModelsURL())
		})
	}
}

func TestClientConfigDefaults(t *testing.T) {
	cfg := ClientConfig{StreamTimeout: time.Minute}.withDefaults()
	def := DefaultClientConfig()

	assert.Equal(t, time.Minute, cfg.StreamTimeout)
	assert.Equal(t, def.NonStreamTimeout, cfg.NonStreamTimeout)
	assert.Equal(t, def.MaxResponseSize, cfg.MaxResponseSize)
	assert.Equal(t, 3, cfg.DiscoveryAttempts)
	assert.Less(t, def.NonStreamTimeout, def.StreamTimeout)
}

func TestBackoff(t *testing.T) {
	b := Backoff{MaxAttempts: 3, MaxDelay: 10 * time.Second}

	var waits []time.Duration
	for {
		d, ok := b.Next()
		if !ok {
			break
		}
		waits = append(waits, d)
	}
	assert.Equal(t, []time.Duration{0, 2 * time.Second, 4 * time.Second}, waits)
	assert.Equal(t, 3, b.Attempt())

	b = Backoff{MaxAttempts: 6, MaxDelay: 10 * time.Second}
	waits = waits[:0]
	for d, ok := b.Next(); ok; d, ok = b.Next() {
		waits = append(waits, d)
	}
	assert.Equal(t, []time.Duration{0, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}, waits)
}

func TestErrorBody(t *testing.T) {
	err := NewModelNotFoundError("ghost/x")
	assert.Equal(t, TypeModelNotFound, err.Type)
	assert.Equal(t, CodeModelNotFound, err.Code)
	assert.Equal(t, "ghost", err.Provider)
	assert.Contains(t, err.Body().Error.Message, `"ghost"`)

	data, jerr := err.MarshalJSON()
	require.NoError(t, jerr)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, ErrorDetail{Message: err.Message, Type: "model_not_found", Code: "model_not_found"}, body.Error)

	tooLarge := NewTransportError("acme", ErrResponseTooLarge)
	assert.Equal(t, CodeResponseTooLarge, tooLarge.Code)
	assert.ErrorIs(t, tooLarge, ErrResponseTooLarge)

	internal := AsError(assert.AnError)
	assert.Equal(t, TypeInternalError, internal.Type)
	assert.Same(t, err, AsError(err))
}
