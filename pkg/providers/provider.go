package providers

import "context"

// Provider is the contract the gateway uses to reach one upstream backend.
// Connection is the production implementation; tests substitute fakes.
//
// All blocking methods accept a context.Context and must return promptly once
// it is cancelled.
type Provider interface {
	// Name returns the routing prefix of this provider.
	Name() string

	// ListModels returns the provider's model catalog. Results are cached;
	// force bypasses the cache. Discovery failures are absorbed and yield an
	// empty list, never an error.
	ListModels(ctx context.Context, force bool) []ModelInfo

	// ChatCompletion forwards a request upstream. On success exactly one of
	// ChatResult.Body or ChatResult.Stream is set. Failures are *Error.
	ChatCompletion(ctx context.Context, env *Envelope) (*ChatResult, error)

	// HealthCheck reports whether the provider answers its discovery endpoint
	// with a 2xx status.
	HealthCheck(ctx context.Context) bool

	// ClearCache drops the cached model list and failure state.
	ClearCache()

	// Close releases pooled connections. Calls made afterwards fail.
	Close() error
}

// ChatResult is the outcome of a successful chat completion.
type ChatResult struct {
	// Provider is the provider that served the request
	Provider string

	// Model is the fully-qualified model name the caller requested
	Model string

	// Body is the parsed buffered response (nil when streaming)
	Body *Envelope

	// Stream is the incremental response (nil when buffered)
	Stream *Stream
}

// IsStream reports whether the result must be relayed as an event stream.
func (r *ChatResult) IsStream() bool {
	return r != nil && r.Stream != nil
}
