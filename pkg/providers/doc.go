// Package providers talks to OpenAI-compatible chat-completion backends.
//
// # Overview
//
// A Connection owns one pooled HTTP client bound to a single Endpoint. It
// performs model discovery against {base}/models, issues chat completions
// against the endpoint's chat path, and runs lightweight health checks.
//
// Every public operation returns either a result or a *Error carrying a
// coarse Type and a machine-stable Code; raw transport errors never escape.
//
// # Model Discovery
//
// Discovered model lists are cached per connection. A failed discovery still
// caches an empty list so callers are never blocked, and the next call after
// ClientConfig.FailureCooldown has elapsed retries automatically:
//
//	conn, err := providers.NewConnection(endpoint, providers.DefaultClientConfig())
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	models := conn.ListModels(ctx, false)
//
// Discovery attempts are retried with capped exponential backoff (see Backoff).
// Concurrent forced refreshes for the same provider share one upstream call.
//
// # Chat Completions
//
// Requests are carried as an Envelope: an ordered, open JSON object. Only the
// "model" and "messages" fields are inspected; every other field is forwarded
// to the upstream verbatim.
//
//	env, err := providers.ParseEnvelope(body)
//	if err != nil {
//	    return err
//	}
//	result, err := conn.ChatCompletion(ctx, env)
//	if err != nil {
//	    return err // *providers.Error
//	}
//	if result.Stream != nil {
//	    defer result.Stream.Close()
//	    for chunk, err := range result.Stream.Chunks(ctx) {
//	        ...
//	    }
//	}
//
// Buffered responses are size-limited by ClientConfig.MaxResponseSize. Streams
// must be consumed to completion or closed; Close is idempotent and releases
// the upstream connection exactly once.
package providers
