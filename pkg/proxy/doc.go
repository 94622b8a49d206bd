// Package proxy holds the HTTP plumbing shared by the gateway's handlers:
// request parsing, error-to-status mapping, JSON responses and the
// event-stream relay.
//
// Every error leaves the server as
//
//	{"error": {"message": "...", "type": "...", "code": "..."}}
//
// with the status chosen by StatusCode. Handlers live in proxy/handlers and
// the middleware chain in proxy/middleware.
package proxy
