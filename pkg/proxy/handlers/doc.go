// Package handlers implements the gateway's HTTP endpoints.
//
// Handlers never hold a *gateway.Gateway directly. They resolve one per
// request through a GatewaySource so that a configuration reload takes
// effect for new requests while in-flight ones finish on the gateway they
// started with.
package handlers
