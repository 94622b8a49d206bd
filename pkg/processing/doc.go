// Package processing holds request transformations applied by the HTTP
// layer before a chat request reaches the gateway.
//
//   - content: flattens structured message content into plain strings for
//     backends that only accept string content
package processing
