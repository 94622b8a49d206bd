// Package security groups the gateway's security packages.
//
//   - auth: client bearer-token allow-list middleware
//   - secrets: ${secret:name} resolution for provider keys and tokens
//   - tls: HTTPS listener configuration with certificate reload and mTLS
package security
