// Package secrets resolves ${secret:name} references in configuration.
//
// Provider API keys and client tokens may name a secret instead of holding
// it inline:
//
//	providers:
//	  - name: acme
//	    base_url: https://api.acme.example/v1
//	    api_key: ${secret:acme-api-key}
//
// The environment provider reads NEXUS_SECRET_ACME_API_KEY; the file
// provider reads <dir>/acme-api-key. Providers are tried in order and
// results are cached for the configured TTL.
package secrets
