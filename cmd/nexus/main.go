// Nexus is an LLM provider gateway. It exposes one OpenAI-compatible API
// and routes each request to the backend named by the model's
// "<provider>/" prefix.
//
// Usage:
//
//	# Start the gateway
//	nexus run --config /etc/nexus/config.yaml
//
//	# Check a configuration file without starting
//	nexus validate --config config.yaml
//
//	# List the models every provider reports
//	nexus models --output csv
//
//	# Probe every provider
//	nexus health
//
//	# Check the listener certificate
//	nexus certs check
package main

import "os"

func main() {
	os.Exit(Execute())
}
