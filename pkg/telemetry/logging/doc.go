// Package logging builds the gateway's structured logger on log/slog.
//
// The handler chain adds request-scoped fields (request_id, client,
// provider, model) from the context and masks credentials before encoding
// as JSON or text:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Redact: true})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.Slog()
//	ctx = logging.WithRequestID(ctx, "req-123")
//	log.InfoContext(ctx, "Request processed", "api_key", "sk-abc123xyz")
//	// {"msg":"Request processed","api_key":"sk-a***","request_id":"req-123",...}
//
// Redaction covers values under keys containing token, secret,
// authorization, api_key or password, plus bearer headers and sk- keys
// appearing inside any string or error.
package logging
