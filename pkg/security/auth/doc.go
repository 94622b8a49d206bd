/*
Package auth authenticates gateway clients against the configured token
allow-list.

Tokens are presented as "Authorization: Bearer <token>". Each configured
token carries a description that is attached to the request context and
appears in logs as "client":

	validator := auth.NewTokenValidator(cfg.TokenMap())
	mw := auth.NewMiddleware(validator, nil, logger)
	mux.Handle("POST /v1/chat/completions", mw.Handle(chatHandler))

When no tokens are configured the middleware lets every request through.
Rejected requests get 401 with an OpenAI-style error body.

The allow-list is replaced in place on configuration reload:

	validator.Replace(newCfg.TokenMap())
*/
package auth
