package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"meridian-hq/nexus/pkg/processing/content"
	"meridian-hq/nexus/pkg/providers"
	"meridian-hq/nexus/pkg/proxy"
	"meridian-hq/nexus/pkg/telemetry/logging"
	"meridian-hq/nexus/pkg/telemetry/tracing"
)

// ChatHandler serves POST /v1/chat/completions.
//
// The body is kept as an open envelope: unknown fields reach the provider
// unchanged. Buffered results are returned as JSON; streamed results are
// relayed as server-sent events until the upstream finishes or the client
// goes away.
type ChatHandler struct {
	gateway  GatewaySource
	settings func() ChatSettings
	recorder ChatRecorder
	logger   *slog.Logger
}

// NewChatHandler creates a chat handler. settings is read once per request;
// a nil recorder discards outcomes.
func NewChatHandler(source GatewaySource, settings func() ChatSettings, recorder ChatRecorder, logger *slog.Logger) *ChatHandler {
	if recorder == nil {
		recorder = nopChatRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if settings == nil {
		settings = func() ChatSettings { return ChatSettings{NormalizeContent: true} }
	}
	return &ChatHandler{
		gateway:  source,
		settings: settings,
		recorder: recorder,
		logger:   logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	settings := h.settings()

	env, perr := proxy.ParseChatRequest(w, r, settings.MaxRequestBytes)
	if perr != nil {
		h.fail(ctx, w, "", "", false, perr)
		return
	}

	model, _ := env.Model()
	provider, _ := providers.ParseModelName(model)
	stream := env.Stream()
	ctx = logging.WithProvider(logging.WithModel(ctx, model), provider)
	tracing.SetRouteAttributes(ctx, provider, model, stream)

	if settings.NormalizeContent {
		if err := content.NormalizeMessages(env); err != nil {
			h.fail(ctx, w, provider, model, stream, providers.NewInvalidFieldError("messages", err.Error()))
			return
		}
	}

	h.logger.InfoContext(ctx, "processing chat completion request", "stream", stream)

	result, err := h.gateway().ChatCompletion(ctx, env)
	if err != nil {
		h.fail(ctx, w, provider, model, stream, providers.AsError(err))
		return
	}

	if result.IsStream() {
		h.relay(ctx, w, result, start)
		return
	}

	if err := proxy.WriteJSON(w, http.StatusOK, result.Body); err != nil {
		h.logger.ErrorContext(ctx, "failed to write response", "error", err)
	}
	h.recorder.RecordChat(result.Provider, result.Model, false, OutcomeSuccess)
	h.logger.InfoContext(ctx, "chat completion successful",
		"total_latency_ms", time.Since(start).Milliseconds(),
	)
}

// relay streams result to the client. The server write timeout is lifted
// because the stream is bounded by the provider's stream timeout instead.
func (h *ChatHandler) relay(ctx context.Context, w http.ResponseWriter, result *providers.ChatResult, start time.Time) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.WarnContext(ctx, "failed to clear write deadline", "error", err)
	}

	res := proxy.RelayStream(ctx, w, result.Stream)

	outcome := OutcomeSuccess
	switch {
	case res.UpstreamErr != nil:
		outcome = res.UpstreamErr.Code
		tracing.SetError(trace.SpanFromContext(ctx), res.UpstreamErr, string(res.UpstreamErr.Type), res.UpstreamErr.Code)
		h.logger.WarnContext(ctx, "stream terminated by provider",
			"chunks", res.Chunks,
			"error", res.UpstreamErr.Message,
		)
	case res.ClientErr != nil:
		outcome = OutcomeCancelled
		h.logger.InfoContext(ctx, "stream cancelled by client",
			"chunks", res.Chunks,
			"error", res.ClientErr,
		)
	default:
		h.logger.InfoContext(ctx, "stream completed",
			"chunks", res.Chunks,
			"bytes", res.Bytes,
			"total_latency_ms", time.Since(start).Milliseconds(),
		)
	}
	h.recorder.RecordChat(result.Provider, result.Model, true, outcome)
}

func (h *ChatHandler) fail(ctx context.Context, w http.ResponseWriter, provider, model string, stream bool, perr *providers.Error) {
	tracing.SetError(trace.SpanFromContext(ctx), perr, string(perr.Type), perr.Code)
	h.recorder.RecordChat(provider, model, stream, perr.Code)

	level := slog.LevelWarn
	if proxy.StatusCode(perr) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "chat completion failed",
		"type", perr.Type,
		"code", perr.Code,
		"error", perr.Message,
	)

	if err := proxy.WriteError(w, perr); err != nil {
		h.logger.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}
