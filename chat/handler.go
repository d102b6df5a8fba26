package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chat-gateway/middleware/ratelimit"
	"chat-gateway/middleware/ratelimit/domain"
)

const (
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// MaxBodyBytes limita o corpo do POST /chat.
	MaxBodyBytes = 64 << 10

	DefaultTimeout = 30 * time.Second

	msgInvalidMessage     = "Message is required and must be a non-empty string."
	msgInvalidJSON        = "Invalid JSON body."
	msgInvalidFingerprint = "Fingerprint must be a string."
	msgBodyTooLarge       = "Request body too large."
	msgInternal           = "Internal server error"
)

// QuotaChecker é o que o handler precisa da quota (application.QuotaService).
type QuotaChecker interface {
	CheckAndIncrement(ctx context.Context, id domain.Identity) (domain.Decision, error)
}

// Handler atende POST /chat.
type Handler struct {
	Quota     QuotaChecker
	Completer Completer

	// AddressHeader é o header do proxy confiável. Padrão: CF-Connecting-IP.
	AddressHeader string

	// FailOpen decide o que fazer com o quota store fora do ar:
	// true deixa passar (com WARN), false responde 500.
	FailOpen bool

	// Timeout da chamada ao LLM. Estourar conta como falha do provedor.
	Timeout time.Duration

	Stats  domain.StatsStore
	Logger *slog.Logger
	Now    func() time.Time
}

type chatRequest struct {
	Message     json.RawMessage `json:"message"`
	Fingerprint json.RawMessage `json:"fingerprint"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger().With(slog.String("request_id", RequestIDFrom(r.Context())))

	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error("chat handler panic", slog.Any("panic", rec))
			ratelimit.WriteJSON(w, http.StatusInternalServerError, ratelimit.ErrorBody{Error: msgInternal})
		}
	}()

	message, fingerprint, status, errMsg := parseRequest(w, r)
	if status != 0 {
		log.Debug("chat request rejected", slog.Int("status", status), slog.String("reason", errMsg))
		ratelimit.WriteJSON(w, status, ratelimit.ErrorBody{Error: errMsg})
		return
	}

	addr, trusted := ratelimit.ClientAddress(r, h.AddressHeader)
	if !trusted {
		log.Warn("trusted client address header missing; using fallback",
			slog.String("header", h.addressHeader()),
			slog.String("fallback", fallbackLabel(addr)))
	}
	id := ratelimit.ResolveIdentity(addr, fingerprint)

	// store e LLM terminam mesmo se o cliente desconectar
	ctx := context.WithoutCancel(r.Context())

	dec, ok := h.checkQuota(ctx, log, id)
	if !ok {
		ratelimit.WriteJSON(w, http.StatusInternalServerError, ratelimit.ErrorBody{Error: msgInternal})
		return
	}
	h.record(ctx, r, id, dec)

	ratelimit.SetQuotaHeaders(w, dec.Limit, dec.Remaining, dec.ResetAt)
	if !dec.Allowed {
		log.Info("quota exceeded", slog.String("identity", string(id)), slog.Duration("retry_after", dec.RetryAfter))
		w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(dec.RetryAfter))
		msg := dec.Message
		if msg == "" {
			msg = "Rate limit exceeded."
		}
		ratelimit.WriteJSON(w, http.StatusTooManyRequests, ratelimit.ErrorBody{Error: msg, Code: CodeRateLimitExceeded})
		return
	}

	llmCtx, cancel := context.WithTimeout(ctx, h.timeout())
	defer cancel()

	start := h.now()
	text, err := h.Completer.Complete(llmCtx, message)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrProviderFailure) {
			err = fmt.Errorf("%w: timed out after %s", ErrProviderFailure, h.timeout())
		}
		log.Error("completion failed",
			slog.String("identity", string(id)),
			slog.Duration("elapsed", h.now().Sub(start)),
			slog.Any("error", err))
		ratelimit.WriteJSON(w, http.StatusInternalServerError, ratelimit.ErrorBody{Error: msgInternal, Details: err.Error()})
		return
	}

	log.Debug("completion ok", slog.String("identity", string(id)), slog.Duration("elapsed", h.now().Sub(start)))
	ratelimit.WriteJSON(w, http.StatusOK, chatResponse{Response: text})
}

// checkQuota aplica a política fail-open/fail-closed. ok=false significa 500.
func (h *Handler) checkQuota(ctx context.Context, log *slog.Logger, id domain.Identity) (domain.Decision, bool) {
	if h.Quota == nil {
		return domain.Decision{Allowed: true}, true
	}

	dec, err := h.Quota.CheckAndIncrement(ctx, id)
	if err == nil {
		return dec, true
	}
	if errors.Is(err, domain.ErrStoreUnavailable) && h.FailOpen {
		log.Warn("quota store unavailable; allowing request", slog.String("identity", string(id)), slog.Any("error", err))
		return domain.Decision{Allowed: true, Degraded: true}, true
	}
	log.Error("quota check failed", slog.String("identity", string(id)), slog.Any("error", err))
	return domain.Decision{}, false
}

func (h *Handler) record(ctx context.Context, r *http.Request, id domain.Identity, dec domain.Decision) {
	if h.Stats == nil {
		return
	}
	err := h.Stats.Record(ctx, domain.StatsEvent{
		Kind:     domain.StatsKindQuota,
		Key:      domain.Key(id),
		Allowed:  dec.Allowed,
		Degraded: dec.Degraded,
		Method:   r.Method,
		Path:     r.URL.Path,
		At:       h.now(),
	})
	if err != nil {
		h.logger().Debug("stats record failed", slog.Any("error", err))
	}
}

// parseRequest devolve status != 0 quando o corpo é inválido.
func parseRequest(w http.ResponseWriter, r *http.Request) (message, fingerprint string, status int, errMsg string) {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req chatRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", "", http.StatusRequestEntityTooLarge, msgBodyTooLarge
		}
		return "", "", http.StatusBadRequest, msgInvalidJSON
	}

	if !isJSONString(req.Message) {
		return "", "", http.StatusBadRequest, msgInvalidMessage
	}
	if err := json.Unmarshal(req.Message, &message); err != nil || strings.TrimSpace(message) == "" {
		return "", "", http.StatusBadRequest, msgInvalidMessage
	}

	if len(req.Fingerprint) > 0 && !bytes.Equal(req.Fingerprint, []byte("null")) {
		if !isJSONString(req.Fingerprint) {
			return "", "", http.StatusBadRequest, msgInvalidFingerprint
		}
		if err := json.Unmarshal(req.Fingerprint, &fingerprint); err != nil {
			return "", "", http.StatusBadRequest, msgInvalidFingerprint
		}
	}
	return message, fingerprint, 0, ""
}

func isJSONString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) >= 2 && raw[0] == '"'
}

func fallbackLabel(addr string) string {
	if addr == "" {
		return ratelimit.FallbackAddress
	}
	return "X-Real-IP"
}

func (h *Handler) addressHeader() string {
	if h.AddressHeader != "" {
		return h.AddressHeader
	}
	return ratelimit.DefaultAddressHeader
}

func (h *Handler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return DefaultTimeout
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
