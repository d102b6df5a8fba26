// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers
// e para respostas JSON de rejeição.

package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem depender de fmt, e sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RetryAfterSeconds arredonda para cima; nunca devolve menos que 1.
func RetryAfterSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return formatInt(secs)
}

// SetQuotaHeaders escreve X-RateLimit-Limit/Remaining/Reset.
func SetQuotaHeaders(w http.ResponseWriter, limit, remaining int, reset time.Time) {
	if limit <= 0 {
		return
	}
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", formatInt(limit))
	w.Header().Set("X-RateLimit-Remaining", formatInt(remaining))
	if !reset.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	}
}

// ErrorBody é o corpo JSON de erro do gateway.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
