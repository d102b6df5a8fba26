package main

// Provedor LLM falso compatível com POST /v1/chat/completions.
// Para testar o gateway de ponta a ponta sem chave real:
//
//	go run ./teste-validacao/llm-fake
//	LLM_API_KEY=qualquer LLM_BASE_URL=http://localhost:8081/v1/ QUOTA_STORE=memory go run ./cmd/gateway
//
// FAKE_STATUS força um status de erro (ex: 503) e FAKE_DELAY atrasa a resposta
// (ex: 40s, para exercitar o LLM_TIMEOUT do gateway).

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

func main() {
	status, _ := strconv.Atoi(os.Getenv("FAKE_STATUS"))
	delay, _ := time.ParseDuration(os.Getenv("FAKE_DELAY"))

	http.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]string{"message": "invalid body", "type": "invalid_request_error"},
			})
			return
		}

		if delay > 0 {
			time.Sleep(delay)
		}
		if status >= 400 {
			slog.Info("respondendo erro forçado", slog.Int("status", status))
			writeJSON(w, status, map[string]any{
				"error": map[string]string{"message": "forced failure", "type": "server_error"},
			})
			return
		}

		var user string
		for _, m := range req.Messages {
			if m.Role == "user" {
				user = m.Content
			}
		}
		slog.Info("completion", slog.String("model", req.Model), slog.Int("messages", len(req.Messages)))

		writeJSON(w, http.StatusOK, map[string]any{
			"id":      fmt.Sprintf("chatcmpl-fake-%d", time.Now().UnixNano()),
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       message{Role: "assistant", Content: "Resposta falsa para: " + user},
			}},
		})
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	slog.Info("llm fake rodando", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("erro ao subir o servidor", slog.Any("error", err))
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
