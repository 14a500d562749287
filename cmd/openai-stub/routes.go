package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// routes serves the two OpenAI endpoints the chat provider touches. Replies
// are deterministic: the assistant echoes the page URL and title it was given
// as JSON so end-to-end runs can assert on them.
func routes(model string) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RequestID)

	mux.Route("/v1", func(r chi.Router) {
		r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"object": "list",
				"data":   []map[string]any{{"id": model, "object": "model"}},
			})
		})
		r.Post("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
			var req chatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			if len(req.Messages) < 2 || req.Messages[0].Role != "system" {
				writeError(w, http.StatusBadRequest, "expected a system and a user message")
				return
			}
			fields := pageFields(req.Messages[1].Content)
			fields["instructions"] = strings.TrimSpace(req.Messages[0].Content)
			b, _ := json.Marshal(fields)
			writeJSON(w, http.StatusOK, map[string]any{
				"id":      "chatcmpl-" + middleware.GetReqID(r.Context()),
				"object":  "chat.completion",
				"created": time.Now().Unix(),
				"model":   req.Model,
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]string{"role": "assistant", "content": string(b)},
				}},
			})
		})
	})
	return mux
}

// pageFields reads the "URL:" and "Title:" header lines of a user message and
// counts the content lines after "Content:".
func pageFields(user string) map[string]any {
	out := map[string]any{}
	lines := strings.Split(user, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "URL: "):
			out["url"] = strings.TrimPrefix(line, "URL: ")
		case strings.HasPrefix(line, "Title: "):
			out["title"] = strings.TrimPrefix(line, "Title: ")
		case line == "Content:":
			out["content_lines"] = len(lines) - i - 1
			return out
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": msg, "type": "invalid_request_error"}})
}
