// upstream-falso imita o endpoint de chat completions para testar o gateway
// de ponta a ponta sem gastar a cota da credencial real.
//
//	UPSTREAM_URL=http://localhost:8081/v1/chat/completions DEEPSEEK_API_KEY=x go run ./cmd/gateway
//
// Modo: ?mode=error (503) ou ?mode=slow (segura 60s) no próprio UPSTREAM_URL,
// ou FAKE_MODE no ambiente deste processo.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	http.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("mode")
		if mode == "" {
			mode = os.Getenv("FAKE_MODE")
		}
		fmt.Printf("Log: %s %s auth=%q mode=%q\n", r.Method, r.URL.Path, r.Header.Get("Authorization"), mode)

		var req struct {
			Model       string            `json:"model"`
			Messages    []json.RawMessage `json:"messages"`
			Temperature float64           `json:"temperature"`
			MaxTokens   int               `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": err.Error()}})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch mode {
		case "error":
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "upstream falso indisponível"})
		case "slow":
			select {
			case <-time.After(60 * time.Second):
			case <-r.Context().Done():
			}
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":    "fake-1",
				"model": req.Model,
				"choices": []map[string]any{{
					"index":   0,
					"message": map[string]string{"role": "assistant", "content": fmt.Sprintf("recebi %d mensagens (temperature=%v, max_tokens=%d)", len(req.Messages), req.Temperature, req.MaxTokens)},
				}},
			})
		}
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	fmt.Printf("Upstream falso rodando em http://localhost%s\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
