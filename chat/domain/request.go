package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
)

const (
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000

	MinTemperature = 0.0
	MaxTemperature = 1.0
	MaxTokensCap   = 4000
)

// ErrInvalidFormat indica corpo sem `messages` ou com `messages` que não é array.
var ErrInvalidFormat = errors.New("invalid request format")

// FormatError carrega o detalhe que pode ser mostrado ao cliente.
type FormatError struct {
	Details string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return "invalid request format: " + e.Details + ": " + e.Err.Error()
	}
	return "invalid request format: " + e.Details
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrInvalidFormat }

const (
	detailsMessages = "Messages must be provided as an array"
	detailsBody     = "Request body must be a JSON object"
	detailsMaxTok   = "max_tokens must be an integer"
)

// ChatRequest é o corpo recebido em POST /api/chat, já com defaults aplicados.
type ChatRequest struct {
	// Messages é copiado sem alteração para o upstream (cada item é o JSON original).
	Messages    []json.RawMessage
	Temperature float64
	MaxTokens   int
}

type wireChatRequest struct {
	Messages    json.RawMessage `json:"messages"`
	Temperature *float64        `json:"temperature"`
	MaxTokens   *float64        `json:"max_tokens"`
}

// ParseChatRequest valida o formato do corpo. Falha sempre com um erro que
// satisfaz errors.Is(err, ErrInvalidFormat).
func ParseChatRequest(body []byte) (ChatRequest, error) {
	var wire wireChatRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return ChatRequest{}, &FormatError{Details: detailsBody, Err: err}
	}

	raw := bytes.TrimSpace(wire.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		return ChatRequest{}, &FormatError{Details: detailsMessages}
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return ChatRequest{}, &FormatError{Details: detailsMessages, Err: err}
	}
	if messages == nil {
		messages = []json.RawMessage{}
	}

	req := ChatRequest{
		Messages:    messages,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	if wire.Temperature != nil {
		req.Temperature = *wire.Temperature
	}
	if wire.MaxTokens != nil {
		n, ok := maxTokensFromNumber(*wire.MaxTokens)
		if !ok {
			return ChatRequest{}, &FormatError{Details: detailsMaxTok}
		}
		req.MaxTokens = n
	}
	return req, nil
}

// UpstreamRequest é o corpo enviado ao provedor.
type UpstreamRequest struct {
	Model       string            `json:"model"`
	Messages    []json.RawMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
}

// ClampTemperature força o valor para [0, 1]. Fora da faixa corrige, não rejeita.
func ClampTemperature(t float64) float64 {
	return min(max(t, MinTemperature), MaxTemperature)
}

// CapMaxTokens limita o teto em 4000. Não há piso.
func CapMaxTokens(n int) int {
	return min(n, MaxTokensCap)
}

// maxTokensFromNumber aceita qualquer número inteiro do JSON (1e4, 10000.0,
// 99999999999999999999). Acima do teto vira o teto antes da conversão para int.
// Abaixo de math.MinInt32 satura, o upstream rejeita de qualquer forma.
func maxTokensFromNumber(f float64) (int, bool) {
	if f != math.Trunc(f) {
		return 0, false
	}
	if f > MaxTokensCap {
		return MaxTokensCap, true
	}
	return int(max(f, math.MinInt32)), true
}

// Normalize monta a requisição do upstream. O modelo vem da configuração,
// nunca do cliente.
func Normalize(req ChatRequest, model string) UpstreamRequest {
	if model == "" {
		model = DefaultModel
	}
	return UpstreamRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: ClampTemperature(req.Temperature),
		MaxTokens:   CapMaxTokens(req.MaxTokens),
	}
}
