package application

import (
	"encoding/json"
	"net/http"

	"chat-gateway/chat/domain"
)

// Mensagens de erro expostas ao cliente.
const (
	MsgInvalidRequestFormat = "Invalid request format"
	MsgServerConfiguration  = "Server configuration error"
	MsgAPIError             = "API Error"
	MsgGatewayTimeout       = "Gateway Timeout"
	MsgInternalServerError  = "Internal Server Error"

	DetailsAPIKeyMissing    = "API key not configured"
	DetailsNoResponse       = "No response received from DeepSeek API"
	DetailsUpstreamFallback = "Error from DeepSeek API"
)

// Response é o que o adapter HTTP escreve. Body já é JSON.
type Response struct {
	Status int
	Body   []byte
}

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	Status  int    `json:"status,omitempty"`
}

func errorResponse(status int, body errorBody) Response {
	b, err := json.Marshal(body)
	if err != nil {
		// details vem de json.RawMessage validado ou de string; não deve acontecer
		b = []byte(`{"error":"Internal Server Error"}`)
		status = http.StatusInternalServerError
	}
	return Response{Status: status, Body: b}
}

// Translate converte um Outcome em resposta para o cliente. O switch cobre a
// soma fechada inteira; o default existe só para um Outcome nil.
func Translate(o domain.Outcome) Response {
	switch o := o.(type) {
	case domain.Success:
		return Response{Status: http.StatusOK, Body: o.Body}
	case domain.UpstreamError:
		return errorResponse(o.Status, errorBody{
			Error:   MsgAPIError,
			Details: upstreamErrorDetails(o.Body),
			Status:  o.Status,
		})
	case domain.NoResponse:
		return errorResponse(http.StatusGatewayTimeout, errorBody{
			Error:   MsgGatewayTimeout,
			Details: DetailsNoResponse,
		})
	case domain.SetupError:
		return errorResponse(http.StatusInternalServerError, errorBody{
			Error:   MsgInternalServerError,
			Details: o.Message,
		})
	default:
		return errorResponse(http.StatusInternalServerError, errorBody{
			Error:   MsgInternalServerError,
			Details: "no upstream outcome",
		})
	}
}

// upstreamErrorDetails devolve o campo `error` do corpo do upstream sem
// reinterpretar. Se não houver (ou for vazio/falso), usa a mensagem padrão.
func upstreamErrorDetails(body []byte) any {
	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DetailsUpstreamFallback
	}
	switch string(parsed.Error) {
	case "", "null", "false", "0", `""`:
		return DetailsUpstreamFallback
	}
	return parsed.Error
}
