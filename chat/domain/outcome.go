package domain

import "context"

// Outcome é o resultado de uma chamada ao upstream. É uma soma fechada:
// Success | UpstreamError | NoResponse | SetupError.
type Outcome interface {
	outcome()
}

// Success: o upstream respondeu 2xx. Body é repassado sem alteração.
type Success struct {
	Status int
	Body   []byte
}

// UpstreamError: o upstream respondeu com status fora de 2xx.
type UpstreamError struct {
	Status int
	Body   []byte
}

// NoResponse: timeout ou falha de rede antes de receber a resposta completa.
type NoResponse struct {
	Err error
}

// SetupError: a chamada nem chegou a ser despachada (falha local).
type SetupError struct {
	Message string
}

func (Success) outcome()       {}
func (UpstreamError) outcome() {}
func (NoResponse) outcome()    {}
func (SetupError) outcome()    {}

// Upstream é o provedor de chat completion.
//
// Complete nunca retorna erro Go: toda falha vira um Outcome.
type Upstream interface {
	Complete(ctx context.Context, apiKey string, req UpstreamRequest) Outcome
}
