package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// UnknownKey é o bucket usado quando não foi possível identificar o cliente.
// Não é um bypass: todos os clientes sem identificação dividem a mesma janela.
const UnknownKey Key = "unknown"

const (
	DefaultWindow = 15 * time.Minute
	DefaultMax    = 100
	// DefaultCleanupEvery é o intervalo da limpeza global da tabela em memória.
	DefaultCleanupEvery = time.Hour
)

// Policy é a configuração da janela fixa. Carregada uma vez no start e nunca alterada.
type Policy struct {
	Window time.Duration
	Max    int
}

func DefaultPolicy() Policy {
	return Policy{Window: DefaultWindow, Max: DefaultMax}
}

// WindowState é o contador de um cliente dentro da janela corrente.
type WindowState struct {
	Count     int
	ResetTime time.Time
}

// Expired usa `>` e não `>=`: uma requisição exatamente em ResetTime ainda
// pertence à janela antiga.
func (s WindowState) Expired(now time.Time) bool {
	return now.After(s.ResetTime)
}

type Decision struct {
	Allowed bool

	Limit     int
	Remaining int
	ResetAt   time.Time

	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// WindowStore decide e contabiliza a admissão de uma chave num instante.
//
// A implementação deve tornar o read-modify-write do contador atômico por chave
// (mutex em memória, script Lua no Redis, etc).
type WindowStore interface {
	Admit(ctx context.Context, key Key, now time.Time) (Decision, error)
}

// Clock abstrai o relógio para permitir testes determinísticos sem sleep.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock usa time.Now.
var SystemClock Clock = ClockFunc(time.Now)
