package domain

import "context"

// SlotPool limita quantas chamadas ao upstream podem estar em voo ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar. Quando ok=true,
// release deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
