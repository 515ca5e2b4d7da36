// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: AdmissionController.CheckAndAdmit(ctx, key) retorna uma Decision
// (admitido/negado + limite, restante, reset e retry-after).
package application
