// Package domain define os tipos do pipeline de encaminhamento do chat:
// a requisição do cliente, a requisição normalizada para o upstream e o
// resultado (Outcome) de uma chamada ao upstream.
//
// Sem net/http aqui: parsing, clamp e os contratos ficam testáveis isolados.
package domain
