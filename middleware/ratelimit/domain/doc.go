// Package domain define contratos e tipos de domínio para rate limit (janela fixa
// por cliente) e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros (com Clock falso) e desacoplar
// regras de negócio de detalhes de infraestrutura.
package domain
