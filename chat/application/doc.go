// Package application implementa o pipeline de encaminhamento:
// formato -> credencial -> normalização -> chamada ao upstream -> tradução.
//
// Cada etapa é um portão: a primeira falha encerra o fluxo e vira uma Response.
// Nada aqui conhece net/http além dos códigos de status.
package application
