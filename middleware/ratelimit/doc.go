// Package ratelimit fornece adapters HTTP (net/http) para o controle de admissão
// (janela fixa por cliente) e para o limite de chamadas simultâneas ao upstream.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (CheckAndAdmit, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela em memória/Redis, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (header/XFF/RemoteAddr, ou "unknown")
//  2. Chama AdmissionController.CheckAndAdmit
//  3. Se negado, responde 429 {"error": "Too many requests..."} com Retry-After
//  4. Se admitido, chama o próximo handler (pipeline de encaminhamento do chat)
package ratelimit
