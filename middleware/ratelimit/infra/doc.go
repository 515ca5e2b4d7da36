// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryWindowStore: janela fixa por chave em memória, com limpeza global periódica
//   - RedisWindowStore: a mesma janela fixa, atômica via script Lua, para várias instâncias
//   - ChanPool: semáforo simples para limite de concorrência
//   - RedisStatsStore / PrometheusStatsStore: estatísticas das decisões
package infra
