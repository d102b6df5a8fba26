// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisQuotaStore / MemoryQuotaStore: quota store (get/put com TTL)
//   - Store: token bucket por chave usando golang.org/x/time/rate (burst guard)
//   - ChanPool: semáforo simples para limite de concorrência
//   - RedisStatsStore / MemoryStatsStore / PrometheusStatsStore: estatísticas de decisão
package infra
