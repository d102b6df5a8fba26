// Package ratelimit fornece os adapters HTTP (net/http) da quota anônima, do burst guard
// e do limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (quota de janela fixa, allow/deny, acquire/timeout)
//   - infra: implementações concretas (Redis, memória, token bucket, semáforo, stats)
//   - ratelimit (este pacote): resolução de identidade, middlewares HTTP e
//     tradução para status/headers/JSON
//
// Fluxo no gateway (POST /chat):
//
//  1. Burst guard por endereço (429 TOO_MANY_REQUESTS)
//  2. Limite de concorrência (503)
//  3. Handler do chat resolve a Identity (ResolveIdentity) e chama a quota
//     (429 RATE_LIMIT_EXCEEDED)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como QUOTA_LIMIT, QUOTA_WINDOW_HOURS, RATE_RPS, RATE_BURST e CONCURRENCY_MAX.
package ratelimit
