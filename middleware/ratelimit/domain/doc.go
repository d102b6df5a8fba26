// Package domain define contratos e tipos de domínio para quota, rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura (Redis, memória, x/time/rate).
//
// O formato persistido de um UsageRecord é {"count": n, "lastReset": epoch-ms}.
package domain
