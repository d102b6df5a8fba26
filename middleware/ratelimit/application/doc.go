// Package application contém os casos de uso (regras de aplicação) para quota,
// rate limit e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
//
//   - QuotaService.CheckAndIncrement(ctx, identity): contador de janela fixa no QuotaStore
//   - Service.Decide(key): burst guard (allow/deny + retry-after)
//   - ConcurrencyService.Acquire(ctx): vaga com timeout
package application
