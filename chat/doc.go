// Package chat é a borda HTTP do gateway: valida a mensagem, resolve a
// identidade anônima, consulta a quota e só então chama o LLM.
//
// Fluxo do POST /chat:
//
//	body -> validação -> ResolveIdentity -> QuotaService -> Completer -> JSON
//
// Erros de validação nunca tocam a quota. Uma chamada ao LLM que falha depois
// de aceita continua contando (não há estorno).
package chat
