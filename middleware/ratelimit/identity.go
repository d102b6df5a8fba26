package ratelimit

import (
	"net/http"
	"strings"

	"chat-gateway/middleware/ratelimit/domain"
)

const (
	// DefaultAddressHeader é o header do proxy confiável (Cloudflare) com o IP do cliente.
	DefaultAddressHeader = "CF-Connecting-IP"

	// FallbackAddress é o endereço sentinela quando nenhum header existe
	// (dev local ou proxy mal configurado).
	FallbackAddress = "unknown_ip_local_dev"

	identityPrefix = "anon_"
)

// ClientAddress lê o endereço do cliente do header confiável.
//
// Sem o header confiável, tenta X-Real-IP e depois o sentinela; nesses casos
// trusted=false para o chamador emitir o diagnóstico.
func ClientAddress(r *http.Request, header string) (addr string, trusted bool) {
	if header == "" {
		header = DefaultAddressHeader
	}
	if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v, false
	}
	return "", false
}

// ResolveIdentity compõe "anon_{addr}" ou "anon_{addr}_{fingerprint}".
// Endereço vazio vira FallbackAddress. Função pura, nunca falha.
func ResolveIdentity(addr, fingerprint string) domain.Identity {
	if addr == "" {
		addr = FallbackAddress
	}
	if fingerprint != "" {
		return domain.Identity(identityPrefix + addr + "_" + fingerprint)
	}
	return domain.Identity(identityPrefix + addr)
}
