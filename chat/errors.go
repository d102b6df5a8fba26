package chat

import "errors"

var (
	// ErrProviderFailure indica status não-2xx ou falha de transporte no provedor LLM.
	ErrProviderFailure = errors.New("chat: provider failure")

	ErrEmptyAPIKey = errors.New("chat: empty API key")
)
