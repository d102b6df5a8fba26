package domain

import "errors"

var (
	// ErrStoreUnavailable indica falha de transporte ao ler/escrever no quota store.
	ErrStoreUnavailable = errors.New("ratelimit: quota store unavailable")

	// ErrCorruptUsage indica que o registro salvo não passou na validação de schema.
	ErrCorruptUsage = errors.New("ratelimit: corrupt usage record")

	// ErrNoSlot indica que nenhuma vaga de concorrência ficou livre a tempo.
	ErrNoSlot = errors.New("concurrency: no slot available")

	ErrInvalidLimit  = errors.New("ratelimit: quota limit must be positive")
	ErrInvalidWindow = errors.New("ratelimit: quota window must be at least one second")
)
