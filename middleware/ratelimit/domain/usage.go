package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// UsageRecord é o consumo de um cliente dentro da janela corrente.
//
// Count <= Limit é garantido pelo QuotaService, nunca pelo registro em si.
type UsageRecord struct {
	Count       int64
	WindowStart time.Time
}

// wireUsage é o formato persistido: {"count": n, "lastReset": epoch-ms}.
// Ponteiros permitem distinguir campo ausente de valor zero.
type wireUsage struct {
	Count     *int64 `json:"count"`
	LastReset *int64 `json:"lastReset"`
}

func EncodeUsage(rec UsageRecord) ([]byte, error) {
	count := rec.Count
	lastReset := rec.WindowStart.UnixMilli()
	return json.Marshal(wireUsage{Count: &count, LastReset: &lastReset})
}

// DecodeUsage valida o registro salvo. Qualquer falha retorna ErrCorruptUsage;
// o chamador trata isso exatamente como registro ausente.
func DecodeUsage(raw []byte) (UsageRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	var w wireUsage
	if err := dec.Decode(&w); err != nil {
		return UsageRecord{}, fmt.Errorf("%w: %v", ErrCorruptUsage, err)
	}
	if dec.More() {
		return UsageRecord{}, fmt.Errorf("%w: trailing data", ErrCorruptUsage)
	}
	if w.Count == nil || w.LastReset == nil {
		return UsageRecord{}, fmt.Errorf("%w: missing field", ErrCorruptUsage)
	}
	if *w.Count < 0 {
		return UsageRecord{}, fmt.Errorf("%w: negative count %d", ErrCorruptUsage, *w.Count)
	}
	if *w.LastReset <= 0 {
		return UsageRecord{}, fmt.Errorf("%w: invalid lastReset %d", ErrCorruptUsage, *w.LastReset)
	}
	return UsageRecord{Count: *w.Count, WindowStart: time.UnixMilli(*w.LastReset)}, nil
}

// QuotaStore é o adapter de chave-valor que guarda os UsageRecord serializados.
//
// Sem transações entre chaves e sem compare-and-swap: o read-modify-write do
// QuotaService não é atômico.
//
//   - Get nunca falha por "não encontrado": retorna ok=false.
//   - Put grava com expiração; ttl é arredondado para segundos pelo adapter.
//
// Erros de transporte devem ser embrulhados com ErrStoreUnavailable.
type QuotaStore interface {
	Get(ctx context.Context, key string) (raw []byte, ok bool, err error)
	Put(ctx context.Context, key string, raw []byte, ttl time.Duration) error
}
