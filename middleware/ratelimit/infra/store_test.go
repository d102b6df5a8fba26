package infra

import (
	"context"
	"testing"
	"time"

	"chat-gateway/middleware/ratelimit/domain"
)

func TestStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewStore(10, 1)

	l1 := s.Get(domain.Key("k"))
	l2 := s.Get(domain.Key("k"))
	if l1 != l2 {
		t.Fatalf("expected same limiter pointer for same key")
	}
	if s.Len() != 1 {
		t.Fatalf("expected one entry, got %d", s.Len())
	}
}

func TestStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewStore(0.02, 1)

	lim := s.Get(domain.Key("k"))
	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewStore(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	before := s.Get(domain.Key("k"))
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	after := s.Get(domain.Key("k"))
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

func TestChanPool_AcquireReleaseAndInUse(t *testing.T) {
	p := NewChanPool(1)

	release, ok := p.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}
	if p.InUse() != 1 {
		t.Fatalf("expected InUse=1, got %d", p.InUse())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := p.Acquire(ctx); ok {
		t.Fatalf("expected second acquire to time out")
	}

	release()
	if p.InUse() != 0 {
		t.Fatalf("expected InUse=0 after release, got %d", p.InUse())
	}
}

func TestChanPool_CanceledContextDoesNotTakeFreeSlot(t *testing.T) {
	p := NewChanPool(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := p.Acquire(ctx); ok {
		t.Fatalf("expected canceled ctx to be rejected")
	}
	if p.InUse() != 0 {
		t.Fatalf("expected no slot in use, got %d", p.InUse())
	}
}
