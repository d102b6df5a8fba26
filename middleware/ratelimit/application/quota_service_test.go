package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/middleware/ratelimit/domain"
)

type putCall struct {
	key string
	raw string
	ttl time.Duration
}

type fakeQuotaStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   []putCall
	getErr error
	putErr error
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{data: make(map[string][]byte)}
}

func (s *fakeQuotaStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeQuotaStore) Put(_ context.Context, key string, raw []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.data[key] = append([]byte(nil), raw...)
	s.puts = append(s.puts, putCall{key: key, raw: string(raw), ttl: ttl})
	return nil
}

func (s *fakeQuotaStore) record(t *testing.T, key string) domain.UsageRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	require.True(t, ok, "expected record for %s", key)
	rec, err := domain.DecodeUsage(raw)
	require.NoError(t, err)
	return rec
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newQuotaService(store domain.QuotaStore, clock *fakeClock, limit int, window time.Duration) QuotaService {
	return QuotaService{
		Store:  store,
		Policy: domain.QuotaPolicy{Limit: limit, Window: window},
		Now:    clock.Now,
	}
}

func TestQuotaService_FirstCallCreatesWindow(t *testing.T) {
	store := newFakeQuotaStore()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	svc := newQuotaService(store, clock, 10, 24*time.Hour)

	dec, err := svc.CheckAndIncrement(context.Background(), "anon_1.2.3.4")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 9, dec.Remaining)

	rec := store.record(t, "rate_limit:anon_1.2.3.4")
	assert.Equal(t, int64(1), rec.Count)
	assert.True(t, rec.WindowStart.Equal(clock.now))

	require.Len(t, store.puts, 1)
	assert.Equal(t, 24*time.Hour, store.puts[0].ttl)
	assert.JSONEq(t, `{"count":1,"lastReset":1700000000000}`, store.puts[0].raw)
}

func TestQuotaService_CountsUpToLimit(t *testing.T) {
	store := newFakeQuotaStore()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	svc := newQuotaService(store, clock, 5, time.Hour)

	for i := 1; i <= 5; i++ {
		dec, err := svc.CheckAndIncrement(context.Background(), "anon_a")
		require.NoError(t, err)
		require.True(t, dec.Allowed, "call %d", i)
		assert.Equal(t, int64(i), store.record(t, "rate_limit:anon_a").Count)
		clock.Advance(time.Minute)
	}
}

func TestQuotaService_IncrementWritesRemainingTTL(t *testing.T) {
	store := newFakeQuotaStore()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	svc := newQuotaService(store, clock, 5, time.Hour)

	_, err := svc.CheckAndIncrement(context.Background(), "anon_a")
	require.NoError(t, err)

	clock.Advance(20*time.Minute + 500*time.Millisecond)
	_, err = svc.CheckAndIncrement(context.Background(), "anon_a")
	require.NoError(t, err)

	require.Len(t, store.puts, 2)
	// 39m59.5s restantes, arredondado para cima
	assert.Equal(t, 40*time.Minute, store.puts[1].ttl)
}

func TestQuotaService_RejectsAfterLimit(t *testing.T) {
	store := newFakeQuotaStore()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	svc := newQuotaService(store, clock, 10, 24*time.Hour)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		dec, err := svc.CheckAndIncrement(ctx, "anon_1.2.3.4")
		require.NoError(t, err)
		require.True(t, dec.Allowed)
	}

	clock.Advance(time.Hour)
	dec, err := svc.CheckAndIncrement(ctx, "anon_1.2.3.4")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 23*time.Hour, dec.RetryAfter)
	assert.Equal(t, 0, dec.Remaining)
	assert.Contains(t, dec.Message, "10 prompts")
	assert.Contains(t, dec.Message, "24 hours")
	assert.Contains(t, dec.Message, "approximately 23 hr.")

	// rejeição não grava nada
	assert.Len(t, store.puts, 10)
	assert.Equal(t, int64(10), store.record(t, "rate_limit:anon_1.2.3.4").Count)
}

func TestQuotaService_WindowExpiryResetsCount(t *testing.T) {
	store := newFakeQuotaStore()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	svc := newQuotaService(store, clock, 2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CheckAndIncrement(ctx, "anon_a")
		require.NoError(t, err)
	}

	clock.Advance(time.Hour + time.Millisecond)
	dec, err := svc.CheckAndIncrement(ctx, "anon_a")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	rec := store.record(t, "rate_limit:anon_a")
	assert.Equal(t, int64(1), rec.Count)
	assert.True(t, rec.WindowStart.Equal(clock.now))
}

func TestQuotaService_ExactWindowBoundaryIsStillSameWindow(t *testing.T) {
	store := newFakeQuotaStore()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	svc := newQuotaService(store, clock, 1, time.Hour)
	ctx := context.Background()

	_, err := svc.CheckAndIncrement(ctx, "anon_a")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	dec, err := svc.CheckAndIncrement(ctx, "anon_a")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, "less than a minute", FormatRemaining(dec.RetryAfter))
}

func TestQuotaService_CorruptRecordResetsWindow(t *testing.T) {
	cases := map[string]string{
		"truncated":      `{"count": 3, "lastRe`,
		"not json":       `garbage`,
		"missing field":  `{"count": 3}`,
		"negative count": `{"count": -1, "lastReset": 1700000000000}`,
		"wrong type":     `{"count": "3", "lastReset": 1700000000000}`,
		"empty":          ``,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			store := newFakeQuotaStore()
			store.data["rate_limit:anon_a"] = []byte(raw)
			clock := &fakeClock{now: time.UnixMilli(1_700_000_100_000)}
			svc := newQuotaService(store, clock, 10, time.Hour)

			dec, err := svc.CheckAndIncrement(context.Background(), "anon_a")
			require.NoError(t, err)
			assert.True(t, dec.Allowed)

			rec := store.record(t, "rate_limit:anon_a")
			assert.Equal(t, int64(1), rec.Count)
			assert.True(t, rec.WindowStart.Equal(clock.now))
		})
	}
}

func TestQuotaService_FutureWindowStartIsDiscarded(t *testing.T) {
	store := newFakeQuotaStore()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	future := clock.now.Add(48 * time.Hour)
	raw, err := domain.EncodeUsage(domain.UsageRecord{Count: 10, WindowStart: future})
	require.NoError(t, err)
	store.data["rate_limit:anon_a"] = raw

	svc := newQuotaService(store, clock, 10, 24*time.Hour)
	dec, err := svc.CheckAndIncrement(context.Background(), "anon_a")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(1), store.record(t, "rate_limit:anon_a").Count)
}

func TestQuotaService_SmallSkewKeepsTTLWithinWindow(t *testing.T) {
	store := newFakeQuotaStore()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	raw, err := domain.EncodeUsage(domain.UsageRecord{Count: 1, WindowStart: clock.now.Add(10 * time.Minute)})
	require.NoError(t, err)
	store.data["rate_limit:anon_a"] = raw

	svc := newQuotaService(store, clock, 10, time.Hour)
	dec, err := svc.CheckAndIncrement(context.Background(), "anon_a")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	require.Len(t, store.puts, 1)
	assert.Equal(t, time.Hour, store.puts[0].ttl)
}

func TestQuotaService_StoreErrorsWrapUnavailable(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")

	t.Run("get", func(t *testing.T) {
		store := newFakeQuotaStore()
		store.getErr = boom
		svc := newQuotaService(store, &fakeClock{now: time.Now()}, 10, time.Hour)

		_, err := svc.CheckAndIncrement(context.Background(), "anon_a")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("put", func(t *testing.T) {
		store := newFakeQuotaStore()
		store.putErr = boom
		svc := newQuotaService(store, &fakeClock{now: time.Now()}, 10, time.Hour)

		_, err := svc.CheckAndIncrement(context.Background(), "anon_a")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	})
}

func TestQuotaService_IdentitiesAreIndependent(t *testing.T) {
	store := newFakeQuotaStore()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	svc := newQuotaService(store, clock, 1, time.Hour)
	ctx := context.Background()

	dec, err := svc.CheckAndIncrement(ctx, "anon_a")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	dec, err = svc.CheckAndIncrement(ctx, "anon_a_fp")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	dec, err = svc.CheckAndIncrement(ctx, "anon_a")
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestQuotaService_NilStoreAllows(t *testing.T) {
	dec, err := QuotaService{}.CheckAndIncrement(context.Background(), "anon_a")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestTTLSeconds(t *testing.T) {
	assert.Equal(t, time.Second, TTLSeconds(0, time.Hour))
	assert.Equal(t, time.Second, TTLSeconds(10*time.Millisecond, time.Hour))
	assert.Equal(t, 2*time.Second, TTLSeconds(1001*time.Millisecond, time.Hour))
	assert.Equal(t, time.Hour, TTLSeconds(2*time.Hour, time.Hour))
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "less than a minute"},
		{59 * time.Second, "less than a minute"},
		{time.Minute, "1 mins"},
		{61 * time.Second, "2 mins"},
		{time.Hour, "1 hr"},
		{time.Hour + 5*time.Minute, "1 hr 5 mins"},
		{time.Hour + 4*time.Minute + time.Second, "1 hr 5 mins"},
		{23 * time.Hour, "23 hr"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatRemaining(tc.in), "input %s", tc.in)
	}
}

func TestExceededMessage(t *testing.T) {
	msg := ExceededMessage(domain.QuotaPolicy{Limit: 10, Window: 24 * time.Hour}, 23*time.Hour)
	assert.Equal(t,
		"Rate limit exceeded. You have used 10 prompts in the last 24 hours. Please try again in approximately 23 hr.",
		msg)
	assert.True(t, strings.HasPrefix(ExceededMessage(domain.QuotaPolicy{Limit: 3, Window: 90 * time.Minute}, 0), "Rate limit exceeded. You have used 3 prompts in the last 1.5 hours."))
}
