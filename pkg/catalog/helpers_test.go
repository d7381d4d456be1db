package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/square-catalog-cache/internal/testutil"
	"github.com/Sternrassler/square-catalog-cache/pkg/cache"
	"github.com/Sternrassler/square-catalog-cache/pkg/kv"
	"github.com/Sternrassler/square-catalog-cache/pkg/notify"
	"github.com/Sternrassler/square-catalog-cache/pkg/square"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const testLocation = "LOC-MAIN"

// recordingStore wraps a LeaseStore, counting writes and optionally failing
// writes to one key.
type recordingStore struct {
	kv.LeaseStore

	mu      sync.Mutex
	puts    map[string]int
	failKey string
}

func (s *recordingStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	fail := key == s.failKey
	if !fail {
		if s.puts == nil {
			s.puts = map[string]int{}
		}
		s.puts[key]++
	}
	s.mu.Unlock()

	if fail {
		return kv.ErrStoreUnavailable
	}
	return s.LeaseStore.Put(ctx, key, value)
}

func (s *recordingStore) putCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[key]
}

// countingNotifier counts delivered events.
type countingNotifier struct {
	calls atomic.Int32
	err   error
}

func (c *countingNotifier) Name() string { return "counting" }

func (c *countingNotifier) Notify(context.Context, notify.Event) error {
	c.calls.Add(1)
	return c.err
}

type testEnv struct {
	mr         *miniredis.Miniredis
	store      *recordingStore
	mock       *testutil.MockSquare
	client     *square.Client
	manager    *cache.Manager
	resolver   *Resolver
	notifier   *countingNotifier
	reconciler *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	mock := testutil.NewMockSquare()
	t.Cleanup(mock.Close)

	cfg := square.DefaultConfig("test-token")
	cfg.BaseURL = mock.URL()
	cfg.Timeout = 5 * time.Second
	client, err := square.New(cfg)
	if err != nil {
		t.Fatalf("square.New: %v", err)
	}

	store := &recordingStore{LeaseStore: kv.NewRedisStore(rdb)}
	manager := cache.NewManager(store, zerolog.Nop())

	resolver, err := NewResolver(store, client, DefaultResolverConfig(testLocation), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	notifier := &countingNotifier{}
	reconciler := NewReconciler(client, resolver, manager, notifier, zerolog.Nop())

	return &testEnv{
		mr:         mr,
		store:      store,
		mock:       mock,
		client:     client,
		manager:    manager,
		resolver:   resolver,
		notifier:   notifier,
		reconciler: reconciler,
	}
}

// storedString returns the raw value of key, or "" when absent.
func (e *testEnv) storedString(key cache.Key) string {
	v, err := e.mr.Get(key.String())
	if errors.Is(err, miniredis.ErrKeyNotFound) {
		return ""
	}
	return v
}
