package caching_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keygate/license-service/internal/caching"
	"github.com/keygate/license-service/internal/ports"
)

// fakeRepo is an in-memory ports.CacheRepository that tracks refreshes and
// delivers published messages to in-process subscribers.
type fakeRepo struct {
	mu        sync.Mutex
	entries   map[string][]byte
	refreshed map[string]int
	handlers  []func([]byte)
	fail      bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		entries:   map[string][]byte{},
		refreshed: map[string]int{},
	}
}

func (r *fakeRepo) err() error {
	if r.fail {
		return fmt.Errorf("repo down")
	}
	return nil
}

func (r *fakeRepo) Get(_ context.Context, key string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.err(); err != nil {
		return nil, false, err
	}
	raw, ok := r.entries[key]
	return raw, ok, nil
}

func (r *fakeRepo) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.err(); err != nil {
		return err
	}
	r.entries[key] = value
	return nil
}

func (r *fakeRepo) Remove(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.err(); err != nil {
		return err
	}
	for _, key := range keys {
		delete(r.entries, key)
	}
	return nil
}

func (r *fakeRepo) Exists(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok, r.err()
}

func (r *fakeRepo) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.err(); err != nil {
		return 0, err
	}
	current, _ := strconv.ParseInt(strings.TrimSpace(string(r.entries[key])), 10, 64)
	current++
	r.entries[key] = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

func (r *fakeRepo) Refresh(_ context.Context, key string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.err(); err != nil {
		return err
	}
	r.refreshed[key]++
	return nil
}

func (r *fakeRepo) Publish(_ context.Context, _ string, payload []byte) error {
	r.mu.Lock()
	handlers := append([]func([]byte){}, r.handlers...)
	err := r.err()
	r.mu.Unlock()
	if err != nil {
		return err
	}
	for _, handler := range handlers {
		handler(payload)
	}
	return nil
}

func (r *fakeRepo) Subscribe(ctx context.Context, _ string, handler func(payload []byte)) error {
	r.mu.Lock()
	r.handlers = append(r.handlers, handler)
	r.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (r *fakeRepo) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

func (r *fakeRepo) handlerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

func (r *fakeRepo) firstHandler() func([]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers[0]
}

type payload struct {
	Name string `json:"name"`
}

func TestPointRoundTripSlidesExpiry(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	coord := caching.NewCoordinator(repo, caching.Config{}, nil)
	ctx := context.Background()

	coord.SetPoint(ctx, "license", "abc", payload{Name: "one"})

	var got payload
	if !coord.GetPoint(ctx, "license", "abc", &got) {
		t.Fatalf("expected point hit")
	}
	if got.Name != "one" {
		t.Fatalf("unexpected value: %+v", got)
	}
	if repo.refreshed[caching.PointKey("license", "abc")] != 1 {
		t.Fatalf("hit should slide the entry's expiry")
	}

	if coord.GetPoint(ctx, "license", "missing", &got) {
		t.Fatalf("expected miss for unknown id")
	}
}

func TestInvalidatePointEvictsAndPublishes(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	coord := caching.NewCoordinator(repo, caching.Config{}, nil)
	ctx := context.Background()

	// A second coordinator on the same bus models a peer instance.
	peerRepo := newFakeRepo()
	peer := caching.NewCoordinator(peerRepo, caching.Config{}, nil)
	peerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = peer.Run(peerCtx)
	}()
	// Bridge: deliveries on repo's bus evict from peerRepo.
	for peerRepo.handlerCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	bridge := peerRepo.firstHandler()
	repo.mu.Lock()
	repo.handlers = append(repo.handlers, bridge)
	repo.mu.Unlock()

	coord.SetPoint(ctx, "license", "abc", payload{Name: "one"})
	peer.SetPoint(ctx, "license", "abc", payload{Name: "one"})

	coord.InvalidatePoint(ctx, "license", "abc")

	var got payload
	if coord.GetPoint(ctx, "license", "abc", &got) {
		t.Fatalf("local entry should be evicted")
	}
	if peerRepo.has(caching.PointKey("license", "abc")) {
		t.Fatalf("peer entry should be evicted via the relay")
	}

	cancel()
	<-done
}

func TestVersionBumpUnreachesEveryCachedList(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	coord := caching.NewCoordinator(repo, caching.Config{}, nil)
	ctx := context.Background()

	coord.SetList(ctx, "licenses", "sig-a", []payload{{Name: "a"}})
	coord.SetList(ctx, "licenses", "sig-b", []payload{{Name: "b"}})

	var got []payload
	if !coord.GetList(ctx, "licenses", "sig-a", &got) || !coord.GetList(ctx, "licenses", "sig-b", &got) {
		t.Fatalf("expected hits before the bump")
	}

	coord.BumpListVersion(ctx, "licenses")

	if coord.GetList(ctx, "licenses", "sig-a", &got) || coord.GetList(ctx, "licenses", "sig-b", &got) {
		t.Fatalf("one bump must unreach every cached list of the kind")
	}

	// Old entries are orphaned, not deleted: they age out via TTL.
	if !repo.has("licenses:v0:sig-a") {
		t.Fatalf("orphaned entry should still exist until its TTL")
	}

	// A fresh write lands under the new version and hits again.
	coord.SetList(ctx, "licenses", "sig-a", []payload{{Name: "a2"}})
	if !coord.GetList(ctx, "licenses", "sig-a", &got) {
		t.Fatalf("expected hit under the bumped version")
	}
	if got[0].Name != "a2" {
		t.Fatalf("unexpected value after rebuild: %+v", got)
	}
}

func TestMissingVersionCounterReadsAsZero(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	coord := caching.NewCoordinator(repo, caching.Config{}, nil)
	ctx := context.Background()

	coord.SetList(ctx, "licenses", "sig", []payload{{Name: "x"}})
	if !repo.has("licenses:v0:sig") {
		t.Fatalf("a missing counter must read as version 0")
	}
	coord.BumpListVersion(ctx, "licenses")
	coord.SetList(ctx, "licenses", "sig", []payload{{Name: "y"}})
	if !repo.has("licenses:v1:sig") {
		t.Fatalf("first bump must move writes to version 1")
	}
}

func TestCacheTroubleDegradesToMiss(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.fail = true
	coord := caching.NewCoordinator(repo, caching.Config{}, nil)
	ctx := context.Background()

	var got payload
	if coord.GetPoint(ctx, "license", "abc", &got) {
		t.Fatalf("a failing repo must read as a miss")
	}
	if coord.GetList(ctx, "licenses", "sig", &got) {
		t.Fatalf("a failing repo must read as a list miss")
	}
	// Writes and invalidations must not panic or surface errors.
	coord.SetPoint(ctx, "license", "abc", payload{Name: "x"})
	coord.InvalidatePoint(ctx, "license", "abc")
	coord.BumpListVersion(ctx, "licenses")
}

func TestCorruptEntryIsEvicted(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	coord := caching.NewCoordinator(repo, caching.Config{}, nil)
	ctx := context.Background()

	key := caching.PointKey("license", "abc")
	repo.entries[key] = []byte("{not json")

	var got payload
	if coord.GetPoint(ctx, "license", "abc", &got) {
		t.Fatalf("corrupt entry must read as a miss")
	}
	if repo.has(key) {
		t.Fatalf("corrupt entry should be evicted on read")
	}
}

func TestSignatureIsOrderInsensitive(t *testing.T) {
	t.Parallel()

	a := []ports.Criteria{ports.Eq("status", "ACTIVE"), ports.Eq("user_id", "u1")}
	b := []ports.Criteria{ports.Eq("user_id", "u1"), ports.Eq("status", "ACTIVE")}

	opts := ports.ListOptions{OrderBy: "created_at", Page: 1, PerPage: 20}
	if caching.Signature(a, opts) != caching.Signature(b, opts) {
		t.Fatalf("clause order must not change the signature")
	}

	if caching.Signature(a, opts) == caching.Signature(a, ports.ListOptions{OrderBy: "created_at", Page: 2, PerPage: 20}) {
		t.Fatalf("pagination must change the signature")
	}
	if caching.Signature(a, opts) == caching.Signature(b[:1], opts) {
		t.Fatalf("different filters must not share a signature")
	}
}

func TestRelayIgnoresMalformedMessages(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	coord := caching.NewCoordinator(repo, caching.Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = coord.Run(ctx)
	}()
	for repo.handlerCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	coord.SetPoint(ctx, "license", "abc", payload{Name: "x"})

	deliver := repo.firstHandler()
	deliver([]byte("garbage"))
	empty, _ := json.Marshal(map[string]string{"key": ""})
	deliver(empty)

	var got payload
	if !coord.GetPoint(ctx, "license", "abc", &got) {
		t.Fatalf("malformed relay messages must not evict entries")
	}

	cancel()
	<-done
}
