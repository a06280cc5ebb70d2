package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	store, _ := newRedisTestStoreTTL(t, 0)
	return store
}

func newRedisTestStoreTTL(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl, nil), mr
}

func TestRedisStoreAppliesConfiguredTTL(t *testing.T) {
	store, mr := newRedisTestStoreTTL(t, 2*time.Hour)
	ctx := context.Background()

	if _, err := store.LoadOrCreate(ctx, "sess-ttl"); err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if got := mr.TTL(sessionKey("sess-ttl")); got != 2*time.Hour {
		t.Fatalf("expected 2h TTL on create, got %v", got)
	}

	if _, err := store.Commit(ctx, "sess-ttl", 0, Patch{Stage: StageInformationCollection}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := mr.TTL(sessionKey("sess-ttl")); got != 2*time.Hour {
		t.Fatalf("expected commit to refresh the 2h TTL, got %v", got)
	}
}

func TestRedisStoreDefaultTTLWhenUnset(t *testing.T) {
	store, mr := newRedisTestStoreTTL(t, 0)

	if _, err := store.LoadOrCreate(context.Background(), "sess-1"); err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if got := mr.TTL(sessionKey("sess-1")); got != defaultSessionTTL {
		t.Fatalf("expected the 24h default TTL, got %v", got)
	}
}

func TestRedisStoreLoadOrCreate(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	first, err := store.LoadOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if first.Stage != StageInitiation || first.Generation != 0 {
		t.Fatalf("fresh session should start at initiation gen 0, got %s gen %d", first.Stage, first.Generation)
	}

	if _, err := store.Commit(ctx, "sess-1", 0, Patch{Stage: StageInformationCollection}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	again, err := store.LoadOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if again.Stage != StageInformationCollection || again.Generation != 1 {
		t.Fatalf("expected stored session back, got %s gen %d", again.Stage, again.Generation)
	}
}

func TestRedisStoreGetUnknownSession(t *testing.T) {
	store := newRedisTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStoreCommitRoundTrip(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	if _, err := store.LoadOrCreate(ctx, "sess-1"); err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}

	committed, err := store.Commit(ctx, "sess-1", 0, Patch{
		Stage:    StageInformationCollection,
		Data:     CollectedData{CustomerName: "Rajesh Kumar", RequestedAmount: 450_000},
		AddTasks: []string{TaskCollectDetails},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", committed.Generation)
	}

	loaded, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Collected.CustomerName != "Rajesh Kumar" || loaded.Collected.RequestedAmount != 450_000 {
		t.Fatalf("collected data not persisted: %+v", loaded.Collected)
	}
	if !loaded.TaskPending(TaskCollectDetails) {
		t.Fatalf("pending task not persisted")
	}
}

func TestRedisStoreCommitRejectsStaleGeneration(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	snap, err := store.LoadOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}

	if _, err := store.Commit(ctx, "sess-1", snap.Generation, Patch{Data: CollectedData{CustomerName: "Rajesh Kumar"}}); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	_, err = store.Commit(ctx, "sess-1", snap.Generation, Patch{Data: CollectedData{CustomerName: "Someone Else"}})
	if !errors.Is(err, ErrStaleCommit) {
		t.Fatalf("expected ErrStaleCommit, got %v", err)
	}

	loaded, _ := store.Get(ctx, "sess-1")
	if loaded.Collected.CustomerName != "Rajesh Kumar" {
		t.Fatalf("stale commit leaked into redis: %q", loaded.Collected.CustomerName)
	}
}

func TestRedisStoreCommitUnknownSession(t *testing.T) {
	store := newRedisTestStore(t)

	_, err := store.Commit(context.Background(), "nope", 0, Patch{Stage: StageVerification})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStoreResetInvalidatesInFlightCommit(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	snap, err := store.LoadOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}

	reset, err := store.Reset(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reset.Stage != StageInitiation || reset.Generation != snap.Generation+1 {
		t.Fatalf("unexpected reset state: stage %s gen %d", reset.Stage, reset.Generation)
	}

	_, err = store.Commit(ctx, "sess-1", snap.Generation, Patch{Stage: StageUnderwriting})
	if !errors.Is(err, ErrStaleCommit) {
		t.Fatalf("expected ErrStaleCommit after reset, got %v", err)
	}
}

func TestRedisStoreResetPreservesErrors(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	if _, err := store.LoadOrCreate(ctx, "sess-1"); err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if _, err := store.Commit(ctx, "sess-1", 0, Patch{
		Data:   CollectedData{CustomerName: "Rajesh Kumar"},
		Errors: []ErrorEntry{{Kind: "handler_failure", Detail: "boom"}},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reset, err := store.Reset(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reset.Collected.CustomerName != "" {
		t.Fatalf("expected collected data wiped, got %q", reset.Collected.CustomerName)
	}
	if len(reset.Errors) != 1 {
		t.Fatalf("expected error history preserved, got %d entries", len(reset.Errors))
	}
}

func TestRedisStoreResetCreatesMissingSession(t *testing.T) {
	store := newRedisTestStore(t)

	reset, err := store.Reset(context.Background(), "sess-new")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reset.Stage != StageInitiation {
		t.Fatalf("expected initiation, got %s", reset.Stage)
	}
}

func TestRedisStoreSessions(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	if _, err := store.LoadOrCreate(ctx, "sess-a"); err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if _, err := store.LoadOrCreate(ctx, "sess-b"); err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if _, err := store.Commit(ctx, "sess-b", 0, Patch{
		Stage: StageVerification,
		Data:  CollectedData{CustomerName: "Rajesh Kumar"},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	summaries, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(summaries))
	}

	byID := make(map[string]SessionSummary, len(summaries))
	for _, s := range summaries {
		byID[s.SessionID] = s
	}
	if byID["sess-b"].Stage != StageVerification || byID["sess-b"].CustomerName != "Rajesh Kumar" {
		t.Fatalf("summary for sess-b wrong: %+v", byID["sess-b"])
	}
	if byID["sess-a"].Stage != StageInitiation {
		t.Fatalf("summary for sess-a wrong: %+v", byID["sess-a"])
	}
}
