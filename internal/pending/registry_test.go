package pending

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/copperline/barback/internal/domain"
)

func testAction(messageID string) *domain.PendingAction {
	return &domain.PendingAction{
		MessageID: messageID,
		Type:      domain.ActionUpdateMenu,
		Payload:   json.RawMessage(`{"old":"margarita","new":"paloma"}`),
		Summary:   "swap margarita for paloma",
		CreatedAt: time.Now(),
	}
}

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Put(ctx, testAction("m1")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	a, err := m.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if a == nil || a.Summary != "swap margarita for paloma" {
		t.Fatalf("Get() = %+v, want stored action", a)
	}

	if err := m.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	a, err = m.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get() after delete error: %v", err)
	}
	if a != nil {
		t.Error("Get() after delete should return nil")
	}
}

func TestMemory_GetAbsent(t *testing.T) {
	a, err := NewMemory().Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if a != nil {
		t.Errorf("Get() on empty registry = %+v, want nil", a)
	}
}

func TestMemory_ExpiredEntryIsAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Now()
	m.now = func() time.Time { return now }
	if err := m.Put(ctx, testAction("m1")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	// One minute past the TTL.
	m.now = func() time.Time { return now.Add(TTL + time.Minute) }

	a, err := m.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if a != nil {
		t.Errorf("expired entry should read as absent, got %+v", a)
	}

	size, _ := m.Size(ctx)
	if size != 0 {
		t.Errorf("Size() = %d after expiry, want 0", size)
	}
}

func TestMemory_OverwriteSameMessage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := testAction("m1")
	if err := m.Put(ctx, first); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	second := testAction("m1")
	second.Summary = "remove old fashioned"
	if err := m.Put(ctx, second); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	a, _ := m.Get(ctx, "m1")
	if a == nil || a.Summary != "remove old fashioned" {
		t.Errorf("Get() = %+v, want the overwritten action", a)
	}
}

func TestRedis_PutGetDelete(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	r := NewRedis(client)

	if err := r.Put(ctx, testAction("m1")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	a, err := r.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if a == nil || a.Type != domain.ActionUpdateMenu {
		t.Fatalf("Get() = %+v, want stored action", a)
	}

	size, err := r.Size(ctx)
	if err != nil {
		t.Fatalf("Size() error: %v", err)
	}
	if size != 1 {
		t.Errorf("Size() = %d, want 1", size)
	}

	if err := r.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	a, _ = r.Get(ctx, "m1")
	if a != nil {
		t.Error("Get() after delete should return nil")
	}
}

func TestRedis_TTLExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	r := NewRedis(client)

	if err := r.Put(ctx, testAction("m1")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	mr.FastForward(TTL + time.Minute)

	a, err := r.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if a != nil {
		t.Errorf("entry past TTL should read as absent, got %+v", a)
	}
}
