package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	conv := NewConversation("t-1", "cust-1", time.Now().UTC())
	conv.Append(schema.UserMessage("hello"))

	if err := store.Save(context.Background(), conv); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CustomerID != "cust-1" || len(loaded.Messages) != 1 {
		t.Fatalf("loaded = %+v", loaded)
	}

	// Mutating the loaded copy must not leak into the stored snapshot.
	loaded.Append(schema.UserMessage("tampered"))
	again, err := store.Load(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(again.Messages) != 1 {
		t.Fatalf("stored snapshot mutated, history length = %d", len(again.Messages))
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	conv := NewConversation("t-1", "cust-1", time.Now().UTC())
	if err := store.Save(context.Background(), conv); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(context.Background(), "t-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(context.Background(), "t-1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() after delete error = %v, want ErrStateNotFound", err)
	}
}
