package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
)

func TestUpstashRedisStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	got, err := store.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "storeflow:thread:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "storeflow:thread:abc")
	}
}

func TestUpstashRedisStoreRedisKeyEmptyThread(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	_, err := store.redisKey("   ")
	if !errors.Is(err, ErrInvalidThread) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidThread", err)
	}
}

func TestUpstashRedisStoreSaveSendsSetWithTTL(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithTTL(time.Hour),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	conv := NewConversation("thread-1", "cust-1", time.Now().UTC())
	conv.Append(schema.UserMessage("hello"))
	if err := store.Save(context.Background(), conv); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(gotCommand) != 5 {
		t.Fatalf("command = %#v, want SET key payload EX seconds", gotCommand)
	}
	if gotCommand[0] != "SET" || gotCommand[1] != "storeflow:thread:thread-1" {
		t.Fatalf("command head = %v %v", gotCommand[0], gotCommand[1])
	}
	if gotCommand[3] != "EX" || gotCommand[4] != float64(3600) {
		t.Fatalf("command ttl = %v %v", gotCommand[3], gotCommand[4])
	}

	payload, ok := gotCommand[2].(string)
	if !ok {
		t.Fatalf("payload type = %T", gotCommand[2])
	}
	var stored Conversation
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		t.Fatalf("payload is not a conversation: %v", err)
	}
	if stored.ThreadID != "thread-1" || len(stored.Messages) != 1 {
		t.Fatalf("stored conversation = %+v", stored)
	}
}

func TestUpstashRedisStoreSaveRejectsTornHistory(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid conversation must not reach redis")
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	conv := NewConversation("thread-1", "cust-1", time.Now().UTC())
	conv.Append(&schema.Message{
		Role:      schema.Assistant,
		ToolCalls: []schema.ToolCall{{ID: "call-1", Function: schema.FunctionCall{Name: "create_order"}}},
	})

	if err := store.Save(context.Background(), conv); !errors.Is(err, ErrHistoryTorn) {
		t.Fatalf("Save() error = %v, want ErrHistoryTorn", err)
	}
}

func TestUpstashRedisStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	conv := NewConversation("thread-1", "cust-1", time.Now().UTC())
	conv.Append(schema.UserMessage("order a mug"))
	conv.Append(&schema.Message{
		Role:      schema.Assistant,
		ToolCalls: []schema.ToolCall{{ID: "call-1", Function: schema.FunctionCall{Name: "create_order"}}},
	})
	conv.Pending = &PendingToolCall{
		Call:        conv.Messages[1].ToolCalls[0],
		RequestedAt: time.Now().UTC(),
	}

	encoded, err := json.Marshal(conv)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Upstash wraps the stored string in a JSON result field.
		resp, _ := json.Marshal(map[string]string{"result": string(encoded)})
		w.Write(resp)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	loaded, err := store.Load(context.Background(), "thread-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.IsPaused() {
		t.Fatal("loaded conversation lost its pending call")
	}
	if loaded.Pending.Call.ID != "call-1" {
		t.Fatalf("loaded pending call id = %q", loaded.Pending.Call.ID)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("loaded history length = %d", len(loaded.Messages))
	}
}

func TestUpstashRedisStoreLoadNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
}

func TestUpstashRedisStoreSendsBearerToken(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"result":1}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "secret-token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	if err := store.Delete(context.Background(), "thread-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestNewUpstashRedisStoreValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "", Token: "t"}); err == nil {
		t.Fatal("empty url must be rejected")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://example.upstash.io", Token: "  "}); err == nil {
		t.Fatal("empty token must be rejected")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "://bad", Token: "t"}); err == nil {
		t.Fatal("malformed url must be rejected")
	}
}
