package core

import (
	"context"
	"encoding/json"
	"testing"
)

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("What's on my schedule today?")

	if len(msgs) != 2 {
		t.Fatalf("BuildMessages() returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != "You are TimeFlow, an AI day-planner." {
		t.Errorf("first message = %+v, want system instruction", msgs[0])
	}
	if msgs[1].Role != RoleUser || msgs[1].Content != "What's on my schedule today?" {
		t.Errorf("second message = %+v, want user prompt", msgs[1])
	}
}

func TestCompletionResponse_UsagePassthrough(t *testing.T) {
	usage := json.RawMessage(`{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42,"prompt_tokens_details":{"cached_tokens":0}}`)
	b, err := json.Marshal(CompletionResponse{Content: "hi", Usage: usage})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"content":"hi","usage":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42,"prompt_tokens_details":{"cached_tokens":0}}}`
	if string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}
}

func TestCompletionResponse_NilUsageIsNull(t *testing.T) {
	b, err := json.Marshal(CompletionResponse{Content: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `{"content":"hi","usage":null}` {
		t.Errorf("Marshal() = %s", b)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" {
		t.Error("expected empty request ID on bare context")
	}
	if GetIdentity(ctx) != nil {
		t.Error("expected nil identity on bare context")
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithIdentity(ctx, &Identity{UID: "user-1", Provider: "firebase"})

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q, want req-1", got)
	}
	if got := GetIdentity(ctx); got == nil || got.UID != "user-1" {
		t.Errorf("GetIdentity() = %+v, want uid user-1", got)
	}
}
