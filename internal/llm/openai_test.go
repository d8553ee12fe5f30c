package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Errorf("got %d messages, want 2", len(req.Messages))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"created": 1700000000,
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Your account is active."},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL, nil)
	resp, err := c.Chat(context.Background(), "gpt-4o-mini", []Message{
		{Role: "system", Content: "You are a helpful agent."},
		{Role: "user", Content: "Is my account active?"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if resp.Message.Content != "Your account is active." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.InputTokens != 42 || resp.OutputTokens != 7 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if !resp.Done {
		t.Error("Done = false")
	}
}

func TestOpenAIChatToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-2",
			"model": "gpt-4o-mini",
			"created": 1700000000,
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {
							"name": "fetch_account_details",
							"arguments": "{\"account_id\": \"A-1\"}"
						}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL, nil)
	resp, err := c.Chat(context.Background(), "gpt-4o-mini", []Message{
		{Role: "user", Content: "show my account"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "call_abc" || tc.Function.Name != "fetch_account_details" {
		t.Errorf("tool call = %+v", tc)
	}
	if got := tc.Function.Arguments["account_id"]; got != "A-1" {
		t.Errorf("account_id argument = %v", got)
	}
}

func TestOpenAIChatToolResultRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		// The assistant turn carries its tool call with arguments
		// re-encoded as a JSON string.
		if len(req.Messages) != 3 {
			t.Fatalf("got %d messages, want 3", len(req.Messages))
		}
		asst := req.Messages[1]
		if len(asst.ToolCalls) != 1 || asst.ToolCalls[0].Function.Arguments != `{"account_id":"A-1"}` {
			t.Errorf("assistant tool calls = %+v", asst.ToolCalls)
		}
		if req.Messages[2].Role != "tool" || req.Messages[2].ToolCallID != "call_abc" {
			t.Errorf("tool message = %+v", req.Messages[2])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"created": 1700000000,
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "done"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL, nil)
	_, err := c.Chat(context.Background(), "gpt-4o-mini", []Message{
		{Role: "user", Content: "show my account"},
		{Role: "assistant", ToolCalls: []ToolCall{{
			ID:       "call_abc",
			Function: FunctionCall{Name: "fetch_account_details", Arguments: map[string]any{"account_id": "A-1"}},
		}}},
		{Role: "tool", Content: `{"success":true}`, ToolCallID: "call_abc"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("bad-key", srv.URL, nil)
	_, err := c.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("Chat() expected error for 401")
	}
}

func TestOpenAIPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL, nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}
