package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"TubeDigest/internal/config"
)

func testClient(endpoint string) *OpenAIClient {
	return NewOpenAIClient(config.OpenAIConfig{
		Endpoint: endpoint,
		Model:    "gpt-test",
		APIKey:   "sk-test",
	})
}

func chatReply(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestCompleteSendsMessagesAndStripsFences(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(chatReply("```json\n{\"ok\":true}\n```")))
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).Complete(context.Background(), "be terse", "summarize this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("fences not stripped: %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header: %q", gotAuth)
	}
	if gotReq.Model != "gpt-test" || len(gotReq.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "summarize this" {
		t.Fatalf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestCompleteMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewOpenAIClient(config.OpenAIConfig{})
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error for empty configuration")
	}
}

func TestCompleteAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"bad model"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error on 400 response")
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\nhello\n```", "hello"},
		{"  \n```json\n{}\n```\n  ", "{}"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StripFences(tc.in); got != tc.want {
			t.Fatalf("StripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
