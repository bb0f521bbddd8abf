package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/logging"
)

type captured struct {
	contentType string
	body        []byte
}

func captureServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{contentType: r.Header.Get("Content-Type"), body: body})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func testNotice() domain.Notice {
	return domain.Notice{
		SourceName: "Some Channel",
		Item:       domain.Item{ID: "vid00000001", Title: "A Video"},
		Summary: domain.Summary{
			ItemID:   "vid00000001",
			Title:    "A Video",
			Points:   []string{"first point", "second point"},
			Mentions: []string{"Someone"},
			Verdict:  "watch it",
			Text:     "A paragraph.",
		},
		Transcript: "the transcript text",
	}
}

func TestDispatchUploadsEmbed(t *testing.T) {
	t.Parallel()

	server, got := captureServer(t, http.StatusNoContent)
	n := NewNotifier(map[string]string{"uploads": server.URL}, logging.Discard())

	results := n.Dispatch(context.Background(), []string{"uploads"}, testNotice())
	if len(results) != 1 || !results[0].Delivered {
		t.Fatalf("unexpected results: %+v", results)
	}

	var msg webhookMessage
	if err := json.Unmarshal((*got)[0].body, &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(msg.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(msg.Embeds))
	}
	e := msg.Embeds[0]
	if e.Title != "A Video" || e.URL != "https://www.youtube.com/watch?v=vid00000001" {
		t.Fatalf("unexpected embed: %+v", e)
	}
	if e.Thumbnail == nil || !strings.Contains(e.Thumbnail.URL, "vid00000001") {
		t.Fatalf("missing thumbnail: %+v", e.Thumbnail)
	}
	if !strings.Contains(e.Description, "Some Channel") {
		t.Fatalf("channel name missing: %q", e.Description)
	}
}

func TestDispatchTranscriptAttachment(t *testing.T) {
	t.Parallel()

	server, got := captureServer(t, http.StatusOK)
	n := NewNotifier(map[string]string{"transcripts": server.URL}, logging.Discard())

	results := n.Dispatch(context.Background(), []string{"transcripts"}, testNotice())
	if !results[0].Delivered {
		t.Fatalf("delivery failed: %+v", results[0])
	}

	req := (*got)[0]
	if !strings.HasPrefix(req.contentType, "multipart/form-data") {
		t.Fatalf("expected multipart, got %s", req.contentType)
	}
	body := string(req.body)
	if !strings.Contains(body, `name="payload_json"`) {
		t.Fatal("payload_json part missing")
	}
	if !strings.Contains(body, `filename="A_Video.txt"`) {
		t.Fatalf("attachment filename wrong: %s", body)
	}
	if !strings.Contains(body, "the transcript text") {
		t.Fatal("transcript content missing")
	}
}

func TestDispatchSummaryFields(t *testing.T) {
	t.Parallel()

	server, got := captureServer(t, http.StatusNoContent)
	n := NewNotifier(map[string]string{"summaries": server.URL}, logging.Discard())

	n.Dispatch(context.Background(), []string{"summaries"}, testNotice())

	var msg webhookMessage
	if err := json.Unmarshal((*got)[0].body, &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	e := msg.Embeds[0]
	if e.Description != "A paragraph." {
		t.Fatalf("summary text missing: %q", e.Description)
	}

	fields := map[string]string{}
	for _, f := range e.Fields {
		fields[f.Name] = f.Value
	}
	if fields["Verdict"] != "watch it" {
		t.Fatalf("verdict field wrong: %v", fields)
	}
	if !strings.Contains(fields["Key points"], "first point") {
		t.Fatalf("points field wrong: %v", fields)
	}
	if fields["Notable mentions"] != "Someone" {
		t.Fatalf("mentions field wrong: %v", fields)
	}
}

func TestDispatchReportSplitsLongDigest(t *testing.T) {
	t.Parallel()

	server, got := captureServer(t, http.StatusNoContent)
	n := NewNotifier(map[string]string{"report": server.URL}, logging.Discard())

	lines := make([]string, 60)
	for i := range lines {
		lines[i] = strings.Repeat("x", 50)
	}
	notice := domain.Notice{Digest: strings.Join(lines, "\n")}

	results := n.Dispatch(context.Background(), []string{"report"}, notice)
	if !results[0].Delivered {
		t.Fatalf("delivery failed: %+v", results[0])
	}
	if len(*got) < 2 {
		t.Fatalf("expected the digest split into multiple posts, got %d", len(*got))
	}
	for _, req := range *got {
		var msg webhookMessage
		if err := json.Unmarshal(req.body, &msg); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(msg.Content) > maxContentLen {
			t.Fatalf("content over limit: %d", len(msg.Content))
		}
	}
}

func TestDispatchUnconfiguredChannel(t *testing.T) {
	t.Parallel()

	n := NewNotifier(map[string]string{}, logging.Discard())
	results := n.Dispatch(context.Background(), []string{"uploads"}, testNotice())
	if results[0].Delivered || !results[0].Permanent {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestDispatchPermanentRejection(t *testing.T) {
	t.Parallel()

	server, got := captureServer(t, http.StatusBadRequest)
	n := NewNotifier(map[string]string{"uploads": server.URL}, logging.Discard())

	results := n.Dispatch(context.Background(), []string{"uploads"}, testNotice())
	if results[0].Delivered {
		t.Fatal("400 must not count as delivered")
	}
	if !results[0].Permanent {
		t.Fatalf("400 must be permanent: %+v", results[0])
	}
	if len(*got) != 1 {
		t.Fatalf("400 must not be retried, got %d requests", len(*got))
	}
}

func TestDispatchDeduplicatesChannels(t *testing.T) {
	t.Parallel()

	server, got := captureServer(t, http.StatusNoContent)
	n := NewNotifier(map[string]string{"uploads": server.URL}, logging.Discard())

	results := n.Dispatch(context.Background(), []string{"uploads", "uploads"}, testNotice())
	if len(results) != 1 || len(*got) != 1 {
		t.Fatalf("duplicate channel not collapsed: %d results, %d requests", len(results), len(*got))
	}
}

func TestSplitContent(t *testing.T) {
	t.Parallel()

	parts := splitContent("a\nb\nc", 3)
	if len(parts) != 2 || parts[0] != "a\nb" || parts[1] != "c" {
		t.Fatalf("unexpected parts: %q", parts)
	}
	if parts := splitContent("short", 100); len(parts) != 1 {
		t.Fatalf("short content split: %q", parts)
	}
}
