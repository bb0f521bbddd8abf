package transcript

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPickBestTrack(t *testing.T) {
	t.Parallel()

	manualEN := captionTrack{BaseURL: "https://example.com/en", LanguageCode: "en"}
	asrEN := captionTrack{BaseURL: "https://example.com/en-asr", LanguageCode: "en", Kind: "asr"}
	manualDE := captionTrack{BaseURL: "https://example.com/de", LanguageCode: "de"}
	blocked := captionTrack{BaseURL: "https://example.com/x?a=1&exp=xpe", LanguageCode: "en"}

	cases := []struct {
		name   string
		tracks []captionTrack
		langs  []string
		want   string
		ok     bool
	}{
		{"manual preferred over asr", []captionTrack{asrEN, manualEN}, []string{"en"}, manualEN.BaseURL, true},
		{"asr when no manual", []captionTrack{asrEN, manualDE}, []string{"en"}, asrEN.BaseURL, true},
		{"english fallback", []captionTrack{manualDE, manualEN}, []string{"fr"}, manualEN.BaseURL, true},
		{"anything as last resort", []captionTrack{manualDE}, []string{"fr"}, manualDE.BaseURL, true},
		{"po-token tracks unusable", []captionTrack{blocked}, []string{"en"}, "", false},
		{"po-token skipped, asr taken", []captionTrack{blocked, asrEN}, []string{"en"}, asrEN.BaseURL, true},
	}
	for _, tc := range cases {
		track, ok := pickBestTrack(tc.tracks, tc.langs)
		if ok != tc.ok {
			t.Fatalf("%s: ok = %v, want %v", tc.name, ok, tc.ok)
		}
		if ok && track.BaseURL != tc.want {
			t.Fatalf("%s: picked %s, want %s", tc.name, track.BaseURL, tc.want)
		}
	}
}

func TestNeedsPoToken(t *testing.T) {
	t.Parallel()

	if !needsPoToken("https://example.com/timedtext?v=x&exp=xpe&lang=en") {
		t.Fatal("expected po-token detection")
	}
	if needsPoToken("https://example.com/timedtext?v=x&lang=en") {
		t.Fatal("false positive po-token detection")
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"nested", `{"a":{"b":2}};var x = 1`, `{"a":{"b":2}}`},
		{"braces in strings", `{"a":"}{","b":1}`, `{"a":"}{","b":1}`},
		{"escaped quotes", `{"a":"say \"hi\" {now}"}`, `{"a":"say \"hi\" {now}"}`},
		{"leading junk", `var y = {"ok":true};`, `{"ok":true}`},
	}
	for _, tc := range cases {
		got := extractJSONObject([]byte(tc.in))
		if string(got) != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}

	if got := extractJSONObject([]byte(`{"never":"closed"`)); got != nil {
		t.Fatalf("unbalanced object must return nil, got %q", got)
	}
	if got := extractJSONObject(bytes.Repeat([]byte("x"), 10)); got != nil {
		t.Fatalf("no object must return nil, got %q", got)
	}
}

func TestFetchTimedText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0" dur="2">hello &lt;b&gt;world&lt;/b&gt;</text>
  <text start="2" dur="2"> </text>
  <text start="4" dur="2">second line</text>
</transcript>`))
	}))
	defer server.Close()

	text, err := fetchTimedText(context.Background(), server.Client(), server.URL)
	if err != nil {
		t.Fatalf("fetchTimedText error: %v", err)
	}
	if text != "hello world second line" {
		t.Fatalf("unexpected text: %q", text)
	}
}
