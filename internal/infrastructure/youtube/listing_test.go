package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>Some Channel</title>
  <entry>
    <yt:videoId>vid00000003</yt:videoId>
    <title>Regular Video</title>
    <published>2026-08-20T10:00:00+00:00</published>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid00000003"/>
  </entry>
  <entry>
    <yt:videoId>vid00000002</yt:videoId>
    <title>Quick tip #shorts</title>
    <published>2026-08-19T10:00:00+00:00</published>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid00000002"/>
  </entry>
  <entry>
    <yt:videoId>vid00000001</yt:videoId>
    <title>🔴 LIVE NOW: stream</title>
    <published>2026-08-18T10:00:00+00:00</published>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid00000001"/>
  </entry>
  <entry>
    <yt:videoId>vid00000000</yt:videoId>
    <title>Older Video</title>
    <published>2026-08-17T10:00:00+00:00</published>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid00000000"/>
  </entry>
</feed>`

func testListing(serverURL string) *Listing {
	l := NewListing(NewClient(&http.Client{Timeout: 5 * time.Second}), nil)
	l.baseURL = serverURL
	return l
}

func TestLatestItemsViaFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/feeds/videos.xml") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("channel_id") != "UCx" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(feedXML))
	}))
	defer server.Close()

	items, err := testListing(server.URL).LatestItems(context.Background(), "UCx", 10)
	if err != nil {
		t.Fatalf("LatestItems error: %v", err)
	}

	// Shorts and live entries are filtered out.
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %v", len(items), items)
	}
	if items[0].ID != "vid00000003" || items[1].ID != "vid00000000" {
		t.Fatalf("unexpected order: %s, %s", items[0].ID, items[1].ID)
	}
	if items[0].SourceID != "UCx" {
		t.Fatalf("source not set: %s", items[0].SourceID)
	}
	want := time.Date(2026, time.August, 20, 10, 0, 0, 0, time.UTC)
	if !items[0].PublishedAt.Equal(want) {
		t.Fatalf("unexpected publish time: %v", items[0].PublishedAt)
	}
}

func TestLatestItemsFallsBackToHTML(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/feeds/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body>
			<a href="/watch?v=vidaaaaaaa1" title="Scraped Video One">x</a>
			<a href="/watch?v=vidaaaaaaa1" title="duplicate">x</a>
			<a href="/watch?v=vidaaaaaaa2" title="Scraped #shorts clip">x</a>
			<a href="/watch?v=vidaaaaaaa3" title="Scraped Video Two">x</a>
			<a href="/about">not a video</a>
		</body></html>`))
	}))
	defer server.Close()

	items, err := testListing(server.URL).LatestItems(context.Background(), "UCx", 10)
	if err != nil {
		t.Fatalf("LatestItems error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %v", len(items), items)
	}
	if items[0].ID != "vidaaaaaaa1" || items[1].ID != "vidaaaaaaa3" {
		t.Fatalf("unexpected ids: %s, %s", items[0].ID, items[1].ID)
	}
	if items[0].Title != "Scraped Video One" {
		t.Fatalf("unexpected title: %s", items[0].Title)
	}
}

func TestVideoIDFromHref(t *testing.T) {
	t.Parallel()

	cases := []struct {
		href string
		want string
	}{
		{"/watch?v=abc12345678", "abc12345678"},
		{"/watch?v=abc12345678&t=10s", "abc12345678"},
		{"https://www.youtube.com/watch?v=abc12345678", "abc12345678"},
		{"/playlist?list=x", ""},
	}
	for _, tc := range cases {
		if got := videoIDFromHref(tc.href); got != tc.want {
			t.Fatalf("videoIDFromHref(%q) = %q, want %q", tc.href, got, tc.want)
		}
	}
}

func TestShortAndLiveFilters(t *testing.T) {
	t.Parallel()

	if !isShort("/shorts/abc", "anything") {
		t.Fatal("shorts URL not detected")
	}
	if !isShort("/watch?v=x", "Quick tip #Shorts") {
		t.Fatal("shorts hashtag not detected")
	}
	if isShort("/watch?v=x", "A regular title") {
		t.Fatal("false positive short")
	}

	for _, title := range []string{"🔴 stream", "We are LIVE NOW", "Premieres tomorrow"} {
		if !isLive(title) {
			t.Fatalf("live indicator missed: %q", title)
		}
	}
	if isLive("How I deliver talks") {
		t.Fatal("false positive live")
	}
}
