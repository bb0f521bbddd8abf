package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
)

const defaultBaseURL = "https://www.youtube.com"

// liveIndicators mark titles that belong to livestreams or premieres.
var liveIndicators = []string{"🔴", "live now", "live stream", "streaming now", "premieres"}

// Listing fetches the newest items for a channel via the Atom RSS feed, with
// an HTML scrape of the channel /videos page as fallback. Shorts and live
// streams are filtered out of both paths.
type Listing struct {
	client  *Client
	baseURL string
	logger  *slog.Logger
}

var _ ports.Listing = (*Listing)(nil)

// NewListing wires the shared YouTube client.
func NewListing(client *Client, logger *slog.Logger) *Listing {
	if client == nil {
		client = NewClient(nil)
	}
	return &Listing{client: client, baseURL: defaultBaseURL, logger: logger}
}

// atomFeed mirrors the subset of the YouTube channel Atom feed we consume.
type atomFeed struct {
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	VideoID   string `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Link      struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

// LatestItems returns up to max items for the channel, newest first.
func (l *Listing) LatestItems(ctx context.Context, canonicalID string, max int) ([]domain.Item, error) {
	if max <= 0 {
		max = 15
	}

	items, err := l.viaFeed(ctx, canonicalID, max)
	if err == nil && len(items) > 0 {
		return items, nil
	}
	if err != nil && l.logger != nil {
		l.logger.Warn("rss listing failed, scraping videos page", "channel", canonicalID, "error", err)
	}

	return l.viaHTML(ctx, canonicalID, max)
}

func (l *Listing) viaFeed(ctx context.Context, canonicalID string, max int) ([]domain.Item, error) {
	resp, err := l.client.Get(ctx, l.baseURL+"/feeds/videos.xml?channel_id="+canonicalID)
	if err != nil {
		return nil, fmt.Errorf("fetch rss feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("channel %s feed: %w", canonicalID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss feed returned %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read rss feed: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("parse rss feed: %w", err)
	}

	items := make([]domain.Item, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if entry.VideoID == "" {
			continue
		}
		if isShort(entry.Link.Href, entry.Title) || isLive(entry.Title) {
			if l.logger != nil {
				l.logger.Debug("skipping short/live entry", "video", entry.VideoID, "title", entry.Title)
			}
			continue
		}
		published, _ := time.Parse(time.RFC3339, entry.Published)
		items = append(items, domain.Item{
			ID:          entry.VideoID,
			SourceID:    canonicalID,
			Title:       entry.Title,
			PublishedAt: published,
		})
		if len(items) == max {
			break
		}
	}
	return items, nil
}

// viaHTML scrapes the channel /videos page when the feed is unusable.
func (l *Listing) viaHTML(ctx context.Context, canonicalID string, max int) ([]domain.Item, error) {
	pageURL := l.baseURL + "/channel/" + canonicalID + "/videos"
	resp, err := l.client.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch videos page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("videos page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse videos page: %w", err)
	}

	seen := map[string]struct{}{}
	var items []domain.Item
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || !strings.Contains(href, "watch?v=") {
			return true
		}
		id := videoIDFromHref(href)
		if id == "" {
			return true
		}
		if _, dup := seen[id]; dup {
			return true
		}

		title := strings.TrimSpace(a.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(a.Text())
		}
		if isShort(href, title) || isLive(title) {
			return true
		}

		seen[id] = struct{}{}
		items = append(items, domain.Item{
			ID:       id,
			SourceID: canonicalID,
			Title:    title,
		})
		return len(items) < max
	})

	if len(items) == 0 {
		return nil, fmt.Errorf("no videos found for channel %s: %w", canonicalID, domain.ErrNotFound)
	}
	return items, nil
}

func videoIDFromHref(href string) string {
	idx := strings.Index(href, "watch?v=")
	if idx < 0 {
		return ""
	}
	id := href[idx+len("watch?v="):]
	if amp := strings.IndexByte(id, '&'); amp >= 0 {
		id = id[:amp]
	}
	return id
}

func isShort(href, title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(strings.ToLower(href), "/shorts/") ||
		strings.Contains(lower, "#shorts") ||
		strings.Contains(lower, "#short")
}

func isLive(title string) bool {
	lower := strings.ToLower(title)
	for _, indicator := range liveIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
