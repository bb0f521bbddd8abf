package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"TubeDigest/internal/domain"
)

var (
	videoURLRE     = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	bareVideoIDRE  = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	metaTitleRE    = regexp.MustCompile(`<meta name="title" content="([^"]+)"`)
	itempropNameRE = regexp.MustCompile(`<link itemprop="name" content="([^"]+)"`)
)

// ExtractVideoID pulls the 11-char video ID from any YouTube URL format.
// Returns the input unchanged when it already looks like a bare video ID.
func ExtractVideoID(raw string) (string, error) {
	if m := videoURLRE.FindStringSubmatch(raw); len(m) == 2 {
		return m[1], nil
	}
	if bareVideoIDRE.MatchString(raw) {
		return raw, nil
	}
	return "", fmt.Errorf("no video id in %q: %w", raw, domain.ErrInvalidSourceKind)
}

// ResolveItem turns a raw watch URL or bare video ID into an Item plus the
// channel name, scraping the watch page for metadata.
func (c *Client) ResolveItem(ctx context.Context, raw string) (domain.Item, string, error) {
	id, err := ExtractVideoID(raw)
	if err != nil {
		return domain.Item{}, "", err
	}
	title, channel, err := c.VideoDetails(ctx, id)
	if err != nil {
		return domain.Item{}, "", err
	}
	if title == "" {
		title = id
	}
	return domain.Item{ID: id, Title: title}, channel, nil
}

// VideoDetails scrapes the watch page for the video title and channel name.
// Best effort: missing fields come back empty rather than failing the caller.
func (c *Client) VideoDetails(ctx context.Context, videoID string) (title, channel string, err error) {
	resp, err := c.Get(ctx, "https://www.youtube.com/watch?v="+videoID)
	if err != nil {
		return "", "", fmt.Errorf("fetch watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("watch page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return "", "", fmt.Errorf("read watch page: %w", err)
	}

	if m := metaTitleRE.FindSubmatch(body); len(m) == 2 {
		title = string(m[1])
	}
	if m := itempropNameRE.FindSubmatch(body); len(m) == 2 {
		channel = string(m[1])
	}
	return title, channel, nil
}
