package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
	"TubeDigest/internal/retry"
)

// playerResponseMarker marks the start of the player response JSON embedded
// in watch page HTML.
const playerResponseMarker = "ytInitialPlayerResponse = "

// WatchPageProvider scrapes the watch page HTML and extracts the caption
// track URL from ytInitialPlayerResponse. Works from any IP.
type WatchPageProvider struct {
	client *http.Client
	langs  []string
}

var _ ports.TranscriptProvider = (*WatchPageProvider)(nil)

// NewWatchPageProvider builds the primary transcript provider.
func NewWatchPageProvider(client *http.Client, langs []string) *WatchPageProvider {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &WatchPageProvider{client: client, langs: langs}
}

// Name identifies the provider inside the chain.
func (p *WatchPageProvider) Name() string {
	return "watchpage"
}

// Fetch downloads the watch page and resolves the best caption track.
func (p *WatchPageProvider) Fetch(ctx context.Context, itemID string) (string, error) {
	watchURL := "https://www.youtube.com/watch?v=" + itemID

	resp, err := retry.HTTP(ctx, retry.Default, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", chromeUA)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return p.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("video %s: %w", itemID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watch page returned %d: %w", resp.StatusCode, domain.ErrProvider)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read watch page: %w", err)
	}

	idx := bytes.Index(body, []byte(playerResponseMarker))
	if idx < 0 {
		return "", fmt.Errorf("ytInitialPlayerResponse not found: %w", domain.ErrProvider)
	}
	jsonData := extractJSONObject(body[idx+len(playerResponseMarker):])
	if jsonData == nil {
		return "", fmt.Errorf("malformed ytInitialPlayerResponse: %w", domain.ErrProvider)
	}

	var player playerResponse
	if err := json.Unmarshal(jsonData, &player); err != nil {
		return "", fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return resolveCaptions(ctx, p.client, player, p.langs, itemID)
}

// resolveCaptions turns a player response into transcript text; shared with
// the Innertube provider.
func resolveCaptions(ctx context.Context, client *http.Client, player playerResponse, langs []string, itemID string) (string, error) {
	if player.Captions == nil {
		reason := ""
		if player.PlayabilityStatus != nil {
			reason = player.PlayabilityStatus.Reason
		}
		if reason != "" {
			return "", fmt.Errorf("video %s captions unavailable (%s): %w", itemID, reason, domain.ErrNoTranscript)
		}
		return "", fmt.Errorf("video %s has no captions: %w", itemID, domain.ErrNoTranscript)
	}

	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return "", fmt.Errorf("video %s has no caption tracks: %w", itemID, domain.ErrNoTranscript)
	}
	track, ok := pickBestTrack(tracks, langs)
	if !ok {
		return "", fmt.Errorf("all caption tracks require a browser token: %w", domain.ErrProvider)
	}
	text, err := fetchTimedText(ctx, client, track.BaseURL)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, domain.ErrProvider)
	}
	if text == "" {
		return "", fmt.Errorf("empty caption track: %w", domain.ErrNoTranscript)
	}
	return text, nil
}

// extractJSONObject returns the first balanced {...} object in data,
// respecting string literals and escapes.
func extractJSONObject(data []byte) []byte {
	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return nil
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(data); i++ {
		c := data[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return data[start : i+1]
			}
		}
	}
	return nil
}
