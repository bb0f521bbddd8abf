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

const (
	innertubePlayerURL = "https://www.youtube.com/youtubei/v1/player"
	androidVersion     = "20.10.38"
	androidUA          = "com.google.android.youtube/" + androidVersion + " (Linux; U; Android 11) gzip"
)

type innertubeRequest struct {
	VideoID        string           `json:"videoId"`
	Context        innertubeContext `json:"context"`
	RacyCheckOk    bool             `json:"racyCheckOk"`
	ContentCheckOk bool             `json:"contentCheckOk"`
}

type innertubeContext struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

// InnertubeProvider uses the ANDROID Innertube /player endpoint to list
// caption tracks. Fallback for IPs where the watch page scrape is blocked.
type InnertubeProvider struct {
	client *http.Client
	langs  []string
}

var _ ports.TranscriptProvider = (*InnertubeProvider)(nil)

// NewInnertubeProvider builds the fallback transcript provider.
func NewInnertubeProvider(client *http.Client, langs []string) *InnertubeProvider {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &InnertubeProvider{client: client, langs: langs}
}

// Name identifies the provider inside the chain.
func (p *InnertubeProvider) Name() string {
	return "innertube"
}

// Fetch posts to /player as the ANDROID client and resolves caption tracks.
func (p *InnertubeProvider) Fetch(ctx context.Context, itemID string) (string, error) {
	reqBody, err := json.Marshal(innertubeRequest{
		VideoID: itemID,
		Context: innertubeContext{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     androidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return "", err
	}

	resp, err := retry.HTTP(ctx, retry.Default, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, innertubePlayerURL+"?prettyPrint=false", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", androidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", androidVersion)
		return p.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("android innertube: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("innertube returned %d (%s): %w", resp.StatusCode, snippet, domain.ErrProvider)
	}

	var player playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return "", fmt.Errorf("decode player response: %w", err)
	}
	return resolveCaptions(ctx, p.client, player, p.langs, itemID)
}
