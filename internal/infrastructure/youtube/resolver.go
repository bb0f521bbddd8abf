package youtube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
)

var (
	handleURLRE  = regexp.MustCompile(`youtube\.com/(@[^/?#]+)`)
	channelURLRE = regexp.MustCompile(`youtube\.com/channel/([^/?#]+)`)
	customURLRE  = regexp.MustCompile(`youtube\.com/(?:c|user)/([^/?#]+)`)

	channelIDRE   = regexp.MustCompile(`"channelId":"(UC[A-Za-z0-9_-]{22})"`)
	externalIDRE  = regexp.MustCompile(`"externalId":"(UC[A-Za-z0-9_-]{22})"`)
	canonicalIDRE = regexp.MustCompile(`channel_id=(UC[A-Za-z0-9_-]{22})`)

	ogTitleRE = regexp.MustCompile(`<meta property="og:title" content="([^"]+)"`)
)

// Resolver maps heterogeneous channel input (URL, @handle, raw UC id) to a
// canonical channel ID by probing the channel page when needed.
type Resolver struct {
	client *Client
	logger *slog.Logger
}

var _ ports.SourceResolver = (*Resolver)(nil)

// NewResolver wires the shared YouTube client.
func NewResolver(client *Client, logger *slog.Logger) *Resolver {
	if client == nil {
		client = NewClient(nil)
	}
	return &Resolver{client: client, logger: logger}
}

// IsCanonicalID reports whether s is a raw UC channel ID.
func IsCanonicalID(s string) bool {
	return len(s) == 24 && strings.HasPrefix(s, "UC")
}

// Resolve normalizes raw input into a Source with its canonical channel ID.
// Equivalent inputs (URL vs handle for the same channel) yield the same ID.
func (r *Resolver) Resolve(ctx context.Context, raw string) (domain.Source, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return domain.Source{}, fmt.Errorf("empty input: %w", domain.ErrInvalidSourceKind)
	}

	switch {
	case IsCanonicalID(input):
		name, err := r.channelName(ctx, "https://www.youtube.com/channel/"+input)
		if err != nil {
			name = input
		}
		return domain.Source{CanonicalID: input, DisplayName: name}, nil

	case strings.HasPrefix(input, "@"):
		return r.resolvePage(ctx, "https://www.youtube.com/"+input)

	case strings.Contains(input, "youtube.com/"):
		if m := channelURLRE.FindStringSubmatch(input); len(m) == 2 && IsCanonicalID(m[1]) {
			return r.Resolve(ctx, m[1])
		}
		if m := handleURLRE.FindStringSubmatch(input); len(m) == 2 {
			return r.resolvePage(ctx, "https://www.youtube.com/"+m[1])
		}
		if m := customURLRE.FindStringSubmatch(input); len(m) == 2 {
			return r.resolvePage(ctx, "https://www.youtube.com/c/"+m[1])
		}
		return domain.Source{}, fmt.Errorf("unrecognized youtube url %q: %w", raw, domain.ErrInvalidSourceKind)

	default:
		return domain.Source{}, fmt.Errorf("unrecognized source %q: %w", raw, domain.ErrInvalidSourceKind)
	}
}

// resolvePage fetches a channel page and extracts the canonical channel ID
// plus a display name from the page metadata.
func (r *Resolver) resolvePage(ctx context.Context, pageURL string) (domain.Source, error) {
	body, err := r.fetchPage(ctx, pageURL)
	if err != nil {
		return domain.Source{}, err
	}

	id := extractChannelID(body)
	if id == "" {
		return domain.Source{}, fmt.Errorf("no channel id on %s: %w", pageURL, domain.ErrInvalidSourceKind)
	}

	name := extractChannelName(body)
	if name == "" {
		name = id
	}
	if r.logger != nil {
		r.logger.Debug("resolved channel", "url", pageURL, "id", id, "name", name)
	}
	return domain.Source{CanonicalID: id, DisplayName: name}, nil
}

func (r *Resolver) channelName(ctx context.Context, pageURL string) (string, error) {
	body, err := r.fetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}
	name := extractChannelName(body)
	if name == "" {
		return "", fmt.Errorf("no channel name on %s: %w", pageURL, domain.ErrNotFound)
	}
	return name, nil
}

func (r *Resolver) fetchPage(ctx context.Context, pageURL string) (string, error) {
	resp, err := r.client.Get(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch channel page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("channel page %s: %w", pageURL, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("channel page %s returned %s", pageURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read channel page: %w", err)
	}
	return string(body), nil
}

func extractChannelID(body string) string {
	for _, re := range []*regexp.Regexp{channelIDRE, externalIDRE, canonicalIDRE} {
		if m := re.FindStringSubmatch(body); len(m) == 2 {
			return m[1]
		}
	}
	return ""
}

func extractChannelName(body string) string {
	if m := ogTitleRE.FindStringSubmatch(body); len(m) == 2 {
		return strings.TrimSuffix(strings.TrimSpace(m[1]), " - YouTube")
	}
	return ""
}
