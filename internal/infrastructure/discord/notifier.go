package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
	"TubeDigest/internal/retry"
	"TubeDigest/internal/textutil"
)

// Discord hard limits.
const (
	maxContentLen     = 2000
	maxDescriptionLen = 4000
	maxFieldLen       = 1024
)

// Notifier posts messages to named Discord webhooks. Each channel name maps
// to one webhook URL and one rendering rule; channels deliver independently
// so one failing webhook never blocks the others.
type Notifier struct {
	webhooks map[string]string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier builds the dispatcher from the configured channel→URL map.
func NewNotifier(webhooks map[string]string, logger *slog.Logger) *Notifier {
	return &Notifier{
		webhooks: webhooks,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

type webhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string          `json:"title,omitempty"`
	URL         string          `json:"url,omitempty"`
	Description string          `json:"description,omitempty"`
	Color       int             `json:"color,omitempty"`
	Thumbnail   *embedThumbnail `json:"thumbnail,omitempty"`
	Fields      []embedField    `json:"fields,omitempty"`
}

type embedThumbnail struct {
	URL string `json:"url"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Dispatch delivers the notice to each named channel, once per channel even
// if a name repeats. Results carry per-channel outcomes; the caller decides
// what a partial failure means.
func (n *Notifier) Dispatch(ctx context.Context, channels []string, notice domain.Notice) []domain.DeliveryResult {
	results := make([]domain.DeliveryResult, 0, len(channels))
	seen := make(map[string]bool, len(channels))

	for _, channel := range channels {
		if seen[channel] {
			continue
		}
		seen[channel] = true

		res := domain.DeliveryResult{Channel: channel}
		url, ok := n.webhooks[channel]
		if !ok || url == "" {
			res.Permanent = true
			res.Error = "channel not configured"
			results = append(results, res)
			continue
		}

		if err := n.deliver(ctx, channel, url, notice); err != nil {
			res.Error = err.Error()
			res.Permanent = isPermanent(err)
			if n.logger != nil {
				n.logger.Warn("webhook delivery failed", "channel", channel, "permanent", res.Permanent, "error", err)
			}
		} else {
			res.Delivered = true
		}
		results = append(results, res)
	}
	return results
}

func (n *Notifier) deliver(ctx context.Context, channel, url string, notice domain.Notice) error {
	switch channel {
	case "uploads":
		return n.postJSON(ctx, url, uploadMessage(notice))
	case "transcripts":
		return n.postTranscript(ctx, url, notice)
	case "summaries":
		return n.postJSON(ctx, url, summaryMessage(notice))
	case "report":
		return n.postDigest(ctx, url, notice.Digest)
	default:
		// Unknown channel names fall back to a plain content message so a
		// config typo still surfaces something in the room.
		return n.postJSON(ctx, url, webhookMessage{
			Content: textutil.TruncateAtWord(notice.Item.Title+" "+notice.Item.URL(), maxContentLen),
		})
	}
}

func uploadMessage(notice domain.Notice) webhookMessage {
	return webhookMessage{
		Embeds: []embed{{
			Title:       truncate(notice.Item.Title, 256),
			URL:         notice.Item.URL(),
			Description: "New upload from " + notice.SourceName,
			Color:       0xFF0000,
			Thumbnail:   &embedThumbnail{URL: notice.Item.ThumbnailURL()},
		}},
	}
}

func summaryMessage(notice domain.Notice) webhookMessage {
	sum := notice.Summary
	title := sum.Title
	if title == "" {
		title = notice.Item.Title
	}

	fields := make([]embedField, 0, 3)
	if sum.Verdict != "" {
		fields = append(fields, embedField{Name: "Verdict", Value: truncate(sum.Verdict, maxFieldLen)})
	}
	if len(sum.Points) > 0 {
		fields = append(fields, embedField{Name: "Key points", Value: truncate(bulletList(sum.Points), maxFieldLen)})
	}
	if len(sum.Mentions) > 0 {
		fields = append(fields, embedField{Name: "Notable mentions", Value: truncate(strings.Join(sum.Mentions, ", "), maxFieldLen)})
	}

	return webhookMessage{
		Embeds: []embed{{
			Title:       truncate(title, 256),
			URL:         notice.Item.URL(),
			Description: truncate(sum.Text, maxDescriptionLen),
			Color:       0x5865F2,
			Fields:      fields,
		}},
	}
}

func bulletList(points []string) string {
	var b strings.Builder
	for _, p := range points {
		b.WriteString("• ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// postDigest splits long report text across messages at line boundaries to
// stay under the content limit.
func (n *Notifier) postDigest(ctx context.Context, url, digest string) error {
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return errors.New("empty digest")
	}
	for _, part := range splitContent(digest, maxContentLen) {
		if err := n.postJSON(ctx, url, webhookMessage{Content: part}); err != nil {
			return err
		}
	}
	return nil
}

func splitContent(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if len(line) > limit {
			line = textutil.TruncateAtWord(line, limit)
		}
		if current.Len() > 0 && current.Len()+1+len(line) > limit {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func (n *Notifier) postTranscript(ctx context.Context, url string, notice domain.Notice) error {
	if notice.Transcript == "" {
		return errors.New("no transcript to attach")
	}

	payload, err := json.Marshal(webhookMessage{
		Content: truncate("Transcript: "+notice.Item.Title+" "+notice.Item.URL(), maxContentLen),
	})
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("payload_json", string(payload)); err != nil {
		return err
	}
	filename := textutil.SanitizeFilename(notice.Item.Title) + ".txt"
	part, err := mw.CreateFormFile("files[0]", filename)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(part, notice.Transcript); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	return n.post(ctx, url, mw.FormDataContentType(), body.Bytes())
}

func (n *Notifier) postJSON(ctx context.Context, url string, msg webhookMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.post(ctx, url, "application/json", body)
}

func (n *Notifier) post(ctx context.Context, url, contentType string, body []byte) error {
	resp, err := retry.HTTP(ctx, retry.Default, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return n.client.Do(req)
	})
	if err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrDeliveryFailed)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusBadRequest {
		return &rejectError{status: resp.StatusCode}
	}
	return nil
}

// rejectError marks a webhook 4xx that retrying cannot fix.
type rejectError struct {
	status int
}

func (e *rejectError) Error() string {
	return fmt.Sprintf("webhook rejected with %d", e.status)
}

func isPermanent(err error) bool {
	var rej *rejectError
	return errors.As(err, &rej)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return textutil.TruncateAtWord(s, limit)
}
