package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
	"TubeDigest/internal/textutil"
)

// minTranscriptChars guards against providers returning junk fragments.
const minTranscriptChars = 50

// Chain walks an ordered list of transcript providers, falling through on
// provider errors and capping total attempts. Output is whitespace-normalized
// and length-capped before it reaches the summarizer.
type Chain struct {
	providers       []ports.TranscriptProvider
	providerTimeout time.Duration
	maxAttempts     int
	maxChars        int
	logger          *slog.Logger
}

// NewChain builds the fetcher; providers are tried in the given order.
func NewChain(providers []ports.TranscriptProvider, providerTimeout time.Duration, maxAttempts, maxChars int, logger *slog.Logger) *Chain {
	if providerTimeout <= 0 {
		providerTimeout = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = len(providers)
	}
	if maxChars <= 0 {
		maxChars = 120000
	}
	return &Chain{
		providers:       providers,
		providerTimeout: providerTimeout,
		maxAttempts:     maxAttempts,
		maxChars:        maxChars,
		logger:          logger,
	}
}

// Fetch retrieves the transcript for one video. A provider timing out counts
// as that provider's failure, not a fatal error for the whole fetch.
func (c *Chain) Fetch(ctx context.Context, itemID string) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("no transcript providers configured: %w", domain.ErrProvider)
	}

	attempts := 0
	sawNoTranscript := false
	var lastErr error

	for _, provider := range c.providers {
		if attempts >= c.maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		attempts++

		providerCtx, cancel := context.WithTimeout(ctx, c.providerTimeout)
		text, err := provider.Fetch(providerCtx, itemID)
		cancel()

		if err == nil {
			normalized := c.normalize(text)
			if len(normalized) < minTranscriptChars {
				lastErr = fmt.Errorf("provider %s returned %d chars: %w", provider.Name(), len(normalized), domain.ErrNoTranscript)
				sawNoTranscript = true
				continue
			}
			return normalized, nil
		}

		if errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
		if errors.Is(err, domain.ErrNoTranscript) {
			sawNoTranscript = true
		}
		lastErr = err
		if c.logger != nil {
			c.logger.Warn("transcript provider failed", "provider", provider.Name(), "video", itemID, "error", err)
		}
	}

	if sawNoTranscript {
		return "", fmt.Errorf("video %s: %w", itemID, domain.ErrNoTranscript)
	}
	return "", fmt.Errorf("all transcript providers exhausted for %s (%v): %w", itemID, lastErr, domain.ErrProvider)
}

func (c *Chain) normalize(text string) string {
	normalized := textutil.NormalizeWhitespace(text)
	if len(normalized) > c.maxChars {
		normalized = textutil.TruncateAtWord(normalized, c.maxChars)
	}
	return normalized
}
