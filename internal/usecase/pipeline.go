package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
)

// TranscriptFetcher is the pipeline's view of the provider chain.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, itemID string) (string, error)
}

// ItemResolver turns a raw video URL or ID into an Item with its metadata.
type ItemResolver interface {
	ResolveItem(ctx context.Context, raw string) (domain.Item, string, error)
}

// ProcessResult reports what happened to one item on its way through the
// pipeline.
type ProcessResult struct {
	Item       domain.Item
	Summary    domain.Summary
	Deliveries []domain.DeliveryResult
	Cached     bool
}

// Pipeline runs one item through fetch, summarize, store, and dispatch.
type Pipeline struct {
	store      ports.Store
	fetcher    TranscriptFetcher
	summarizer *Summarizer
	notifier   ports.Notifier
	resolver   ItemResolver
	logger     *slog.Logger

	// delivered tracks which channels each item has already reached, for the
	// lifetime of the process, so a retried item never re-notifies.
	mu        sync.Mutex
	delivered map[string]map[string]bool
}

// PipelineDeps carries everything the pipeline needs.
type PipelineDeps struct {
	Store      ports.Store
	Fetcher    TranscriptFetcher
	Summarizer *Summarizer
	Notifier   ports.Notifier
	Resolver   ItemResolver
	Logger     *slog.Logger
}

// NewPipeline wires the per-item processing path.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		store:      deps.Store,
		fetcher:    deps.Fetcher,
		summarizer: deps.Summarizer,
		notifier:   deps.Notifier,
		resolver:   deps.Resolver,
		logger:     deps.Logger,
		delivered:  make(map[string]map[string]bool),
	}
}

// dispatch sends the notice only to channels the item has not reached yet and
// remembers the successes. Failed channels stay pending for the next attempt.
func (p *Pipeline) dispatch(ctx context.Context, itemID string, channels []string, notice domain.Notice) []domain.DeliveryResult {
	pending := p.pendingChannels(itemID, channels)
	if len(pending) == 0 {
		return nil
	}
	results := p.notifier.Dispatch(ctx, pending, notice)
	p.markDelivered(itemID, results)
	return results
}

func (p *Pipeline) pendingChannels(itemID string, channels []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	done := p.delivered[itemID]
	pending := make([]string, 0, len(channels))
	for _, ch := range channels {
		if !done[ch] {
			pending = append(pending, ch)
		}
	}
	return pending
}

func (p *Pipeline) markDelivered(itemID string, results []domain.DeliveryResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	done := p.delivered[itemID]
	if done == nil {
		done = make(map[string]bool)
		p.delivered[itemID] = done
	}
	for _, r := range results {
		if r.Delivered {
			done[r.Channel] = true
		}
	}
}

// ProcessItem handles one new video end to end. An existing stored summary
// short-circuits the whole path, including notifications, so crash replays
// and manual re-runs stay quiet.
func (p *Pipeline) ProcessItem(ctx context.Context, sourceName string, item domain.Item) (ProcessResult, error) {
	res := ProcessResult{Item: item}

	if cached, err := p.store.GetSummary(ctx, item.ID); err == nil {
		p.logger.Info("summary cache hit", "video", item.ID)
		res.Summary = cached
		res.Cached = true
		return res, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return res, fmt.Errorf("summary lookup: %w", err)
	}

	text, err := p.fetcher.Fetch(ctx, item.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNoTranscript) {
			// Terminal per item: keep it on record with empty text so the
			// failure is durable and inspectable.
			if perr := p.store.PutItem(ctx, item); perr != nil {
				p.logger.Warn("cannot store item without transcript", "video", item.ID, "error", perr)
			}
		}
		// The upload itself is still news; announce it even when the
		// transcript never materializes.
		res.Deliveries = p.dispatch(ctx, item.ID, []string{"uploads"}, domain.Notice{
			SourceName: sourceName,
			Item:       item,
		})
		return res, fmt.Errorf("fetch transcript: %w", err)
	}

	item.RawText = text
	item.RawTextHash = domain.HashText(text)
	res.Item = item
	if err := p.store.PutItem(ctx, item); err != nil {
		return res, fmt.Errorf("store item: %w", err)
	}

	notice := domain.Notice{
		SourceName: sourceName,
		Item:       item,
		Transcript: text,
	}

	summary, err := p.summarizer.Summarize(ctx, item)
	if err != nil {
		res.Deliveries = p.dispatch(ctx, item.ID, []string{"uploads", "transcripts"}, notice)
		return res, err
	}
	res.Summary = summary

	if err := p.store.PutSummary(ctx, summary); err != nil {
		return res, fmt.Errorf("store summary: %w", err)
	}

	notice.Summary = summary
	res.Deliveries = p.dispatch(ctx, item.ID, []string{"uploads", "transcripts", "summaries"}, notice)

	p.logger.Info("item processed",
		"video", item.ID,
		"source", item.SourceID,
		"delivered", domain.Delivered(res.Deliveries))
	return res, nil
}

// ProcessURL handles a manually submitted video URL or bare ID.
func (p *Pipeline) ProcessURL(ctx context.Context, raw string) (ProcessResult, error) {
	if p.resolver == nil {
		return ProcessResult{}, errors.New("no item resolver configured")
	}
	item, channel, err := p.resolver.ResolveItem(ctx, raw)
	if err != nil {
		return ProcessResult{}, err
	}
	if item.PublishedAt.IsZero() {
		item.PublishedAt = time.Now().UTC()
	}
	return p.ProcessItem(ctx, channel, item)
}
