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

// listingWindow is how many recent uploads a check inspects. Deeper backlogs
// drain across sweeps via the per-sweep item cap.
const listingWindow = 15

// CheckOutcome reports the result of checking one source.
type CheckOutcome struct {
	SourceID  string `json:"source_id"`
	Skipped   bool   `json:"skipped,omitempty"`
	NewItems  int    `json:"new_items"`
	Processed int    `json:"processed"`
	Error     string `json:"error,omitempty"`
}

// Poller sweeps tracked sources and feeds new uploads into the pipeline.
type Poller struct {
	store          ports.Store
	resolver       ports.SourceResolver
	listing        ports.Listing
	pipeline       *Pipeline
	maxConcurrency int
	maxPerSweep    int
	logger         *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewPoller wires the sweep path.
func NewPoller(store ports.Store, resolver ports.SourceResolver, listing ports.Listing, pipeline *Pipeline, maxConcurrency, maxPerSweep int, logger *slog.Logger) *Poller {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if maxPerSweep <= 0 {
		maxPerSweep = 5
	}
	return &Poller{
		store:          store,
		resolver:       resolver,
		listing:        listing,
		pipeline:       pipeline,
		maxConcurrency: maxConcurrency,
		maxPerSweep:    maxPerSweep,
		logger:         logger,
		inFlight:       make(map[string]bool),
	}
}

// AddSource resolves raw channel input and starts tracking it. Re-adding a
// tracked channel refreshes the display name without resetting its cursor.
func (p *Poller) AddSource(ctx context.Context, raw string) (domain.Source, error) {
	src, err := p.resolver.Resolve(ctx, raw)
	if err != nil {
		return domain.Source{}, err
	}

	if existing, err := p.store.GetSource(ctx, src.CanonicalID); err == nil {
		if src.DisplayName != "" {
			existing.DisplayName = src.DisplayName
		}
		src = existing
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Source{}, err
	}

	if err := p.store.UpsertSource(ctx, src); err != nil {
		return domain.Source{}, err
	}
	p.logger.Info("source tracked", "source", src.CanonicalID, "name", src.DisplayName)
	return src, nil
}

// RemoveSource stops tracking a channel by canonical ID.
func (p *Poller) RemoveSource(ctx context.Context, id string) error {
	return p.store.RemoveSource(ctx, id)
}

// Sweep checks every tracked source with bounded parallelism.
func (p *Poller) Sweep(ctx context.Context) []CheckOutcome {
	sources, err := p.store.ListSources(ctx)
	if err != nil {
		p.logger.Error("sweep cannot list sources", "error", err)
		return nil
	}
	if len(sources) == 0 {
		return nil
	}

	outcomes := make([]CheckOutcome, len(sources))
	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src domain.Source) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = CheckOutcome{SourceID: src.CanonicalID, Skipped: true, Error: ctx.Err().Error()}
				return
			}
			outcomes[i] = p.CheckSource(ctx, src)
		}(i, src)
	}
	wg.Wait()
	return outcomes
}

// CheckSource inspects one source for new uploads and processes them oldest
// first. Re-entrant checks on the same source are skipped.
func (p *Poller) CheckSource(ctx context.Context, src domain.Source) CheckOutcome {
	out := CheckOutcome{SourceID: src.CanonicalID}

	if !p.acquire(src.CanonicalID) {
		out.Skipped = true
		return out
	}
	defer p.release(src.CanonicalID)

	items, err := p.listing.LatestItems(ctx, src.CanonicalID, listingWindow)
	if err != nil {
		out.Error = err.Error()
		src.LastError = out.Error
		if uerr := p.store.UpsertSource(ctx, src); uerr != nil {
			p.logger.Error("cannot record listing failure", "source", src.CanonicalID, "error", uerr)
		}
		return out
	}

	// First check establishes the cursor without draining the channel's
	// whole history into the pipeline.
	if src.LastSeenItemID == "" && len(items) > 0 {
		src.LastSeenItemID = items[0].ID
		src.LastSeenTitle = items[0].Title
		p.finishCheck(ctx, src, "")
		return out
	}

	unseen := unseenOldestFirst(items, src.LastSeenItemID)
	out.NewItems = len(unseen)
	if len(unseen) > p.maxPerSweep {
		unseen = unseen[:p.maxPerSweep]
	}

	var lastErr string
	for _, item := range unseen {
		if ctx.Err() != nil {
			lastErr = ctx.Err().Error()
			break
		}
		_, err := p.pipeline.ProcessItem(ctx, src.DisplayName, item)
		if err != nil && !errors.Is(err, domain.ErrNoTranscript) {
			// Transient failure: keep the cursor so the next sweep retries.
			lastErr = err.Error()
			p.logger.Warn("item processing failed", "source", src.CanonicalID, "video", item.ID, "error", err)
			break
		}
		if err != nil {
			lastErr = err.Error()
			p.logger.Info("no transcript, skipping item", "source", src.CanonicalID, "video", item.ID)
		}
		out.Processed++
		src.LastSeenItemID = item.ID
		src.LastSeenTitle = item.Title
		if uerr := p.store.UpsertSource(ctx, src); uerr != nil {
			lastErr = fmt.Sprintf("advance cursor: %v", uerr)
			break
		}
	}

	out.Error = lastErr
	p.finishCheck(ctx, src, lastErr)
	return out
}

func (p *Poller) finishCheck(ctx context.Context, src domain.Source, lastErr string) {
	src.LastCheckedAt = time.Now().UTC()
	src.LastError = lastErr
	if err := p.store.UpsertSource(ctx, src); err != nil {
		p.logger.Error("cannot persist check state", "source", src.CanonicalID, "error", err)
	}
}

// unseenOldestFirst returns the items newer than lastSeen, reversed into
// publish order. When lastSeen is absent from the window the whole window
// counts as new.
func unseenOldestFirst(items []domain.Item, lastSeen string) []domain.Item {
	cut := len(items)
	for i, item := range items {
		if item.ID == lastSeen {
			cut = i
			break
		}
	}
	unseen := make([]domain.Item, 0, cut)
	for i := cut - 1; i >= 0; i-- {
		unseen = append(unseen, items[i])
	}
	return unseen
}

func (p *Poller) acquire(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[id] {
		return false
	}
	p.inFlight[id] = true
	return true
}

func (p *Poller) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}
