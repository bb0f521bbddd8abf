package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TubeDigest/internal/domain"
)

// fakeStore is an in-memory ports.Store for use case tests.
type fakeStore struct {
	mu            sync.Mutex
	sources       map[string]domain.Source
	items         map[string]domain.Item
	summaries     map[string]domain.Summary
	windows       []domain.ReportWindow
	lastWindowEnd time.Time
	err           error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sources:   map[string]domain.Source{},
		items:     map[string]domain.Item{},
		summaries: map[string]domain.Summary{},
	}
}

func (f *fakeStore) GetSource(_ context.Context, id string) (domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Source{}, f.err
	}
	src, ok := f.sources[id]
	if !ok {
		return domain.Source{}, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	return src, nil
}

func (f *fakeStore) ListSources(_ context.Context) ([]domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Source, 0, len(f.sources))
	for _, src := range f.sources {
		out = append(out, src)
	}
	return out, nil
}

func (f *fakeStore) UpsertSource(_ context.Context, src domain.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sources[src.CanonicalID] = src
	return nil
}

func (f *fakeStore) RemoveSource(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sources, id)
	return nil
}

func (f *fakeStore) GetItem(_ context.Context, id string) (domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return item, nil
}

func (f *fakeStore) PutItem(_ context.Context, item domain.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeStore) GetSummary(_ context.Context, itemID string) (domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Summary{}, f.err
	}
	sum, ok := f.summaries[itemID]
	if !ok {
		return domain.Summary{}, fmt.Errorf("summary %s: %w", itemID, domain.ErrNotFound)
	}
	return sum, nil
}

func (f *fakeStore) PutSummary(_ context.Context, sum domain.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.summaries[sum.ItemID] = sum
	return nil
}

func (f *fakeStore) ListSummaries(_ context.Context, since time.Time) ([]domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Summary
	for _, sum := range f.summaries {
		if sum.CreatedAt.After(since) {
			out = append(out, sum)
		}
	}
	return out, nil
}

func (f *fakeStore) LastWindowEnd(_ context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastWindowEnd, nil
}

func (f *fakeStore) PutReportWindow(_ context.Context, win domain.ReportWindow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, win)
	f.lastWindowEnd = win.End
	return nil
}

// fakeNotifier records every dispatch.
type fakeNotifier struct {
	mu         sync.Mutex
	dispatches [][]string
	notices    []domain.Notice
	fail       bool
}

func (f *fakeNotifier) Dispatch(_ context.Context, channels []string, notice domain.Notice) []domain.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches = append(f.dispatches, channels)
	f.notices = append(f.notices, notice)

	results := make([]domain.DeliveryResult, 0, len(channels))
	for _, ch := range channels {
		results = append(results, domain.DeliveryResult{
			Channel:   ch,
			Delivered: !f.fail,
		})
	}
	return results
}

func (f *fakeNotifier) channelLog() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dispatches
}

// fakeFetcher serves transcripts from a map.
type fakeFetcher struct {
	texts map[string]string
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, itemID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	text, ok := f.texts[itemID]
	if !ok {
		return "", fmt.Errorf("video %s: %w", itemID, domain.ErrNoTranscript)
	}
	return text, nil
}

// fakeCompleter returns canned responses in order, then repeats the last one.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

// fakeListing serves a fixed newest-first item slice per channel.
type fakeListing struct {
	items map[string][]domain.Item
	err   error
}

func (f *fakeListing) LatestItems(_ context.Context, canonicalID string, max int) ([]domain.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	items := f.items[canonicalID]
	if len(items) > max {
		items = items[:max]
	}
	return items, nil
}

// fakeResolver maps raw inputs to sources.
type fakeResolver struct {
	sources map[string]domain.Source
}

func (f *fakeResolver) Resolve(_ context.Context, raw string) (domain.Source, error) {
	src, ok := f.sources[raw]
	if !ok {
		return domain.Source{}, fmt.Errorf("unrecognized source %q: %w", raw, domain.ErrInvalidSourceKind)
	}
	return src, nil
}
