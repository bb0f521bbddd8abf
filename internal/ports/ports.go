package ports

import (
	"context"
	"time"

	"TubeDigest/internal/domain"
)

// SourceResolver normalizes raw channel input (URL, @handle, raw ID) into a
// Source with its canonical channel ID. Pure lookup; callers persist the result.
type SourceResolver interface {
	Resolve(ctx context.Context, raw string) (domain.Source, error)
}

// Listing fetches the most recent items published by a channel, newest first.
type Listing interface {
	LatestItems(ctx context.Context, canonicalID string, max int) ([]domain.Item, error)
}

// TranscriptProvider retrieves the transcript text for a single video.
// Implementations form an ordered fallback chain.
type TranscriptProvider interface {
	Name() string
	Fetch(ctx context.Context, itemID string) (string, error)
}

// Completer is the AI completion capability boundary. The summarizer owns all
// retry and backoff logic around it.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Store is the durable persistence gateway shared by every component.
type Store interface {
	GetSource(ctx context.Context, id string) (domain.Source, error)
	ListSources(ctx context.Context) ([]domain.Source, error)
	UpsertSource(ctx context.Context, src domain.Source) error
	RemoveSource(ctx context.Context, id string) error

	GetItem(ctx context.Context, id string) (domain.Item, error)
	PutItem(ctx context.Context, item domain.Item) error

	GetSummary(ctx context.Context, itemID string) (domain.Summary, error)
	PutSummary(ctx context.Context, sum domain.Summary) error
	ListSummaries(ctx context.Context, since time.Time) ([]domain.Summary, error)

	LastWindowEnd(ctx context.Context) (time.Time, error)
	PutReportWindow(ctx context.Context, win domain.ReportWindow) error
}

// Notifier delivers a notice to the named channels, each independently.
type Notifier interface {
	Dispatch(ctx context.Context, channels []string, notice domain.Notice) []domain.DeliveryResult
}
