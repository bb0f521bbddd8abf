package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
)

// ReportOutcome reports what one aggregate run did.
type ReportOutcome struct {
	Status      string                  `json:"status"` // "sent" or "empty"
	WindowStart time.Time               `json:"window_start"`
	WindowEnd   time.Time               `json:"window_end"`
	Items       int                     `json:"items"`
	Deliveries  []domain.DeliveryResult `json:"deliveries,omitempty"`
}

// Reporter produces the daily aggregate digest over summaries created since
// the previous report. Scheduled and manual fires share this path.
type Reporter struct {
	store      ports.Store
	summarizer *Summarizer
	notifier   ports.Notifier
	logger     *slog.Logger
}

// NewReporter wires the aggregate report path.
func NewReporter(store ports.Store, summarizer *Summarizer, notifier ports.Notifier, logger *slog.Logger) *Reporter {
	return &Reporter{store: store, summarizer: summarizer, notifier: notifier, logger: logger}
}

// Run generates and delivers one report over the window (lastWindowEnd, now].
// An empty window advances the mark without sending anything. The window is
// only persisted after successful delivery, so a failed send is retried in
// full on the next fire.
func (r *Reporter) Run(ctx context.Context) (ReportOutcome, error) {
	since, err := r.store.LastWindowEnd(ctx)
	if err != nil {
		return ReportOutcome{}, fmt.Errorf("report window start: %w", err)
	}
	now := time.Now().UTC()
	out := ReportOutcome{WindowStart: since, WindowEnd: now}

	summaries, err := r.store.ListSummaries(ctx, since)
	if err != nil {
		return out, fmt.Errorf("list window summaries: %w", err)
	}
	// The store query has no upper bound; a summary written after the window
	// end belongs to the next report, not this one and the next.
	kept := summaries[:0]
	for _, sum := range summaries {
		if !sum.CreatedAt.After(now) {
			kept = append(kept, sum)
		}
	}
	summaries = kept
	out.Items = len(summaries)

	if len(summaries) == 0 {
		if err := r.store.PutReportWindow(ctx, domain.ReportWindow{Start: since, End: now}); err != nil {
			return out, fmt.Errorf("advance empty window: %w", err)
		}
		out.Status = "empty"
		r.logger.Info("report window empty", "since", since)
		return out, nil
	}

	digest, err := r.summarizer.Digest(ctx, summaries)
	if err != nil {
		return out, err
	}

	out.Deliveries = r.notifier.Dispatch(ctx, []string{"report"}, domain.Notice{Digest: digest})
	if len(domain.Delivered(out.Deliveries)) == 0 {
		return out, fmt.Errorf("report not delivered: %w", domain.ErrDeliveryFailed)
	}

	ids := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		ids = append(ids, sum.ItemID)
	}
	if err := r.store.PutReportWindow(ctx, domain.ReportWindow{Start: since, End: now, ItemIDs: ids}); err != nil {
		return out, fmt.Errorf("persist report window: %w", err)
	}

	out.Status = "sent"
	r.logger.Info("report sent", "items", out.Items, "since", since)
	return out, nil
}
