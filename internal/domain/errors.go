package domain

import "errors"

// Sentinel errors shared across the pipeline. Wrap with fmt.Errorf("...: %w")
// and test with errors.Is at decision points.
var (
	// ErrInvalidSourceKind marks input that cannot be mapped to a channel ID.
	ErrInvalidSourceKind = errors.New("invalid source kind")

	// ErrNotFound marks a missing record or upstream resource.
	ErrNotFound = errors.New("not found")

	// ErrNoTranscript marks an item for which no provider can supply text.
	// Terminal per item; not retried indefinitely.
	ErrNoTranscript = errors.New("no transcript available")

	// ErrProvider marks a transient upstream provider failure.
	ErrProvider = errors.New("provider error")

	// ErrSummarization marks an exhausted summarize attempt.
	ErrSummarization = errors.New("summarization failed")

	// ErrStorageUnavailable is returned only when both storage backends fail.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDeliveryFailed marks a per-channel delivery failure.
	ErrDeliveryFailed = errors.New("delivery failed")
)
