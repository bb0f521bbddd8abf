package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Source is a tracked YouTube channel identified by its canonical channel ID.
type Source struct {
	CanonicalID    string
	DisplayName    string
	LastSeenItemID string
	LastSeenTitle  string
	LastCheckedAt  time.Time
	LastError      string
}

// Item is one published video belonging to a Source. Immutable once fetched.
type Item struct {
	ID          string
	SourceID    string
	Title       string
	PublishedAt time.Time
	RawText     string
	RawTextHash string
}

// URL returns the canonical watch URL for the item.
func (i Item) URL() string {
	return "https://www.youtube.com/watch?v=" + i.ID
}

// ThumbnailURL returns the standard high-quality thumbnail for the item.
func (i Item) ThumbnailURL() string {
	return "https://i.ytimg.com/vi/" + i.ID + "/hqdefault.jpg"
}

// HashText computes the content hash used for idempotent item writes.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Summary is the structured AI digest of one item's transcript.
type Summary struct {
	ItemID    string
	Title     string
	Points    []string
	Mentions  []string
	Verdict   string
	Text      string
	CreatedAt time.Time
}

// ReportWindow records the range of summaries included in one aggregate report.
// Never mutated after generation.
type ReportWindow struct {
	Start   time.Time
	End     time.Time
	ItemIDs []string
}
