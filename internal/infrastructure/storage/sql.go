package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
)

// timeLayout is fixed-width UTC so stored text compares lexically in
// chronological order on both backends.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func encodeTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func decodeTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s.String)
	}
	return t
}

// SQLStore implements ports.Store over database/sql. The same implementation
// serves both backends; only the driver, DDL, and placeholder format differ.
// Timestamps are stored as text; neither driver round-trips time.Time the
// same way.
type SQLStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.Store = (*SQLStore)(nil)

func newSQLStore(db *sql.DB, placeholder sq.PlaceholderFormat) *SQLStore {
	return &SQLStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholder).RunWith(db),
	}
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// GetSource loads one tracked channel or ErrNotFound.
func (s *SQLStore) GetSource(ctx context.Context, id string) (domain.Source, error) {
	row := s.sb.Select("canonical_id", "display_name", "last_seen_item_id", "last_seen_title", "last_checked_at", "last_error").
		From("sources").
		Where(sq.Eq{"canonical_id": id}).
		QueryRowContext(ctx)

	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Source{}, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// ListSources returns all tracked channels ordered by ID.
func (s *SQLStore) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.sb.Select("canonical_id", "display_name", "last_seen_item_id", "last_seen_title", "last_checked_at", "last_error").
		From("sources").
		OrderBy("canonical_id").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

// UpsertSource inserts or updates a tracked channel keyed by canonical ID.
func (s *SQLStore) UpsertSource(ctx context.Context, src domain.Source) error {
	_, err := s.sb.Insert("sources").
		Columns("canonical_id", "display_name", "last_seen_item_id", "last_seen_title", "last_checked_at", "last_error").
		Values(src.CanonicalID, src.DisplayName, src.LastSeenItemID, src.LastSeenTitle, encodeTime(src.LastCheckedAt), src.LastError).
		Suffix(`ON CONFLICT (canonical_id) DO UPDATE SET
			display_name = excluded.display_name,
			last_seen_item_id = excluded.last_seen_item_id,
			last_seen_title = excluded.last_seen_title,
			last_checked_at = excluded.last_checked_at,
			last_error = excluded.last_error`).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", src.CanonicalID, err)
	}
	return nil
}

// RemoveSource deletes a tracked channel. Removing an unknown channel is a no-op.
func (s *SQLStore) RemoveSource(ctx context.Context, id string) error {
	_, err := s.sb.Delete("sources").Where(sq.Eq{"canonical_id": id}).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("remove source %s: %w", id, err)
	}
	return nil
}

// GetItem loads one stored item or ErrNotFound.
func (s *SQLStore) GetItem(ctx context.Context, id string) (domain.Item, error) {
	var item domain.Item
	var published sql.NullString
	err := s.sb.Select("item_id", "source_id", "title", "published_at", "raw_text", "raw_text_hash").
		From("items").
		Where(sq.Eq{"item_id": id}).
		QueryRowContext(ctx).
		Scan(&item.ID, &item.SourceID, &item.Title, &published, &item.RawText, &item.RawTextHash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}
	item.PublishedAt = decodeTime(published)
	return item, nil
}

// PutItem stores an item. A second write with the same ID and hash is a
// no-op; a differing hash wins as last writer.
func (s *SQLStore) PutItem(ctx context.Context, item domain.Item) error {
	existing, err := s.GetItem(ctx, item.ID)
	if err == nil && existing.RawTextHash == item.RawTextHash {
		return nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	_, err = s.sb.Insert("items").
		Columns("item_id", "source_id", "title", "published_at", "raw_text", "raw_text_hash").
		Values(item.ID, item.SourceID, item.Title, encodeTime(item.PublishedAt), item.RawText, item.RawTextHash).
		Suffix(`ON CONFLICT (item_id) DO UPDATE SET
			source_id = excluded.source_id,
			title = excluded.title,
			published_at = excluded.published_at,
			raw_text = excluded.raw_text,
			raw_text_hash = excluded.raw_text_hash`).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("put item %s: %w", item.ID, err)
	}
	return nil
}

// GetSummary loads the summary for one item or ErrNotFound.
func (s *SQLStore) GetSummary(ctx context.Context, itemID string) (domain.Summary, error) {
	var sum domain.Summary
	var points, mentions []byte
	var created sql.NullString
	err := s.sb.Select("item_id", "title", "points", "mentions", "verdict", "summary_text", "created_at").
		From("summaries").
		Where(sq.Eq{"item_id": itemID}).
		QueryRowContext(ctx).
		Scan(&sum.ItemID, &sum.Title, &points, &mentions, &sum.Verdict, &sum.Text, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Summary{}, fmt.Errorf("summary %s: %w", itemID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Summary{}, fmt.Errorf("get summary: %w", err)
	}
	if err := decodeList(points, &sum.Points); err != nil {
		return domain.Summary{}, fmt.Errorf("decode summary points: %w", err)
	}
	if err := decodeList(mentions, &sum.Mentions); err != nil {
		return domain.Summary{}, fmt.Errorf("decode summary mentions: %w", err)
	}
	sum.CreatedAt = decodeTime(created)
	return sum, nil
}

// PutSummary upserts a summary keyed by item ID; a retry overwrites rather
// than duplicates.
func (s *SQLStore) PutSummary(ctx context.Context, sum domain.Summary) error {
	points, err := json.Marshal(sum.Points)
	if err != nil {
		return fmt.Errorf("encode summary points: %w", err)
	}
	mentions, err := json.Marshal(sum.Mentions)
	if err != nil {
		return fmt.Errorf("encode summary mentions: %w", err)
	}

	created := sum.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = s.sb.Insert("summaries").
		Columns("item_id", "title", "points", "mentions", "verdict", "summary_text", "created_at").
		Values(sum.ItemID, sum.Title, points, mentions, sum.Verdict, sum.Text, created.UTC().Format(timeLayout)).
		Suffix(`ON CONFLICT (item_id) DO UPDATE SET
			title = excluded.title,
			points = excluded.points,
			mentions = excluded.mentions,
			verdict = excluded.verdict,
			summary_text = excluded.summary_text,
			created_at = excluded.created_at`).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("put summary %s: %w", sum.ItemID, err)
	}
	return nil
}

// ListSummaries returns summaries created strictly after since, oldest first.
func (s *SQLStore) ListSummaries(ctx context.Context, since time.Time) ([]domain.Summary, error) {
	rows, err := s.sb.Select("item_id", "title", "points", "mentions", "verdict", "summary_text", "created_at").
		From("summaries").
		Where(sq.Gt{"created_at": since.UTC().Format(timeLayout)}).
		OrderBy("created_at").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.Summary
	for rows.Next() {
		var sum domain.Summary
		var points, mentions []byte
		var created sql.NullString
		if err := rows.Scan(&sum.ItemID, &sum.Title, &points, &mentions, &sum.Verdict, &sum.Text, &created); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if err := decodeList(points, &sum.Points); err != nil {
			return nil, fmt.Errorf("decode summary points: %w", err)
		}
		if err := decodeList(mentions, &sum.Mentions); err != nil {
			return nil, fmt.Errorf("decode summary mentions: %w", err)
		}
		sum.CreatedAt = decodeTime(created)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// LastWindowEnd returns the high-water mark of the last report window, or the
// zero time when no report has run yet.
func (s *SQLStore) LastWindowEnd(ctx context.Context) (time.Time, error) {
	var end sql.NullString
	err := s.sb.Select("last_window_end").
		From("report_state").
		Where(sq.Eq{"id": 1}).
		QueryRowContext(ctx).
		Scan(&end)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last window end: %w", err)
	}
	return decodeTime(end), nil
}

// PutReportWindow records one report window and advances the high-water mark.
// Empty windows still advance the mark so the same range is not re-scanned.
func (s *SQLStore) PutReportWindow(ctx context.Context, win domain.ReportWindow) error {
	ids, err := json.Marshal(win.ItemIDs)
	if err != nil {
		return fmt.Errorf("encode window item ids: %w", err)
	}

	if _, err := s.sb.Insert("report_windows").
		Columns("window_start", "window_end", "item_ids").
		Values(encodeTime(win.Start), win.End.UTC().Format(timeLayout), ids).
		ExecContext(ctx); err != nil {
		return fmt.Errorf("put report window: %w", err)
	}

	if _, err := s.sb.Insert("report_state").
		Columns("id", "last_window_end").
		Values(1, win.End.UTC().Format(timeLayout)).
		Suffix(`ON CONFLICT (id) DO UPDATE SET last_window_end = excluded.last_window_end`).
		ExecContext(ctx); err != nil {
		return fmt.Errorf("advance window end: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (domain.Source, error) {
	var src domain.Source
	var checked sql.NullString
	if err := row.Scan(&src.CanonicalID, &src.DisplayName, &src.LastSeenItemID, &src.LastSeenTitle, &checked, &src.LastError); err != nil {
		return domain.Source{}, err
	}
	src.LastCheckedAt = decodeTime(checked)
	return src, nil
}

func decodeList(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
