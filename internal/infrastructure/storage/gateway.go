package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
)

// Gateway fronts a primary store with a local fallback. Every call goes to
// the primary first; only connection-class failures divert to the fallback.
// Logical errors (ErrNotFound, constraint violations) pass through untouched.
type Gateway struct {
	primary  ports.Store
	fallback ports.Store
	logger   *slog.Logger
}

var _ ports.Store = (*Gateway)(nil)

// NewGateway wires the two backends. primary may be nil when no Postgres DSN
// is configured; the gateway then serves everything from the fallback.
func NewGateway(primary, fallback ports.Store, logger *slog.Logger) *Gateway {
	return &Gateway{primary: primary, fallback: fallback, logger: logger}
}

// unavailable reports whether err looks like the backend itself is down
// rather than a logical failure of the operation.
func unavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"server closed",
		"database is locked",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (g *Gateway) degraded(op string, err error) {
	if g.logger != nil {
		g.logger.Warn("primary store unavailable, using fallback", "op", op, "error", err)
	}
}

// run executes op against the primary, diverting to the fallback on
// connection-class errors only.
func run[T any](ctx context.Context, g *Gateway, name string, op func(ports.Store) (T, error)) (T, error) {
	if g.primary == nil {
		return op(g.fallback)
	}
	out, err := op(g.primary)
	if err == nil || !unavailable(err) {
		return out, err
	}
	g.degraded(name, err)
	out, ferr := op(g.fallback)
	if ferr != nil && unavailable(ferr) {
		var zero T
		return zero, errors.Join(domain.ErrStorageUnavailable, err, ferr)
	}
	return out, ferr
}

func runErr(ctx context.Context, g *Gateway, name string, op func(ports.Store) error) error {
	_, err := run(ctx, g, name, func(s ports.Store) (struct{}, error) {
		return struct{}{}, op(s)
	})
	return err
}

func (g *Gateway) GetSource(ctx context.Context, id string) (domain.Source, error) {
	return run(ctx, g, "get_source", func(s ports.Store) (domain.Source, error) {
		return s.GetSource(ctx, id)
	})
}

func (g *Gateway) ListSources(ctx context.Context) ([]domain.Source, error) {
	return run(ctx, g, "list_sources", func(s ports.Store) ([]domain.Source, error) {
		return s.ListSources(ctx)
	})
}

func (g *Gateway) UpsertSource(ctx context.Context, src domain.Source) error {
	return runErr(ctx, g, "upsert_source", func(s ports.Store) error {
		return s.UpsertSource(ctx, src)
	})
}

func (g *Gateway) RemoveSource(ctx context.Context, id string) error {
	return runErr(ctx, g, "remove_source", func(s ports.Store) error {
		return s.RemoveSource(ctx, id)
	})
}

func (g *Gateway) GetItem(ctx context.Context, id string) (domain.Item, error) {
	return run(ctx, g, "get_item", func(s ports.Store) (domain.Item, error) {
		return s.GetItem(ctx, id)
	})
}

func (g *Gateway) PutItem(ctx context.Context, item domain.Item) error {
	return runErr(ctx, g, "put_item", func(s ports.Store) error {
		return s.PutItem(ctx, item)
	})
}

func (g *Gateway) GetSummary(ctx context.Context, itemID string) (domain.Summary, error) {
	return run(ctx, g, "get_summary", func(s ports.Store) (domain.Summary, error) {
		return s.GetSummary(ctx, itemID)
	})
}

func (g *Gateway) PutSummary(ctx context.Context, sum domain.Summary) error {
	return runErr(ctx, g, "put_summary", func(s ports.Store) error {
		return s.PutSummary(ctx, sum)
	})
}

func (g *Gateway) ListSummaries(ctx context.Context, since time.Time) ([]domain.Summary, error) {
	return run(ctx, g, "list_summaries", func(s ports.Store) ([]domain.Summary, error) {
		return s.ListSummaries(ctx, since)
	})
}

func (g *Gateway) LastWindowEnd(ctx context.Context) (time.Time, error) {
	return run(ctx, g, "last_window_end", func(s ports.Store) (time.Time, error) {
		return s.LastWindowEnd(ctx)
	})
}

func (g *Gateway) PutReportWindow(ctx context.Context, win domain.ReportWindow) error {
	return runErr(ctx, g, "put_report_window", func(s ports.Store) error {
		return s.PutReportWindow(ctx, win)
	})
}
