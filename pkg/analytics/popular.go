package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/seotools/pkg/observability"
	"github.com/platinummonkey/seotools/pkg/storage"
)

// ErrPopularURLNotFound is returned by Get for URLs that were never analyzed
var ErrPopularURLNotFound = errors.New("popular url not found")

const maxUpsertAttempts = 3

// PopularURLHit is one tool_usage event against a normalized URL
type PopularURLHit struct {
	Domain    string
	FullURL   string
	URLHash   string
	ToolType  string
	Timestamp time.Time
}

// PopularURLIndex maintains per-URL usage counters keyed by url_hash
type PopularURLIndex struct {
	db      *sql.DB
	reader  ReaderFunc
	metrics *observability.Metrics
}

// NewPopularURLIndex creates an index that writes and reads through db
func NewPopularURLIndex(db *sql.DB, metrics *observability.Metrics) *PopularURLIndex {
	return &PopularURLIndex{db: db, metrics: metrics}
}

// WithReader returns a copy of the index that serves reads from the handle reader
// returns for each query. A failed read is retried once on the write handle.
func (p *PopularURLIndex) WithReader(reader ReaderFunc) *PopularURLIndex {
	cp := *p
	cp.reader = reader
	return &cp
}

// Record applies one hit. The row is updated in place when it exists; otherwise it is
// inserted with counters at 1. Losing an insert race to another writer surfaces as a
// unique violation on url_hash and is retried as an update.
func (p *PopularURLIndex) Record(ctx context.Context, hit PopularURLHit) error {
	ts := hit.Timestamp.UTC()

	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		updated, err := p.increment(ctx, hit.URLHash, ts)
		if err != nil {
			p.metrics.RecordPopularUpsert("error")
			return err
		}
		if updated {
			p.metrics.RecordPopularUpsert("updated")
			return p.addTool(ctx, hit.URLHash, hit.ToolType)
		}

		err = p.insert(ctx, hit, ts)
		if err == nil {
			p.metrics.RecordPopularUpsert("inserted")
			return p.addTool(ctx, hit.URLHash, hit.ToolType)
		}
		if !storage.IsUniqueViolation(err) {
			p.metrics.RecordPopularUpsert("error")
			return err
		}
		p.metrics.RecordPopularUpsert("conflict")
	}

	return fmt.Errorf("popular url %s: upsert did not converge after %d attempts", hit.URLHash, maxUpsertAttempts)
}

func (p *PopularURLIndex) increment(ctx context.Context, urlHash string, ts time.Time) (bool, error) {
	query := `
		UPDATE popular_urls SET
			total_analyses = total_analyses + 1,
			daily_count = daily_count + 1,
			weekly_count = weekly_count + 1,
			monthly_count = monthly_count + 1,
			unique_users = (
				SELECT COUNT(DISTINCT session_id) FROM analytics_events
				WHERE url_hash = $1 AND event_type = 'tool_usage'
			),
			last_analyzed = $2,
			updated_at = $2
		WHERE url_hash = $1
	`
	result, err := p.db.ExecContext(ctx, query, urlHash, ts)
	if err != nil {
		return false, fmt.Errorf("failed to update popular url: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (p *PopularURLIndex) insert(ctx context.Context, hit PopularURLHit, ts time.Time) error {
	query := `
		INSERT INTO popular_urls (
			domain, full_url, url_hash, total_analyses, unique_users,
			daily_count, weekly_count, monthly_count,
			last_analyzed, created_at, updated_at
		) VALUES (
			$1, $2, $3, 1,
			(SELECT COUNT(DISTINCT session_id) FROM analytics_events
				WHERE url_hash = $3 AND event_type = 'tool_usage'),
			1, 1, 1, $4, $4, $4
		)
	`
	_, err := p.db.ExecContext(ctx, query, hit.Domain, hit.FullURL, hit.URLHash, ts)
	return err
}

func (p *PopularURLIndex) addTool(ctx context.Context, urlHash, toolType string) error {
	if toolType == "" {
		return nil
	}
	query := `
		INSERT INTO popular_url_tools (url_hash, tool_type)
		VALUES ($1, $2)
		ON CONFLICT (url_hash, tool_type) DO NOTHING
	`
	if _, err := p.db.ExecContext(ctx, query, urlHash, toolType); err != nil {
		return fmt.Errorf("failed to record tool for popular url: %w", err)
	}
	return nil
}

const popularColumns = `
	domain, full_url, url_hash, total_analyses, unique_users,
	daily_count, weekly_count, monthly_count,
	last_analyzed, created_at, updated_at
`

func scanPopular(scanner interface{ Scan(...interface{}) error }) (PopularURL, error) {
	var u PopularURL
	err := scanner.Scan(
		&u.Domain, &u.FullURL, &u.URLHash, &u.TotalAnalyses, &u.UniqueUsers,
		&u.DailyCount, &u.WeeklyCount, &u.MonthlyCount,
		&u.LastAnalyzed, &u.CreatedAt, &u.UpdatedAt,
	)
	u.LastAnalyzed = u.LastAnalyzed.UTC()
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	u.ToolsUsed = []string{}
	return u, err
}

// Top returns the most analyzed URLs, highest total first
func (p *PopularURLIndex) Top(ctx context.Context, limit int) ([]PopularURL, error) {
	if limit < 1 {
		return []PopularURL{}, nil
	}

	var urls []PopularURL
	err := readThrough(ctx, p.db, p.reader, func(db *sql.DB) error {
		var err error
		urls, err = p.top(ctx, db, limit)
		return err
	})
	return urls, err
}

func (p *PopularURLIndex) top(ctx context.Context, db *sql.DB, limit int) ([]PopularURL, error) {
	query := `SELECT ` + popularColumns + `
		FROM popular_urls
		ORDER BY total_analyses DESC, last_analyzed DESC
		LIMIT $1
	`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular urls: %w", err)
	}
	defer rows.Close()

	urls := []PopularURL{}
	for rows.Next() {
		u, err := scanPopular(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan popular url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating popular urls: %w", err)
	}
	rows.Close()

	if err := attachTools(ctx, db, urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// Get returns the row for rawURL after normalization
func (p *PopularURLIndex) Get(ctx context.Context, rawURL string) (*PopularURL, error) {
	normalized, _, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, &ValidationError{Field: "url", Message: err.Error()}
	}

	query := `SELECT ` + popularColumns + ` FROM popular_urls WHERE url_hash = $1`
	var found *PopularURL
	err = readThrough(ctx, p.db, p.reader, func(db *sql.DB) error {
		u, err := scanPopular(db.QueryRowContext(ctx, query, HashURL(normalized)))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPopularURLNotFound
		} else if err != nil {
			return fmt.Errorf("failed to get popular url: %w", err)
		}

		urls := []PopularURL{u}
		if err := attachTools(ctx, db, urls); err != nil {
			return err
		}
		found = &urls[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func attachTools(ctx context.Context, db *sql.DB, urls []PopularURL) error {
	if len(urls) == 0 {
		return nil
	}

	placeholders := make([]string, len(urls))
	args := make([]interface{}, len(urls))
	index := make(map[string]int, len(urls))
	for i, u := range urls {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = u.URLHash
		index[u.URLHash] = i
	}

	query := `
		SELECT url_hash, tool_type FROM popular_url_tools
		WHERE url_hash IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY tool_type ASC
	`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query popular url tools: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var urlHash, tool string
		if err := rows.Scan(&urlHash, &tool); err != nil {
			return fmt.Errorf("failed to scan popular url tool: %w", err)
		}
		if i, ok := index[urlHash]; ok {
			urls[i].ToolsUsed = append(urls[i].ToolsUsed, tool)
		}
	}
	return rows.Err()
}

// RefreshWindows recomputes the rolling 24h, 7d and 30d counters and unique users of
// every row from the event store. It returns the number of rows refreshed.
func (p *PopularURLIndex) RefreshWindows(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	query := `
		UPDATE popular_urls SET
			daily_count = (
				SELECT COUNT(*) FROM analytics_events e
				WHERE e.url_hash = popular_urls.url_hash AND e.event_type = 'tool_usage'
					AND e.created_at >= $1
			),
			weekly_count = (
				SELECT COUNT(*) FROM analytics_events e
				WHERE e.url_hash = popular_urls.url_hash AND e.event_type = 'tool_usage'
					AND e.created_at >= $2
			),
			monthly_count = (
				SELECT COUNT(*) FROM analytics_events e
				WHERE e.url_hash = popular_urls.url_hash AND e.event_type = 'tool_usage'
					AND e.created_at >= $3
			),
			unique_users = (
				SELECT COUNT(DISTINCT e.session_id) FROM analytics_events e
				WHERE e.url_hash = popular_urls.url_hash AND e.event_type = 'tool_usage'
			),
			updated_at = $4
	`
	result, err := p.db.ExecContext(ctx, query,
		now.Add(-24*time.Hour), now.AddDate(0, 0, -7), now.AddDate(0, 0, -30), now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh popular url windows: %w", err)
	}
	return result.RowsAffected()
}
