package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/domain"
)

// HeadlineRepository is the time-bounded headline cache. Each fetch cycle
// replaces a feed's batch; readers see only rows inside the freshness window.
type HeadlineRepository struct {
	db *sqlx.DB
}

// headlineSQL represents a headline for SQL operations
type headlineSQL struct {
	ID        int64      `db:"id"`
	FeedName  string     `db:"feed_name"`
	Pos       int        `db:"pos"`
	Title     string     `db:"title"`
	Link      string     `db:"link"`
	GUID      string     `db:"guid"`
	Published *time.Time `db:"published"`
	LogoFile  string     `db:"logo_file"`
	FetchedAt time.Time  `db:"fetched_at"`
}

// NewHeadlineRepository creates a new headline repository
func NewHeadlineRepository(database *sqlx.DB) *HeadlineRepository {
	return &HeadlineRepository{db: database}
}

// ReplaceBatch atomically replaces the cached headlines for a feed with a
// freshly fetched batch. Order of the slice is preserved via pos.
func (r *HeadlineRepository) ReplaceBatch(ctx context.Context, feedName string, headlines []domain.Headline) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("begin replace batch: %w", err)}
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM headlines WHERE feed_name = ?", feedName); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("clear feed batch: %w", err)}
		}

		// OR IGNORE drops in-batch duplicates instead of failing the feed,
		// feeds repeating a guid within one fetch are common in the wild
		query := `
			INSERT OR IGNORE INTO headlines (feed_name, pos, title, link, guid, published, logo_file, fetched_at)
			VALUES (:feed_name, :pos, :title, :link, :guid, :published, :logo_file, :fetched_at)
		`
		for i, h := range headlines {
			sqlHeadline := &headlineSQL{
				FeedName:  feedName,
				Pos:       i,
				Title:     h.Title,
				Link:      h.Link,
				GUID:      h.GUID,
				LogoFile:  h.LogoFile,
				FetchedAt: h.FetchedAt,
			}
			if !h.Published.IsZero() {
				published := h.Published
				sqlHeadline.Published = &published
			}
			if _, err := tx.NamedExecContext(ctx, query, sqlHeadline); err != nil {
				if isLockError(err) {
					return err
				}
				return &criticalError{err: fmt.Errorf("insert headline: %w", err)}
			}
		}

		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("commit replace batch: %w", err)}
		}
		return nil
	}, errCritical)
}

// GetFresh returns headlines fetched within the freshness window, ordered
// by feed name and original feed position. Callers apply display order.
func (r *HeadlineRepository) GetFresh(ctx context.Context, window time.Duration) ([]domain.Headline, error) {
	query := `
		SELECT * FROM headlines
		WHERE fetched_at >= ?
		ORDER BY feed_name, pos
	`
	cutoff := time.Now().Add(-window)

	var sqlHeadlines []headlineSQL
	if err := r.db.SelectContext(ctx, &sqlHeadlines, query, cutoff); err != nil {
		return nil, fmt.Errorf("get fresh headlines: %w", err)
	}

	headlines := make([]domain.Headline, len(sqlHeadlines))
	for i, h := range sqlHeadlines {
		headlines[i] = r.toDomainHeadline(&h)
	}
	return headlines, nil
}

// GetFreshByFeed returns fresh headlines for a single feed in feed order
func (r *HeadlineRepository) GetFreshByFeed(ctx context.Context, feedName string, window time.Duration) ([]domain.Headline, error) {
	query := `
		SELECT * FROM headlines
		WHERE feed_name = ? AND fetched_at >= ?
		ORDER BY pos
	`
	cutoff := time.Now().Add(-window)

	var sqlHeadlines []headlineSQL
	if err := r.db.SelectContext(ctx, &sqlHeadlines, query, feedName, cutoff); err != nil {
		return nil, fmt.Errorf("get fresh headlines for %s: %w", feedName, err)
	}

	headlines := make([]domain.Headline, len(sqlHeadlines))
	for i, h := range sqlHeadlines {
		headlines[i] = r.toDomainHeadline(&h)
	}
	return headlines, nil
}

// PurgeExpired deletes headlines older than the freshness window and
// returns the number of removed rows
func (r *HeadlineRepository) PurgeExpired(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := time.Now().Add(-window)
	res, err := r.db.ExecContext(ctx, "DELETE FROM headlines WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired headlines: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get purge count: %w", err)
	}
	return removed, nil
}

// LastUpdate returns the most recent fetch time across all feeds, zero
// when the cache is empty. Selects the column directly rather than MAX so
// the driver keeps the declared timestamp type.
func (r *HeadlineRepository) LastUpdate(ctx context.Context) (time.Time, error) {
	var last time.Time
	err := r.db.GetContext(ctx, &last, "SELECT fetched_at FROM headlines ORDER BY fetched_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last update: %w", err)
	}
	return last, nil
}

// toDomainHeadline converts headlineSQL to domain.Headline
func (r *HeadlineRepository) toDomainHeadline(sqlHeadline *headlineSQL) domain.Headline {
	h := domain.Headline{
		FeedName:  sqlHeadline.FeedName,
		Title:     sqlHeadline.Title,
		Link:      sqlHeadline.Link,
		GUID:      sqlHeadline.GUID,
		LogoFile:  sqlHeadline.LogoFile,
		FetchedAt: sqlHeadline.FetchedAt,
	}
	if sqlHeadline.Published != nil {
		h.Published = *sqlHeadline.Published
	}
	return h
}
