// Package repository handles newsletter subscriber persistence.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aivanceworks/leadform/internal/database"
	"github.com/aivanceworks/leadform/internal/metrics"
	"github.com/aivanceworks/leadform/internal/newsletter"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// SubscriberRepository defines subscriber persistence operations.
type SubscriberRepository interface {
	// Add stores a subscriber. It returns newsletter.ErrAlreadySubscribed
	// when the address is already stored.
	Add(ctx context.Context, email, source string) (*newsletter.Subscriber, error)

	// Get retrieves a subscriber by email.
	Get(ctx context.Context, email string) (*newsletter.Subscriber, error)

	// Exists checks whether an address is subscribed.
	Exists(ctx context.Context, email string) (bool, error)

	// Delete removes a subscriber.
	Delete(ctx context.Context, email string) error

	// Count returns the number of subscribers.
	Count(ctx context.Context) (int64, error)

	// HealthCheck verifies the repository is healthy.
	HealthCheck(ctx context.Context) error
}

var _ newsletter.Store = SubscriberRepository(nil)

// PostgresSubscriberRepository implements SubscriberRepository using PostgreSQL.
type PostgresSubscriberRepository struct {
	pool *database.Pool
}

// NewPostgresSubscriberRepository creates a PostgreSQL-backed repository.
func NewPostgresSubscriberRepository(pool *database.Pool) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{pool: pool}
}

// Add inserts a subscriber. Addresses compare case-insensitively.
func (r *PostgresSubscriberRepository) Add(ctx context.Context, email, source string) (*newsletter.Subscriber, error) {
	defer observe("subscriber_add", time.Now())

	query := `
		INSERT INTO newsletter_subscribers (email, source)
		VALUES ($1, $2)
		ON CONFLICT ((LOWER(email))) DO NOTHING
		RETURNING id, email, source, created_at
	`

	var sub newsletter.Subscriber
	err := r.pool.QueryRow(ctx, query, email, source).Scan(&sub.ID, &sub.Email, &sub.Source, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isDuplicateKeyError(err) {
			return nil, newsletter.ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("failed to add subscriber: %w", err)
	}

	return &sub, nil
}

// Get retrieves a subscriber by email.
func (r *PostgresSubscriberRepository) Get(ctx context.Context, email string) (*newsletter.Subscriber, error) {
	defer observe("subscriber_get", time.Now())

	query := `
		SELECT id, email, source, created_at
		FROM newsletter_subscribers
		WHERE LOWER(email) = LOWER($1)
	`

	var sub newsletter.Subscriber
	err := r.pool.QueryRow(ctx, query, email).Scan(&sub.ID, &sub.Email, &sub.Source, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newsletter.ErrNotSubscribed
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	return &sub, nil
}

// Exists checks whether an address is subscribed.
func (r *PostgresSubscriberRepository) Exists(ctx context.Context, email string) (bool, error) {
	defer observe("subscriber_exists", time.Now())

	query := `SELECT EXISTS(SELECT 1 FROM newsletter_subscribers WHERE LOWER(email) = LOWER($1))`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check subscriber: %w", err)
	}

	return exists, nil
}

// Delete removes a subscriber.
func (r *PostgresSubscriberRepository) Delete(ctx context.Context, email string) error {
	defer observe("subscriber_delete", time.Now())

	result, err := r.pool.Exec(ctx, `DELETE FROM newsletter_subscribers WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}

	if result.RowsAffected() == 0 {
		return newsletter.ErrNotSubscribed
	}

	return nil
}

// Count returns the number of subscribers.
func (r *PostgresSubscriberRepository) Count(ctx context.Context) (int64, error) {
	defer observe("subscriber_count", time.Now())

	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM newsletter_subscribers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return n, nil
}

// HealthCheck verifies the database connection is healthy.
func (r *PostgresSubscriberRepository) HealthCheck(ctx context.Context) error {
	return r.pool.HealthCheck(ctx)
}

func observe(operation string, start time.Time) {
	metrics.RecordDBQuery(operation, time.Since(start))
}

// isDuplicateKeyError checks if the error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
