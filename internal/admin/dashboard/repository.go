package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository runs the aggregation queries. Ranges are half open: [from, to).
type Repository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountUsersCreated(ctx context.Context, from, to time.Time) (int64, error)
	CountPendingRequests(ctx context.Context) (int64, error)
	CountPendingRequestsBefore(ctx context.Context, before time.Time) (int64, error)
	CountVerifiedCertifications(ctx context.Context, from, to time.Time) (int64, error)
	Revenue(ctx context.Context, from, to time.Time) (cents, count int64, err error)
	RecentDecisions(ctx context.Context, limit int) ([]Activity, error)
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepository) CountUsers(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`)
}

func (r *PostgresRepository) CountUsersCreated(ctx context.Context, from, to time.Time) (int64, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM users
		WHERE deleted_at IS NULL AND created_at >= $1 AND created_at < $2`, from, to)
}

func (r *PostgresRepository) CountPendingRequests(ctx context.Context) (int64, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM verification_requests
		WHERE status IN ('QUEUED', 'IN_REVIEW')`)
}

func (r *PostgresRepository) CountPendingRequestsBefore(ctx context.Context, before time.Time) (int64, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM verification_requests
		WHERE status IN ('QUEUED', 'IN_REVIEW') AND created_at < $1`, before)
}

func (r *PostgresRepository) CountVerifiedCertifications(ctx context.Context, from, to time.Time) (int64, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM certifications
		WHERE deleted_at IS NULL AND status = 'VERIFIED'
		  AND decided_at >= $1 AND decided_at < $2`, from, to)
}

func (r *PostgresRepository) Revenue(ctx context.Context, from, to time.Time) (int64, int64, error) {
	var row revenueRow
	err := r.db.GetContext(ctx, &row, `
		SELECT COALESCE(SUM(amount_cents), 0) AS cents, COUNT(*) AS count
		FROM transactions
		WHERE status = 'COMPLETED' AND created_at >= $1 AND created_at < $2`, from, to)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return row.Cents, row.Count, nil
}

func (r *PostgresRepository) RecentDecisions(ctx context.Context, limit int) ([]Activity, error) {
	query := `
		SELECT d.kind, d.record_id, d.title, d.status, d.owner_id,
		       TRIM(u.first_name || ' ' || u.last_name) AS owner_name,
		       d.decided_by, d.decided_at
		FROM (
			SELECT 'experience' AS kind, id AS record_id, title || ' at ' || company AS title,
			       status, user_id AS owner_id, decided_by, decided_at
			FROM work_experiences WHERE decided_at IS NOT NULL AND deleted_at IS NULL
			UNION ALL
			SELECT 'education', id, degree || ', ' || institution,
			       status, user_id, decided_by, decided_at
			FROM educations WHERE decided_at IS NOT NULL AND deleted_at IS NULL
			UNION ALL
			SELECT 'certification', id, name,
			       status, user_id, decided_by, decided_at
			FROM certifications WHERE decided_at IS NOT NULL AND deleted_at IS NULL
		) d
		JOIN users u ON u.id = d.owner_id
		ORDER BY d.decided_at DESC, d.record_id DESC
		LIMIT $1`

	var out []Activity
	if err := r.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load recent decisions: %w", err)
	}
	return out, nil
}
