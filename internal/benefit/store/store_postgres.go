package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"amparo/internal/benefit/models"
)

// ErrConflict signals a transient storage-level conflict (deadlock or
// serialization failure). The registrar retries these with backoff.
var ErrConflict = errors.New("concurrent ledger write conflict")

// querier lets the same store methods run against the pool or inside a
// transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists the ledger in PostgreSQL. This store is pure I/O;
// eligibility rules belong to the service layer.
type PostgresStore struct {
	db querier
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reportColumns = `id, beneficiary_id, benefit_type, reason, social_worker, provided_at, created_at, last_updated_at, deleted_at`

func (s *PostgresStore) Append(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO benefit_reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL)
	`
	_, err := s.db.ExecContext(ctx, query,
		report.ID,
		report.BeneficiaryID,
		report.BenefitType.String(),
		report.Reason,
		report.SocialWorker,
		report.ProvidedAt,
		report.CreatedAt,
		report.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("append report: %w", translatePQ(err))
	}
	return nil
}

func (s *PostgresStore) LastDelivery(ctx context.Context, beneficiaryID string, benefitType models.BenefitType, countDeleted bool) (*models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM benefit_reports
		WHERE beneficiary_id = $1
		  AND benefit_type = $2
		  AND (deleted_at IS NULL OR $3)
		ORDER BY provided_at DESC, created_at DESC
		LIMIT 1
	`
	report, err := scanReport(s.db.QueryRowContext(ctx, query, beneficiaryID, benefitType.String(), countDeleted))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last delivery: %w", translatePQ(err))
	}
	return report, nil
}

func (s *PostgresStore) UpdateNarrative(ctx context.Context, reportID string, update models.NarrativeUpdate, now time.Time) (*models.Report, error) {
	query := `
		UPDATE benefit_reports
		SET reason = COALESCE($2, reason),
		    social_worker = COALESCE($3, social_worker),
		    last_updated_at = $4
		WHERE id = $1
		RETURNING ` + reportColumns + `
	`
	report, err := scanReport(s.db.QueryRowContext(ctx, query, reportID, update.Reason, update.SocialWorker, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update narrative: %w", translatePQ(err))
	}
	return report, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reportID string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM benefit_reports WHERE id = $1`
	report, err := scanReport(s.db.QueryRowContext(ctx, query, reportID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find report: %w", translatePQ(err))
	}
	return report, nil
}

func (s *PostgresStore) ListByBeneficiary(ctx context.Context, beneficiaryID string, benefitType models.BenefitType) ([]*models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM benefit_reports
		WHERE beneficiary_id = $1
		  AND ($2 = '' OR benefit_type = $2)
		  AND deleted_at IS NULL
		ORDER BY provided_at DESC, created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, beneficiaryID, benefitType.String())
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", translatePQ(err))
	}
	defer rows.Close()

	var out []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", translatePQ(err))
	}
	return out, nil
}

func (s *PostgresStore) Remove(ctx context.Context, reportID string, now time.Time) error {
	query := `
		UPDATE benefit_reports
		SET deleted_at = $2, last_updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, reportID, now)
	if err != nil {
		return fmt.Errorf("remove report: %w", translatePQ(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove report: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r           models.Report
		benefitType string
		deletedAt   sql.NullTime
	)
	err := row.Scan(
		&r.ID,
		&r.BeneficiaryID,
		&benefitType,
		&r.Reason,
		&r.SocialWorker,
		&r.ProvidedAt,
		&r.CreatedAt,
		&r.LastUpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}
	r.BenefitType = models.BenefitType(benefitType)
	r.ProvidedAt = models.DateOnly(r.ProvidedAt)
	if deletedAt.Valid {
		t := deletedAt.Time
		r.DeletedAt = &t
	}
	return &r, nil
}

// translatePQ maps transient PostgreSQL failures (deadlock, serialization)
// onto ErrConflict so the registrar can retry them.
func translatePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

// PostgresTxRunner scopes the registrar's check-then-append sequence to a
// database transaction holding a pair-scoped advisory lock. Two concurrent
// registrations for the same (beneficiary, type) serialize on the lock;
// different pairs proceed independently. The lock is released on commit and
// rollback alike.
type PostgresTxRunner struct {
	db *sql.DB
}

func NewPostgresTxRunner(db *sql.DB) *PostgresTxRunner {
	return &PostgresTxRunner{db: db}
}

func (r *PostgresTxRunner) RunInTx(ctx context.Context, beneficiaryID string, benefitType models.BenefitType, fn func(Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", translatePQ(err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// hashtextextended gives a stable 64-bit key per pair. Advisory xact
	// locks release automatically on commit or rollback, covering every
	// exit path including panics unwound through the deferred rollback.
	lockKey := beneficiaryID + "/" + benefitType.String()
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return fmt.Errorf("acquire pair lock: %w", translatePQ(err))
	}

	if err := fn(&PostgresStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", translatePQ(err))
	}
	return nil
}
