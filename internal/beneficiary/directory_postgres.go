package beneficiary

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresDirectory answers existence checks against the beneficiaries
// table maintained by the identity service.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Exists(ctx context.Context, beneficiaryID string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM beneficiaries WHERE id = $1)`, beneficiaryID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("beneficiary lookup: %w", err)
	}
	return exists, nil
}
