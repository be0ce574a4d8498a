package audience

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"okapi/pkg/models"
)

// Directory lists candidate entities for an audience strategy.
type Directory interface {
	ListOwners(ctx context.Context) ([]models.Entity, error)
	ListRenters(ctx context.Context) ([]models.Entity, error)
	ListAccounts(ctx context.Context) ([]models.Entity, error)
}

// PostgresDirectory reads the marketplace account directory. An account
// can appear as both owner and renter; the role flags decide which
// strategies it belongs to.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

const accountColumns = `id, city, is_owner, is_renter, attributes, created_at`

func (d *PostgresDirectory) ListOwners(ctx context.Context) ([]models.Entity, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE is_owner = true ORDER BY id`
	return d.queryEntities(ctx, query, models.EntityKindOwner)
}

func (d *PostgresDirectory) ListRenters(ctx context.Context) ([]models.Entity, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE is_renter = true ORDER BY id`
	return d.queryEntities(ctx, query, models.EntityKindRenter)
}

func (d *PostgresDirectory) ListAccounts(ctx context.Context) ([]models.Entity, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`
	return d.queryEntities(ctx, query, models.EntityKindAccount)
}

func (d *PostgresDirectory) queryEntities(ctx context.Context, query, kind string) ([]models.Entity, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		var e models.Entity
		var city sql.NullString
		var isOwner, isRenter bool
		var attributes []byte

		if err := rows.Scan(&e.ID, &city, &isOwner, &isRenter, &attributes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}

		e.Kind = kind
		if city.Valid {
			e.City = city.String
		}
		if len(attributes) > 0 {
			if err := json.Unmarshal(attributes, &e.Attributes); err != nil {
				return nil, fmt.Errorf("failed to decode account attributes: %w", err)
			}
		}

		entities = append(entities, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entities, nil
}
