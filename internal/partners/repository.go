package partners

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// Repository is the partners persistence port.
type Repository interface {
	Insert(ctx context.Context, p *Party) error
	Update(ctx context.Context, p Party) error
	Get(ctx context.Context, ownerID int64, kind Kind, id int64) (Party, error)
	List(ctx context.Context, ownerID int64, kind Kind) ([]Party, error)
	Deactivate(ctx context.Context, ownerID int64, kind Kind, id int64) error
	Exists(ctx context.Context, ownerID int64, kind Kind, id int64) (bool, error)
}

// PGRepository is the PostgreSQL-backed partners repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const partyColumns = `id, owner_id, kind, name, contact_name, email, phone, address, is_active, created_at, updated_at`

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.OwnerID, &p.Kind, &p.Name, &p.ContactName, &p.Email, &p.Phone, &p.Address, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, shared.ErrNotFound
	}
	if err != nil {
		return Party{}, fmt.Errorf("partners: scan party: %w", err)
	}
	return p, nil
}

// Insert stores a new party and fills the generated fields.
func (r *PGRepository) Insert(ctx context.Context, p *Party) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO partners (owner_id, kind, name, contact_name, email, phone, address, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, created_at, updated_at`,
		p.OwnerID, p.Kind, p.Name, p.ContactName, p.Email, p.Phone, p.Address).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("partners: insert: %w", err)
	}
	p.IsActive = true
	return nil
}

// Update persists the mutable fields.
func (r *PGRepository) Update(ctx context.Context, p Party) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE partners
		SET name = $4, contact_name = $5, email = $6, phone = $7, address = $8, updated_at = NOW()
		WHERE id = $1 AND kind = $2 AND ($3 = 0 OR owner_id = $3)`,
		p.ID, p.Kind, p.OwnerID, p.Name, p.ContactName, p.Email, p.Phone, p.Address)
	if err != nil {
		return fmt.Errorf("partners: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Get fetches one party. ownerID 0 disables owner scoping (staff access).
func (r *PGRepository) Get(ctx context.Context, ownerID int64, kind Kind, id int64) (Party, error) {
	return scanParty(r.pool.QueryRow(ctx,
		`SELECT `+partyColumns+` FROM partners WHERE id = $1 AND kind = $2 AND ($3 = 0 OR owner_id = $3)`,
		id, kind, ownerID))
}

// List returns the owner's active parties of one kind, ordered by name.
func (r *PGRepository) List(ctx context.Context, ownerID int64, kind Kind) ([]Party, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+partyColumns+` FROM partners WHERE kind = $1 AND ($2 = 0 OR owner_id = $2) AND is_active ORDER BY name`,
		kind, ownerID)
	if err != nil {
		return nil, fmt.Errorf("partners: list: %w", err)
	}
	defer rows.Close()

	var out []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Deactivate retires a party.
func (r *PGRepository) Deactivate(ctx context.Context, ownerID int64, kind Kind, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE partners SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND kind = $2 AND ($3 = 0 OR owner_id = $3)`,
		id, kind, ownerID)
	if err != nil {
		return fmt.Errorf("partners: deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Exists reports whether an active party of the given kind exists.
func (r *PGRepository) Exists(ctx context.Context, ownerID int64, kind Kind, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM partners WHERE id = $1 AND kind = $2 AND ($3 = 0 OR owner_id = $3) AND is_active)`,
		id, kind, ownerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("partners: exists: %w", err)
	}
	return exists, nil
}
