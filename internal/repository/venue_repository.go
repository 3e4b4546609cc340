package repository

import (
	"context"
	"database/sql"

	"github.com/eventbooker/eventbooker/internal/model"
)

// VenueRepo manages persistence for venues.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the given DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo { return &VenueRepo{db: db} }

// ListAll returns every venue ordered by name.
func (r *VenueRepo) ListAll(ctx context.Context) ([]model.Venue, error) {
	const q = `SELECT id, name, location, capacity, created_at, updated_at FROM venues ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Venue, 0)
	for rows.Next() {
		var (
			v   model.Venue
			cap sql.NullInt32
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.Location, &cap, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		if cap.Valid {
			c := uint32(cap.Int32)
			v.Capacity = &c
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Create inserts a new venue and assigns the generated ID back to v.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	const q = `INSERT INTO venues (name, location, capacity) VALUES (?, ?, ?)`
	var cap any
	if v.Capacity != nil {
		cap = *v.Capacity
	}
	res, err := r.db.ExecContext(ctx, q, v.Name, v.Location, cap)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}
