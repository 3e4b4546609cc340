// Package repository contains data access logic for the event catalog.
// This file defines EventRepo. Events are created and edited by
// administrators; the booking flow reads them inside its transaction so
// the unit price used for the total is the price at that instant.
package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/eventbooker/eventbooker/internal/model"
)

// EventRepo manages persistence for catalog events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB. It allows callers to begin
// transactions spanning multiple repositories, which the booking
// orchestrator relies on.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, name, description, event_date, venue, location, artist, image, category, ticket_price_cents, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var (
		ev   model.Event
		desc sql.NullString
	)
	err := row.Scan(
		&ev.ID, &ev.Name, &desc, &ev.EventDate, &ev.Venue,
		&ev.Location, &ev.Artist, &ev.Image, &ev.Category,
		&ev.TicketPriceCents, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return model.Event{}, err
	}
	if desc.Valid {
		ev.Description = desc.String
	}
	return ev, nil
}

// ListAll returns every event ordered by event date ascending, soonest
// first. Optional filters narrow by location and category; empty strings
// disable a filter.
func (r *EventRepo) ListAll(ctx context.Context, location, category string) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	var (
		conds []string
		args  []any
	)
	if location != "" {
		conds = append(conds, "location = ?")
		args = append(args, strings.ToLower(location))
	}
	if category != "" {
		conds = append(conds, "category = ?")
		args = append(args, strings.ToLower(category))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY event_date ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetByID returns a single event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	ev, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return model.Event{}, ErrEventNotFound
	}
	return ev, err
}

// GetByIDTx is like GetByID but reads within the caller's transaction.
// The booking orchestrator uses it so the price feeding the ticket total
// is read under the same transaction that inserts the ticket.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	ev, err := scanEvent(tx.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return model.Event{}, ErrEventNotFound
	}
	return ev, err
}

// Create inserts a new event and assigns the generated ID plus DB default
// timestamps back onto the given struct.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events (name, description, event_date, venue, location, artist, image, category, ticket_price_cents)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		ev.Name, ev.Description, ev.EventDate, ev.Venue,
		strings.ToLower(ev.Location), ev.Artist, ev.Image, strings.ToLower(ev.Category),
		ev.TicketPriceCents,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM events WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, ev.ID).Scan(&ev.CreatedAt, &ev.UpdatedAt)
}

// EventUpdate carries optional new values for an event. Nil fields are
// left untouched. Price edits only affect tickets created afterwards;
// existing tickets keep the total copied at booking time.
type EventUpdate struct {
	Name             *string
	Description      *string
	EventDate        *string // "YYYY-MM-DD HH:MM:SS" UTC
	Venue            *string
	Location         *string
	Artist           *string
	Image            *string
	Category         *string
	TicketPriceCents *uint64
}

// Update applies the non-nil fields of u to the event. It returns
// ErrEventNotFound when the id does not exist and ErrNoChange when u
// carries no fields.
func (r *EventRepo) Update(ctx context.Context, id uint64, u EventUpdate) error {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.EventDate != nil {
		add("event_date", *u.EventDate)
	}
	if u.Venue != nil {
		add("venue", *u.Venue)
	}
	if u.Location != nil {
		add("location", strings.ToLower(*u.Location))
	}
	if u.Artist != nil {
		add("artist", *u.Artist)
	}
	if u.Image != nil {
		add("image", *u.Image)
	}
	if u.Category != nil {
		add("category", strings.ToLower(*u.Category))
	}
	if u.TicketPriceCents != nil {
		add("ticket_price_cents", *u.TicketPriceCents)
	}
	if len(sets) == 0 {
		return ErrNoChange
	}
	q := "UPDATE events SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing row from a no-op update.
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&exists); err == sql.ErrNoRows {
			return ErrEventNotFound
		} else if err != nil {
			return err
		}
		return ErrNoChange
	}
	return nil
}

// Delete removes an event. Events with existing tickets are protected by
// the foreign key; the driver error is surfaced to the handler as a
// conflict.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
