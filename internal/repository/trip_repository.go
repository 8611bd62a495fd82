// Package repository contains data access logic for the ticketing
// engine. This file covers trips: the schedule rows that bookings and
// tickets point at. Departure timestamps are stored in UTC DATETIME
// columns and surfaced as time.Time thanks to parseTime=true on the
// MySQL DSN.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/bus-ticketing/internal/model"
)

// TripRepo manages persistence for trips.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo returns a new TripRepo bound to the given database.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *TripRepo) DB() *sql.DB { return r.db }

const tripColumns = `id, route_from, route_to, departure_at, fare, vehicle_plate, created_at, updated_at`

func scanTrip(row interface{ Scan(...interface{}) error }) (*model.Trip, error) {
	var t model.Trip
	err := row.Scan(&t.ID, &t.RouteFrom, &t.RouteTo, &t.DepartureAt, &t.Fare, &t.VehiclePlate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetByID returns a single trip or ErrTripNotFound.
func (r *TripRepo) GetByID(ctx context.Context, id uint64) (*model.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`
	return scanTrip(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx is GetByID executed within the caller's transaction.
func (r *TripRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Trip, error) {
	const q = `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`
	return scanTrip(tx.QueryRowContext(ctx, q, id))
}

// Search returns trips filtered by optional origin, destination and
// departure date (YYYY-MM-DD, matched against the UTC day).  Results
// are ordered by departure time ascending.  An empty filter returns
// the next departures capped at 100 rows.
func (r *TripRepo) Search(ctx context.Context, from, to, date string) ([]model.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE 1=1`
	args := make([]interface{}, 0, 3)
	if s := strings.TrimSpace(from); s != "" {
		q += ` AND route_from = ?`
		args = append(args, s)
	}
	if s := strings.TrimSpace(to); s != "" {
		q += ` AND route_to = ?`
		args = append(args, s)
	}
	if s := strings.TrimSpace(date); s != "" {
		q += ` AND DATE(departure_at) = ?`
		args = append(args, s)
	}
	q += ` ORDER BY departure_at ASC LIMIT 100`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	trips := make([]model.Trip, 0)
	for rows.Next() {
		var t model.Trip
		if err := rows.Scan(&t.ID, &t.RouteFrom, &t.RouteTo, &t.DepartureAt, &t.Fare, &t.VehiclePlate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trips, nil
}
