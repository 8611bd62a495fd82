package repository // repository for trip seat persistence

import (
	"context"
	"database/sql"
	"strings"
)

// TripSeatRepo encapsulates database operations for trip_seats.  Seat
// status moves between FREE, HELD and RESERVED; all bulk operations are
// transaction-scoped because the exchange workflow must hold seats and
// transition tickets atomically.
type TripSeatRepo struct {
	db *sql.DB
}

// NewTripSeatRepo constructs a TripSeatRepo given a DB handle.
func NewTripSeatRepo(db *sql.DB) *TripSeatRepo { return &TripSeatRepo{db: db} }

// ResolveSeatIDsTx maps seat labels to trip_seats row IDs for a trip.
// Labels that do not exist on the trip are simply absent from the
// returned map; callers treat missing labels as unavailable.
func (r *TripSeatRepo) ResolveSeatIDsTx(ctx context.Context, tx *sql.Tx, tripID uint64, labels []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(labels))
	if len(labels) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(labels))
	args := make([]interface{}, 0, len(labels)+1)
	args = append(args, tripID)
	for _, l := range labels {
		placeholders = append(placeholders, "?")
		args = append(args, l)
	}
	q := `SELECT id, seat_label FROM trip_seats WHERE trip_id = ? AND seat_label IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		out[label] = id
	}
	return out, rows.Err()
}

// FilterHoldableSeatsTx returns the subset of the given seat IDs that
// are currently FREE for the trip.  Rows are locked FOR UPDATE so a
// concurrent hold attempt on the same seats blocks until this
// transaction resolves.
func (r *TripSeatRepo) FilterHoldableSeatsTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatIDs []uint64) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return []uint64{}, nil
	}
	placeholders := make([]string, 0, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, tripID)
	for _, id := range seatIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT id FROM trip_seats WHERE trip_id = ? AND status = 'FREE' AND id IN (` +
		strings.Join(placeholders, ",") + `) FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var free []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		free = append(free, id)
	}
	return free, rows.Err()
}

// BulkUpdateStatusTx sets the status of the given seats on a trip.
// Passing an empty slice has no effect and returns nil.
func (r *TripSeatRepo) BulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, tripID uint64, seatIDs []uint64, status string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, status, tripID)
	for _, id := range seatIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `UPDATE trip_seats SET status = ?, version = version + 1 WHERE trip_id = ? AND id IN (` +
		strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// ReleaseByLabelsTx returns seats identified by label to FREE.  Used by
// cancellation, where the seats being released come from the ticket's
// passenger rows rather than from hold records.
func (r *TripSeatRepo) ReleaseByLabelsTx(ctx context.Context, tx *sql.Tx, tripID uint64, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(labels))
	args := make([]interface{}, 0, len(labels)+1)
	args = append(args, tripID)
	for _, l := range labels {
		placeholders = append(placeholders, "?")
		args = append(args, l)
	}
	q := `UPDATE trip_seats SET status = 'FREE', version = version + 1 WHERE trip_id = ? AND seat_label IN (` +
		strings.Join(placeholders, ",") + `)`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// LabelsByIDsTx returns the seat labels for the given trip_seats IDs.
func (r *TripSeatRepo) LabelsByIDsTx(ctx context.Context, tx *sql.Tx, seatIDs []uint64) (map[uint64]string, error) {
	out := make(map[uint64]string, len(seatIDs))
	if len(seatIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(seatIDs))
	args := make([]interface{}, 0, len(seatIDs))
	for _, id := range seatIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT id, seat_label FROM trip_seats WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		out[id] = label
	}
	return out, rows.Err()
}
