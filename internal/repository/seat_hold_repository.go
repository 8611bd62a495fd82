package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/iliyamo/bus-ticketing/internal/model"
)

// SeatHoldRepo provides data access to the seat_holds table.  Holds are
// scoped by a booking reference (the exchange flow uses the old ticket's
// code) rather than a user account, since guests hold seats too.  All
// methods compare expirations in UTC.
type SeatHoldRepo struct {
	db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

// ExpireHoldsTx removes all seat holds for a given trip that have expired
// and returns the seat IDs whose holds were removed.  Callers must update
// the corresponding trip_seats status back to FREE for the returned IDs.
// When there are no expired holds, it returns an empty slice and nil error.
func (r *SeatHoldRepo) ExpireHoldsTx(ctx context.Context, tx *sql.Tx, tripID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT seat_id FROM seat_holds WHERE trip_id = ? AND expires_at <= UTC_TIMESTAMP()`,
		tripID,
	)
	if err != nil {
		return nil, err
	}
	var expired []uint64
	for rows.Next() {
		var sid uint64
		if scanErr := rows.Scan(&sid); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		expired = append(expired, sid)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return []uint64{}, nil
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM seat_holds WHERE trip_id = ? AND expires_at <= UTC_TIMESTAMP()`,
		tripID,
	)
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// randomToken generates a random hexadecimal string from n bytes of
// cryptographically secure random data.  It populates the hold_token
// column; for a 64 character hex string, specify 32 bytes.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateMultipleTx inserts multiple seat_holds within the provided
// transaction.  Each hold must specify BookingRef, TripID, SeatID,
// HoldToken and ExpiresAt.  CreatedAt defaults in the database.
// Passing an empty slice has no effect and returns nil.
func (r *SeatHoldRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, holds []model.SeatHold) error {
	if len(holds) == 0 {
		return nil
	}
	query := `INSERT INTO seat_holds (booking_ref, trip_id, seat_id, hold_token, expires_at) VALUES `
	args := make([]interface{}, 0, len(holds)*5)
	for i, h := range holds {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, h.BookingRef, h.TripID, h.SeatID, h.HoldToken, h.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// DeleteByRefAndTripTx removes all seat_holds for the specified booking
// reference and trip, returning the seat IDs that were released so that
// callers may update the associated trip_seats.
func (r *SeatHoldRepo) DeleteByRefAndTripTx(ctx context.Context, tx *sql.Tx, bookingRef string, tripID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT seat_id FROM seat_holds WHERE booking_ref = ? AND trip_id = ?`, bookingRef, tripID)
	if err != nil {
		return nil, err
	}
	var seatIDs []uint64
	for rows.Next() {
		var sid uint64
		if scanErr := rows.Scan(&sid); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		seatIDs = append(seatIDs, sid)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM seat_holds WHERE booking_ref = ? AND trip_id = ?`, bookingRef, tripID); err != nil {
		return nil, err
	}
	return seatIDs, nil
}

// ActiveHoldsByRefAndTripTx retrieves all non-expired seat holds for a
// booking reference and trip.  The delta-payment leg of the exchange
// flow uses this to confirm the held seats are still live before
// completing the swap.
func (r *SeatHoldRepo) ActiveHoldsByRefAndTripTx(ctx context.Context, tx *sql.Tx, bookingRef string, tripID uint64) ([]model.SeatHold, error) {
	const q = `SELECT id, booking_ref, trip_id, seat_id, hold_token, expires_at, created_at
               FROM seat_holds
               WHERE booking_ref = ? AND trip_id = ? AND expires_at > UTC_TIMESTAMP()`
	rows, err := tx.QueryContext(ctx, q, bookingRef, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.SeatHold
	for rows.Next() {
		var h model.SeatHold
		if err := rows.Scan(&h.ID, &h.BookingRef, &h.TripID, &h.SeatID, &h.HoldToken, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holds, nil
}

// GenerateHoldRecords builds seat hold records for the given booking
// reference, trip and seat IDs.  A new random token is generated for
// each seat.  Use with CreateMultipleTx.
func GenerateHoldRecords(bookingRef string, tripID uint64, seatIDs []uint64, expiresAt time.Time) ([]model.SeatHold, error) {
	holds := make([]model.SeatHold, 0, len(seatIDs))
	for _, sid := range seatIDs {
		token, err := randomToken(32)
		if err != nil {
			return nil, err
		}
		holds = append(holds, model.SeatHold{
			BookingRef: bookingRef,
			TripID:     tripID,
			SeatID:     sid,
			HoldToken:  token,
			ExpiresAt:  expiresAt,
		})
	}
	return holds, nil
}
