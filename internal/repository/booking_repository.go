package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/bus-ticketing/internal/model"
)

// BookingRepo provides CRUD operations for bookings and their
// passengers.  The ticketing engine reads bookings for amount and trip
// data and writes settlement/refund outcomes back; booking creation
// itself happens at purchase time (delta bookings from the exchange
// flow are the one case created here).
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying pool so handlers can begin transactions
// spanning multiple repositories.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, code, trip_id, total_amount, payment_method, payment_status, payment_ref, contact_phone, contact_email, created_at, updated_at`

func scanBooking(row *sql.Row) (*model.Booking, error) {
	var b model.Booking
	var ref sql.NullString
	err := row.Scan(&b.ID, &b.Code, &b.TripID, &b.TotalAmount, &b.PayMethod, &b.PayStatus, &ref, &b.ContactPhone, &b.ContactEmail, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if ref.Valid {
		v := ref.String
		b.PaymentRef = &v
	}
	return &b, nil
}

// GetByID returns a single booking or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return scanBooking(r.db.QueryRowContext(ctx, q, id))
}

// GetByCode returns a single booking located by its public code.
func (r *BookingRepo) GetByCode(ctx context.Context, code string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE code = ?`
	return scanBooking(r.db.QueryRowContext(ctx, q, code))
}

// GetByIDTx is GetByID inside the caller's transaction, locking the row
// FOR UPDATE so settlement and cash-confirmation cannot race.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	return scanBooking(tx.QueryRowContext(ctx, q, id))
}

// CreateTx inserts a new booking within the provided transaction and
// populates the generated ID.  The exchange workflow uses this to open
// a PENDING delta booking when the replacement fare is higher.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (code, trip_id, total_amount, payment_method, payment_status, contact_phone, contact_email)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.Code, b.TripID, b.TotalAmount, b.PayMethod, b.PayStatus, b.ContactPhone, b.ContactEmail)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// SetPaymentStatusTx updates the payment status (and optionally the
// provider reference) of a booking within a transaction.
func (r *BookingRepo) SetPaymentStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status string, paymentRef *string) error {
	if paymentRef != nil {
		const q = `UPDATE bookings SET payment_status = ?, payment_ref = ? WHERE id = ?`
		_, err := tx.ExecContext(ctx, q, status, *paymentRef, bookingID)
		return err
	}
	const q = `UPDATE bookings SET payment_status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, bookingID)
	return err
}

// SetPaymentStatus is the non-transactional variant used by the refund
// initiation path, which runs after the cancellation transaction has
// already committed.
func (r *BookingRepo) SetPaymentStatus(ctx context.Context, bookingID uint64, status string) error {
	const q = `UPDATE bookings SET payment_status = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, status, bookingID)
	return err
}

// PassengersByBookingTx lists the passengers recorded on a booking.
func (r *BookingRepo) PassengersByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.Passenger, error) {
	const q = `SELECT id, full_name, phone, seat_label FROM booking_passengers WHERE booking_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Passenger, 0)
	for rows.Next() {
		var p model.Passenger
		if err := rows.Scan(&p.ID, &p.FullName, &p.Phone, &p.SeatLabel); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
