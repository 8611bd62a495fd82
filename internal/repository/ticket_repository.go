package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/bus-ticketing/internal/model"
)

// TicketRepo provides persistence for tickets and their passengers.
// Lifecycle transitions are implemented as single-statement
// compare-and-set updates guarded on the current status: the WHERE
// clause only matches a VALID, unused ticket, so of two concurrent
// transitions exactly one observes RowsAffected == 1. The loser gets
// ErrTicketConflict and the caller re-reads the row to report the
// winning state.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying sql.DB for multi-repository transactions.
func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketColumns = `id, code, booking_id, trip_id, status, is_used, used_at, used_by, amount, changed_to, pdf_path, created_at, updated_at`

func scanTicket(row interface{ Scan(...interface{}) error }) (*model.Ticket, error) {
	var t model.Ticket
	var usedAt sql.NullTime
	var usedBy, pdfPath sql.NullString
	var changedTo sql.NullInt64
	err := row.Scan(&t.ID, &t.Code, &t.BookingID, &t.TripID, &t.Status, &t.IsUsed,
		&usedAt, &usedBy, &t.Amount, &changedTo, &pdfPath, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if usedAt.Valid {
		v := usedAt.Time
		t.UsedAt = &v
	}
	if usedBy.Valid {
		v := usedBy.String
		t.UsedBy = &v
	}
	if changedTo.Valid {
		v := uint64(changedTo.Int64)
		t.ChangedTo = &v
	}
	if pdfPath.Valid {
		v := pdfPath.String
		t.PDFPath = &v
	}
	return &t, nil
}

// GetByID returns a single ticket or ErrTicketNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	return scanTicket(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *TicketRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	return scanTicket(tx.QueryRowContext(ctx, q, id))
}

// GetByCode locates a ticket by its public code.
func (r *TicketRepo) GetByCode(ctx context.Context, code string) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE code = ?`
	return scanTicket(r.db.QueryRowContext(ctx, q, code))
}

// GetByCodeTx is GetByCode inside the caller's transaction.
func (r *TicketRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE code = ?`
	return scanTicket(tx.QueryRowContext(ctx, q, code))
}

// GetByBookingID returns the ticket issued against a booking, or
// ErrTicketNotFound when none has been generated yet.
func (r *TicketRepo) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE booking_id = ?`
	return scanTicket(r.db.QueryRowContext(ctx, q, bookingID))
}

// ListByContact returns all tickets whose booking matches the given
// phone or email.  Exactly one of phone/email is non-empty; the OTP
// lookup flow has already validated ownership of the contact channel.
func (r *TicketRepo) ListByContact(ctx context.Context, phone, email string) ([]model.Ticket, error) {
	q := `SELECT t.` + strings.ReplaceAll(ticketColumns, ", ", ", t.") + `
          FROM tickets t JOIN bookings b ON b.id = t.booking_id WHERE `
	var arg string
	if phone != "" {
		q += `b.contact_phone = ?`
		arg = phone
	} else {
		q += `b.contact_email = ?`
		arg = email
	}
	q += ` ORDER BY t.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CreateTx inserts a new VALID ticket within the provided transaction
// and populates the generated ID.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	const q = `INSERT INTO tickets (code, booking_id, trip_id, status, is_used, amount)
               VALUES (?, ?, ?, 'VALID', 0, ?)`
	res, err := tx.ExecContext(ctx, q, t.Code, t.BookingID, t.TripID, t.Amount)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrTicketExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.Status = model.TicketValid
	return nil
}

// CreatePassengersTx inserts the passenger manifest for a ticket in a
// single statement.  Passing an empty slice has no effect.
func (r *TicketRepo) CreatePassengersTx(ctx context.Context, tx *sql.Tx, ticketID uint64, passengers []model.Passenger) error {
	if len(passengers) == 0 {
		return nil
	}
	query := `INSERT INTO ticket_passengers (ticket_id, full_name, phone, seat_label) VALUES `
	args := make([]interface{}, 0, len(passengers)*4)
	for i, p := range passengers {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, ticketID, p.FullName, p.Phone, p.SeatLabel)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// PassengersByTicket lists the passengers on a ticket.
func (r *TicketRepo) PassengersByTicket(ctx context.Context, ticketID uint64) ([]model.Passenger, error) {
	const q = `SELECT id, full_name, phone, seat_label FROM ticket_passengers WHERE ticket_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, ticketID)
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

// PassengersByTicketTx is PassengersByTicket inside a transaction.
func (r *TicketRepo) PassengersByTicketTx(ctx context.Context, tx *sql.Tx, ticketID uint64) ([]model.Passenger, error) {
	const q = `SELECT id, full_name, phone, seat_label FROM ticket_passengers WHERE ticket_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, ticketID)
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

// MarkUsedTx atomically transitions a VALID, unused ticket to USED,
// recording the verifier identity and boarding time.  RowsAffected 0
// means the guard did not match and the transition is reported as
// ErrTicketConflict.
func (r *TicketRepo) MarkUsedTx(ctx context.Context, tx *sql.Tx, ticketID uint64, verifier string, at time.Time) error {
	const q = `UPDATE tickets SET status = 'USED', is_used = 1, used_at = ?, used_by = ?
               WHERE id = ? AND status = 'VALID' AND is_used = 0`
	res, err := tx.ExecContext(ctx, q, at.UTC().Format("2006-01-02 15:04:05"), verifier, ticketID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTicketConflict
	}
	return nil
}

// MarkCancelledTx atomically transitions a VALID, unused ticket to
// CANCELLED under the same guard as MarkUsedTx.
func (r *TicketRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, ticketID uint64) error {
	const q = `UPDATE tickets SET status = 'CANCELLED'
               WHERE id = ? AND status = 'VALID' AND is_used = 0`
	res, err := tx.ExecContext(ctx, q, ticketID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTicketConflict
	}
	return nil
}

// MarkChangedTx atomically transitions a VALID, unused ticket to
// CHANGED and links it to its successor.  The old row becomes an
// immutable historical record.
func (r *TicketRepo) MarkChangedTx(ctx context.Context, tx *sql.Tx, ticketID, newTicketID uint64) error {
	const q = `UPDATE tickets SET status = 'CHANGED', changed_to = ?
               WHERE id = ? AND status = 'VALID' AND is_used = 0`
	res, err := tx.ExecContext(ctx, q, newTicketID, ticketID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTicketConflict
	}
	return nil
}

// SetPDFPath records the generated artifact location for a ticket.
func (r *TicketRepo) SetPDFPath(ctx context.Context, ticketID uint64, path string) error {
	const q = `UPDATE tickets SET pdf_path = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, path, ticketID)
	return err
}
