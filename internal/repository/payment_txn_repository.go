package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// PaymentTxn records one provider transaction (a payment or a refund)
// applied to a booking. The UNIQUE(provider, txn_ref) index makes
// callback processing idempotent: the same provider transaction
// reference delivered twice settles the booking exactly once, no
// matter when the duplicate arrives.
type PaymentTxn struct {
	ID        uint64 // payment_transactions.id
	Provider  string // payment_transactions.provider (VNPAY, MOMO, ZALOPAY)
	TxnRef    string // payment_transactions.txn_ref, provider-assigned
	BookingID uint64 // payment_transactions.booking_id
	Amount    int64  // payment_transactions.amount
	Kind      string // payment_transactions.kind (PAYMENT, REFUND)
	Status    string // payment_transactions.status
}

// PaymentTxnRepo provides access to the payment_transactions table.
type PaymentTxnRepo struct {
	db *sql.DB
}

// NewPaymentTxnRepo returns a new PaymentTxnRepo bound to the database.
func NewPaymentTxnRepo(db *sql.DB) *PaymentTxnRepo { return &PaymentTxnRepo{db: db} }

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// RecordTx inserts a provider transaction within the caller's
// transaction. A unique-key violation on (provider, txn_ref) is
// translated to ErrDuplicateTxn so the settlement handler can
// acknowledge the retry without re-applying it.
func (r *PaymentTxnRepo) RecordTx(ctx context.Context, tx *sql.Tx, t *PaymentTxn) error {
	const q = `INSERT INTO payment_transactions (provider, txn_ref, booking_id, amount, kind, status)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.Provider, t.TxnRef, t.BookingID, t.Amount, t.Kind, t.Status)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrDuplicateTxn
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// Record is RecordTx outside a transaction, used when refund initiation
// is logged after the cancellation transaction already committed.
func (r *PaymentTxnRepo) Record(ctx context.Context, t *PaymentTxn) error {
	const q = `INSERT INTO payment_transactions (provider, txn_ref, booking_id, amount, kind, status)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.Provider, t.TxnRef, t.BookingID, t.Amount, t.Kind, t.Status)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrDuplicateTxn
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}
