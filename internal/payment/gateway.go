// Package payment implements the outbound request building, callback
// verification and refund initiation for the three supported payment
// providers. Each provider has its own wire-level signing scheme; the
// serialization feeding the HMAC has to be byte-exact or the provider
// rejects us (and, worse, we would reject them). All request and
// callback shapes are explicit structs — raw parameter maps never
// cross the signature boundary.
package payment

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Request describes one payment to initiate. OrderID is our booking
// code and doubles as the merchant transaction reference; Amount is in
// the smallest currency unit; BankCode is an optional pre-selected
// bank and only meaningful to VNPay.
type Request struct {
	OrderID   string
	Amount    int64
	OrderInfo string
	ClientIP  string
	BankCode  string
}

// Callback is the verified, provider-neutral result of an inbound
// payment notification. TxnRef is the provider-assigned transaction
// id used for idempotent settlement.
type Callback struct {
	OrderID string
	Amount  int64
	TxnRef  string
	Success bool
}

// RefundRequest describes a refund to initiate against an earlier
// settled transaction.
type RefundRequest struct {
	OrderID string
	TxnRef  string
	Amount  int64
	Reason  string
}

// RefundStatus reports how far a refund initiation got. Accepted means
// the provider took the request and will settle asynchronously;
// callers record REFUND_PROCESSING. Anything short of Accepted leaves
// the refund in the out-of-band retry queue.
type RefundStatus string

const (
	RefundAccepted RefundStatus = "ACCEPTED"
	RefundRejected RefundStatus = "REJECTED"
)

// ErrInvalidSignature is returned when an inbound callback's signature
// does not verify. It is always fatal to the callback: a forged or
// corrupted notification must never mark a booking paid.
var ErrInvalidSignature = errors.New("invalid callback signature")

// ErrGatewayUnavailable wraps transport failures and non-2xx responses
// from a provider endpoint.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Gateway is the per-provider adapter. BuildRequest returns either a
// redirect URL (VNPay) or a provider payload/URL obtained from the
// provider's create-order API (MoMo, ZaloPay).
type Gateway interface {
	Name() string
	BuildRequest(ctx context.Context, req Request) (string, error)
	VerifyCallback(params map[string]string) (Callback, error)
	Refund(ctx context.Context, req RefundRequest) (RefundStatus, error)
}

// gatewayTimeout caps every outbound provider call. A timeout during
// refund initiation leaves the ticket cancelled and the refund pending
// for retry; it is never surfaced as a cancellation failure.
const gatewayTimeout = 10 * time.Second

// httpClient is shared by the wallet adapters. The per-call context
// carries the deadline, the client only caps connection reuse.
var httpClient = &http.Client{Timeout: gatewayTimeout}
