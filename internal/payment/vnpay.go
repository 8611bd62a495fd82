package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/bus-ticketing/internal/config"
)

// vnpTimeFormat is the yyyyMMddHHmmss timestamp format VNPay expects,
// rendered in the merchant's registered timezone.
const vnpTimeFormat = "20060102150405"

// vnpExpireWindow is the validity window stamped into every payment
// URL; the hosted payment page refuses the transaction afterwards.
const vnpExpireWindow = 15 * time.Minute

// VNPay implements the bank-style redirect gateway. The signing rule:
// build the full parameter set, sort lexicographically by key,
// URL-encode, HMAC-SHA512 the encoded query, hex-encode. The signature
// itself is excluded from the signed string and appended as
// vnp_SecureHash. url.Values.Encode happens to implement the
// sort-then-encode step exactly, so the same helper feeds both the
// signature and the final redirect URL.
type VNPay struct {
	creds config.VNPayCredentials
	tz    *time.Location
	now   func() time.Time
}

// NewVNPay returns an adapter bound to the given merchant credentials.
// Timestamps are rendered in tz, which must match the zone registered
// with the provider.
func NewVNPay(creds config.VNPayCredentials, tz *time.Location) *VNPay {
	return &VNPay{creds: creds, tz: tz, now: time.Now}
}

// Name implements Gateway.
func (g *VNPay) Name() string { return "VNPAY" }

func (g *VNPay) sign(encodedQuery string) string {
	mac := hmac.New(sha512.New, []byte(g.creds.HashSecret))
	mac.Write([]byte(encodedQuery))
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildRequest assembles the hosted-payment-page redirect URL. The
// amount is multiplied by 100 per the provider convention (they divide
// it back out on their side).
func (g *VNPay) BuildRequest(_ context.Context, req Request) (string, error) {
	now := g.now().In(g.tz)
	params := url.Values{}
	params.Set("vnp_Version", "2.1.0")
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", g.creds.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", req.OrderID)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", g.creds.ReturnURL)
	params.Set("vnp_IpAddr", req.ClientIP)
	params.Set("vnp_CreateDate", now.Format(vnpTimeFormat))
	params.Set("vnp_ExpireDate", now.Add(vnpExpireWindow).Format(vnpTimeFormat))
	if req.BankCode != "" {
		params.Set("vnp_BankCode", req.BankCode)
	}
	query := params.Encode() // sorted + URL-encoded
	return g.creds.PayURL + "?" + query + "&vnp_SecureHash=" + g.sign(query), nil
}

// VerifyCallback re-signs the received parameter set (minus the
// signature fields) and compares in constant time. Any mismatch is a
// hard ErrInvalidSignature — a forged callback must never settle a
// booking.
func (g *VNPay) VerifyCallback(raw map[string]string) (Callback, error) {
	received := raw["vnp_SecureHash"]
	if received == "" {
		return Callback{}, ErrInvalidSignature
	}
	params := url.Values{}
	for k, v := range raw {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		params.Set(k, v)
	}
	expected := g.sign(params.Encode())
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return Callback{}, ErrInvalidSignature
	}
	amount, err := strconv.ParseInt(raw["vnp_Amount"], 10, 64)
	if err != nil {
		return Callback{}, fmt.Errorf("vnpay callback: bad amount %q", raw["vnp_Amount"])
	}
	return Callback{
		OrderID: raw["vnp_TxnRef"],
		Amount:  amount / 100,
		TxnRef:  raw["vnp_TransactionNo"],
		Success: raw["vnp_ResponseCode"] == "00",
	}, nil
}

// Refund initiates a refund through the transaction API. The refund
// request signs a pipe-joined field sequence rather than a sorted
// query — a quirk of the provider's transaction endpoints.
func (g *VNPay) Refund(ctx context.Context, req RefundRequest) (RefundStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	requestID := uuid.NewString()
	now := g.now().In(g.tz)
	createDate := now.Format(vnpTimeFormat)
	amount := strconv.FormatInt(req.Amount*100, 10)

	// Signed sequence per the refund API contract: requestId, version,
	// command, tmnCode, transactionType, txnRef, amount, transactionNo,
	// transactionDate, createBy, createDate, ipAddr, orderInfo.
	data := strings.Join([]string{
		requestID, "2.1.0", "refund", g.creds.TmnCode, "02", req.OrderID,
		amount, req.TxnRef, "", "system", createDate, "127.0.0.1", req.Reason,
	}, "|")

	body := map[string]string{
		"vnp_RequestId":       requestID,
		"vnp_Version":         "2.1.0",
		"vnp_Command":         "refund",
		"vnp_TmnCode":         g.creds.TmnCode,
		"vnp_TransactionType": "02",
		"vnp_TxnRef":          req.OrderID,
		"vnp_Amount":          amount,
		"vnp_TransactionNo":   req.TxnRef,
		"vnp_CreateBy":        "system",
		"vnp_CreateDate":      createDate,
		"vnp_IpAddr":          "127.0.0.1",
		"vnp_OrderInfo":       req.Reason,
		"vnp_SecureHash":      g.sign(data),
	}
	resp, err := postJSON(ctx, g.creds.APIURL, body)
	if err != nil {
		return RefundRejected, err
	}
	if resp["vnp_ResponseCode"] == "00" {
		return RefundAccepted, nil
	}
	return RefundRejected, fmt.Errorf("vnpay refund declined: code %v", resp["vnp_ResponseCode"])
}
