package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/bus-ticketing/internal/config"
)

// MoMo implements the wallet gateway whose signing scheme is a fixed
// field sequence, not a sorted one: the concatenation order is part of
// the wire contract and empty fields still contribute their key=
// segment. Reordering or dropping an empty field produces a different
// HMAC even though the logical content is identical.
type MoMo struct {
	creds config.MoMoCredentials
}

// NewMoMo returns an adapter bound to the given partner credentials.
func NewMoMo(creds config.MoMoCredentials) *MoMo {
	return &MoMo{creds: creds}
}

// Name implements Gateway.
func (g *MoMo) Name() string { return "MOMO" }

func (g *MoMo) sign(raw string) string {
	mac := hmac.New(sha256.New, []byte(g.creds.SecretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// requestRawSignature builds the create-payment signing string. The
// field sequence is fixed by the provider: accessKey, amount,
// extraData, ipnUrl, orderId, orderInfo, partnerCode, redirectUrl,
// requestId, requestType.
func (g *MoMo) requestRawSignature(requestID, orderID string, amount int64, orderInfo, extraData, requestType string) string {
	return strings.Join([]string{
		"accessKey=" + g.creds.AccessKey,
		"amount=" + strconv.FormatInt(amount, 10),
		"extraData=" + extraData,
		"ipnUrl=" + g.creds.IPNURL,
		"orderId=" + orderID,
		"orderInfo=" + orderInfo,
		"partnerCode=" + g.creds.PartnerCode,
		"redirectUrl=" + g.creds.RedirectURL,
		"requestId=" + requestID,
		"requestType=" + requestType,
	}, "&")
}

// callbackRawSignature builds the IPN verification string. Same rule,
// different fixed sequence: the provider's notification fields in
// their documented order, prefixed by our access key.
func (g *MoMo) callbackRawSignature(p map[string]string) string {
	return strings.Join([]string{
		"accessKey=" + g.creds.AccessKey,
		"amount=" + p["amount"],
		"extraData=" + p["extraData"],
		"message=" + p["message"],
		"orderId=" + p["orderId"],
		"orderInfo=" + p["orderInfo"],
		"orderType=" + p["orderType"],
		"partnerCode=" + p["partnerCode"],
		"payType=" + p["payType"],
		"requestId=" + p["requestId"],
		"responseTime=" + p["responseTime"],
		"resultCode=" + p["resultCode"],
		"transId=" + p["transId"],
	}, "&")
}

// BuildRequest calls the create-payment API and returns the payUrl the
// customer is sent to.
func (g *MoMo) BuildRequest(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	requestID := uuid.NewString()
	const requestType = "captureWallet"
	raw := g.requestRawSignature(requestID, req.OrderID, req.Amount, req.OrderInfo, "", requestType)

	body := map[string]interface{}{
		"partnerCode": g.creds.PartnerCode,
		"accessKey":   g.creds.AccessKey,
		"requestId":   requestID,
		"amount":      strconv.FormatInt(req.Amount, 10),
		"orderId":     req.OrderID,
		"orderInfo":   req.OrderInfo,
		"redirectUrl": g.creds.RedirectURL,
		"ipnUrl":      g.creds.IPNURL,
		"extraData":   "",
		"requestType": requestType,
		"lang":        "vi",
		"signature":   g.sign(raw),
	}
	resp, err := postJSON(ctx, g.creds.Endpoint, body)
	if err != nil {
		return "", err
	}
	if code, ok := numField(resp, "resultCode"); !ok || code != 0 {
		return "", fmt.Errorf("momo create payment declined: %v (%v)", resp["resultCode"], resp["message"])
	}
	payURL, _ := resp["payUrl"].(string)
	if payURL == "" {
		return "", fmt.Errorf("%w: momo response missing payUrl", ErrGatewayUnavailable)
	}
	return payURL, nil
}

// VerifyCallback validates an IPN delivery. resultCode 0 is the only
// success value; anything else is a failed or abandoned payment that
// still carries a valid signature.
func (g *MoMo) VerifyCallback(raw map[string]string) (Callback, error) {
	received := raw["signature"]
	if received == "" {
		return Callback{}, ErrInvalidSignature
	}
	expected := g.sign(g.callbackRawSignature(raw))
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return Callback{}, ErrInvalidSignature
	}
	amount, err := strconv.ParseInt(raw["amount"], 10, 64)
	if err != nil {
		return Callback{}, fmt.Errorf("momo callback: bad amount %q", raw["amount"])
	}
	return Callback{
		OrderID: raw["orderId"],
		Amount:  amount,
		TxnRef:  raw["transId"],
		Success: raw["resultCode"] == "0",
	}, nil
}

// Refund initiates a wallet refund. Signed sequence: accessKey,
// amount, description, orderId, partnerCode, requestId, transId.
func (g *MoMo) Refund(ctx context.Context, req RefundRequest) (RefundStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	requestID := uuid.NewString()
	refundOrderID := req.OrderID + "-RF-" + requestID[:8]
	raw := strings.Join([]string{
		"accessKey=" + g.creds.AccessKey,
		"amount=" + strconv.FormatInt(req.Amount, 10),
		"description=" + req.Reason,
		"orderId=" + refundOrderID,
		"partnerCode=" + g.creds.PartnerCode,
		"requestId=" + requestID,
		"transId=" + req.TxnRef,
	}, "&")

	body := map[string]interface{}{
		"partnerCode": g.creds.PartnerCode,
		"orderId":     refundOrderID,
		"requestId":   requestID,
		"amount":      strconv.FormatInt(req.Amount, 10),
		"transId":     req.TxnRef,
		"lang":        "vi",
		"description": req.Reason,
		"signature":   g.sign(raw),
	}
	endpoint := strings.Replace(g.creds.Endpoint, "/create", "/refund", 1)
	resp, err := postJSON(ctx, endpoint, body)
	if err != nil {
		return RefundRejected, err
	}
	if code, ok := numField(resp, "resultCode"); ok && code == 0 {
		return RefundAccepted, nil
	}
	return RefundRejected, fmt.Errorf("momo refund declined: %v (%v)", resp["resultCode"], resp["message"])
}
