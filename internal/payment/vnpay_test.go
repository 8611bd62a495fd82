package payment

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-ticketing/internal/config"
)

func testVNPay() *VNPay {
	g := NewVNPay(config.VNPayCredentials{
		TmnCode:    "DEMO0001",
		HashSecret: "SECRETSECRETSECRETSECRET",
		PayURL:     "https://sandbox.example.com/paymentv2/vpcpay.html",
		APIURL:     "https://sandbox.example.com/merchant_webapi/api/transaction",
		ReturnURL:  "https://tickets.example.com/payments/vnpay/return",
	}, time.UTC)
	g.now = func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC) }
	return g
}

// paramsFromURL flattens the redirect URL query into the raw string
// map a callback handler would receive.
func paramsFromURL(t *testing.T, rawURL string) map[string]string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	out := map[string]string{}
	for k, vs := range u.Query() {
		out[k] = vs[0]
	}
	return out
}

func TestVNPayBuildRequestShape(t *testing.T) {
	g := testVNPay()
	redirect, err := g.BuildRequest(t.Context(), Request{
		OrderID:   "BK-ABCD2345",
		Amount:    450000,
		OrderInfo: "Bus ticket BK-ABCD2345",
		ClientIP:  "203.0.113.7",
		BankCode:  "NCB",
	})
	require.NoError(t, err)

	p := paramsFromURL(t, redirect)
	assert.Equal(t, "45000000", p["vnp_Amount"], "amount is x100 on the wire")
	assert.Equal(t, "20240115090000", p["vnp_CreateDate"])
	assert.Equal(t, "20240115091500", p["vnp_ExpireDate"], "15 minute expiry window")
	assert.Equal(t, "BK-ABCD2345", p["vnp_TxnRef"])
	assert.Equal(t, "NCB", p["vnp_BankCode"])
	assert.Len(t, p["vnp_SecureHash"], 128, "hex HMAC-SHA512")
}

func TestVNPayRoundTrip(t *testing.T) {
	g := testVNPay()
	redirect, err := g.BuildRequest(t.Context(), Request{
		OrderID:   "BK-ABCD2345",
		Amount:    450000,
		OrderInfo: "Bus ticket BK-ABCD2345",
		ClientIP:  "203.0.113.7",
	})
	require.NoError(t, err)

	params := paramsFromURL(t, redirect)
	params["vnp_ResponseCode"] = "00"
	params["vnp_TransactionNo"] = "14422574"
	// Adding fields invalidates the signature, so re-sign the way the
	// provider would for its callback.
	delete(params, "vnp_SecureHash")
	vals := url.Values{}
	for k, v := range params {
		vals.Set(k, v)
	}
	params["vnp_SecureHash"] = g.sign(vals.Encode())

	cb, err := g.VerifyCallback(params)
	require.NoError(t, err)
	assert.Equal(t, "BK-ABCD2345", cb.OrderID)
	assert.Equal(t, int64(450000), cb.Amount)
	assert.Equal(t, "14422574", cb.TxnRef)
	assert.True(t, cb.Success)
}

func TestVNPayVerifyRejectsMutation(t *testing.T) {
	g := testVNPay()
	redirect, err := g.BuildRequest(t.Context(), Request{
		OrderID: "BK-ABCD2345", Amount: 450000, OrderInfo: "x", ClientIP: "1.2.3.4",
	})
	require.NoError(t, err)
	base := paramsFromURL(t, redirect)

	for _, field := range []string{"vnp_Amount", "vnp_TxnRef", "vnp_TmnCode", "vnp_CreateDate"} {
		params := map[string]string{}
		for k, v := range base {
			params[k] = v
		}
		params[field] = params[field] + "0"
		_, err := g.VerifyCallback(params)
		assert.ErrorIs(t, err, ErrInvalidSignature, "mutated %s must not verify", field)
	}
}

func TestVNPayVerifyRejectsMissingSignature(t *testing.T) {
	g := testVNPay()
	_, err := g.VerifyCallback(map[string]string{"vnp_TxnRef": "BK-X", "vnp_Amount": "100"})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVNPaySecureHashTypeExcludedFromSigning(t *testing.T) {
	g := testVNPay()
	redirect, err := g.BuildRequest(t.Context(), Request{
		OrderID: "BK-ABCD2345", Amount: 1000, OrderInfo: "x", ClientIP: "1.2.3.4",
	})
	require.NoError(t, err)
	params := paramsFromURL(t, redirect)
	params["vnp_SecureHashType"] = "HMACSHA512"

	_, err = g.VerifyCallback(params)
	assert.NoError(t, err)
}
