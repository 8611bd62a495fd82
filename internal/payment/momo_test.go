package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-ticketing/internal/config"
)

func testMoMo() *MoMo {
	return NewMoMo(config.MoMoCredentials{
		PartnerCode: "MOMOBUS01",
		AccessKey:   "F8BBA842ECF85",
		SecretKey:   "K951B6PE1waDMi640xX08PD3vg6EkVlz",
		Endpoint:    "https://test-payment.example.com/v2/gateway/api/create",
		RedirectURL: "https://tickets.example.com/payments/momo/return",
		IPNURL:      "https://tickets.example.com/v1/payments/momo/ipn",
	})
}

func momoCallbackParams() map[string]string {
	return map[string]string{
		"partnerCode":  "MOMOBUS01",
		"orderId":      "BK-ABCD2345",
		"requestId":    "req-1",
		"amount":       "450000",
		"orderInfo":    "Bus ticket BK-ABCD2345",
		"orderType":    "momo_wallet",
		"transId":      "2588659987",
		"resultCode":   "0",
		"message":      "Successful.",
		"payType":      "qr",
		"responseTime": "1705309200000",
		"extraData":    "",
	}
}

func TestMoMoRequestRawSignature(t *testing.T) {
	g := testMoMo()
	raw := g.requestRawSignature("req-1", "BK-ABCD2345", 450000, "Bus ticket", "", "captureWallet")
	want := "accessKey=F8BBA842ECF85" +
		"&amount=450000" +
		"&extraData=" +
		"&ipnUrl=https://tickets.example.com/v1/payments/momo/ipn" +
		"&orderId=BK-ABCD2345" +
		"&orderInfo=Bus ticket" +
		"&partnerCode=MOMOBUS01" +
		"&redirectUrl=https://tickets.example.com/payments/momo/return" +
		"&requestId=req-1" +
		"&requestType=captureWallet"
	assert.Equal(t, want, raw, "field order and empty-field segments are part of the contract")
}

func TestMoMoVerifyCallback(t *testing.T) {
	g := testMoMo()
	params := momoCallbackParams()
	params["signature"] = g.sign(g.callbackRawSignature(params))

	cb, err := g.VerifyCallback(params)
	require.NoError(t, err)
	assert.Equal(t, "BK-ABCD2345", cb.OrderID)
	assert.Equal(t, int64(450000), cb.Amount)
	assert.Equal(t, "2588659987", cb.TxnRef)
	assert.True(t, cb.Success)
}

func TestMoMoVerifyCallbackFailedPayment(t *testing.T) {
	g := testMoMo()
	params := momoCallbackParams()
	params["resultCode"] = "1006"
	params["message"] = "Transaction denied by user."
	params["signature"] = g.sign(g.callbackRawSignature(params))

	cb, err := g.VerifyCallback(params)
	require.NoError(t, err, "a declined payment still carries a valid signature")
	assert.False(t, cb.Success)
}

func TestMoMoVerifyRejectsMutation(t *testing.T) {
	g := testMoMo()
	base := momoCallbackParams()
	base["signature"] = g.sign(g.callbackRawSignature(base))

	for _, field := range []string{"amount", "orderId", "transId", "resultCode"} {
		params := map[string]string{}
		for k, v := range base {
			params[k] = v
		}
		params[field] = params[field] + "1"
		_, err := g.VerifyCallback(params)
		assert.ErrorIs(t, err, ErrInvalidSignature, "mutated %s must not verify", field)
	}
}

func TestMoMoVerifyRejectsMissingSignature(t *testing.T) {
	g := testMoMo()
	_, err := g.VerifyCallback(momoCallbackParams())
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
