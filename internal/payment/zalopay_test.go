package payment

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-ticketing/internal/config"
)

func testZaloPay() *ZaloPay {
	g := NewZaloPay(config.ZaloPayCredentials{
		AppID:    "2553",
		Key1:     "PcY4iZIKFCIdgZvA6ueMcMHHUbRLYjPL",
		Key2:     "kLtgPl8HHhfvMuDHPwKfgfsY4Ydm9eIz",
		Endpoint: "https://sb-openapi.example.com/v2/create",
	})
	g.now = func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC) }
	return g
}

func TestZaloPayRequestData(t *testing.T) {
	g := testZaloPay()
	raw := g.requestData("240115_BK-ABCD2345", 450000, "Bus ticket", 1705309200000, `{"redirecturl":"","booking_code":"BK-ABCD2345"}`)
	want := `2553|240115_BK-ABCD2345|450000|Bus ticket|1705309200000|{"redirecturl":"","booking_code":"BK-ABCD2345"}|`
	assert.Equal(t, want, raw, "pipe-joined with the trailing delimiter included")
}

func TestZaloPayEmbedDataByteStable(t *testing.T) {
	// The embed JSON is part of the signed string, so two renderings
	// of the same value must be byte-identical.
	a, err := json.Marshal(zaloEmbedData{BookingCode: "BK-ABCD2345"})
	require.NoError(t, err)
	b, err := json.Marshal(zaloEmbedData{BookingCode: "BK-ABCD2345"})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"redirecturl":"","booking_code":"BK-ABCD2345"}`, string(a))
}

func zaloCallback(t *testing.T, g *ZaloPay, data zaloCallbackData) map[string]string {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return map[string]string{
		"data": string(raw),
		"mac":  signWith(g.creds.Key2, string(raw)),
		"type": "1",
	}
}

func TestZaloPayVerifyCallback(t *testing.T) {
	g := testZaloPay()
	params := zaloCallback(t, g, zaloCallbackData{
		AppTransID: "240115_BK-ABCD2345",
		Amount:     450000,
		ZpTransID:  240115000000123,
		EmbedData:  `{"redirecturl":"","booking_code":"BK-ABCD2345"}`,
	})

	cb, err := g.VerifyCallback(params)
	require.NoError(t, err)
	assert.Equal(t, "BK-ABCD2345", cb.OrderID, "yymmdd_ prefix stripped")
	assert.Equal(t, int64(450000), cb.Amount)
	assert.Equal(t, "240115000000123", cb.TxnRef)
	assert.True(t, cb.Success)
}

func TestZaloPayVerifyRejectsWrongKey(t *testing.T) {
	g := testZaloPay()
	params := zaloCallback(t, g, zaloCallbackData{AppTransID: "240115_BK-X", Amount: 1000, ZpTransID: 1})
	// key1 signs outbound requests; a callback MACed with it must be
	// rejected.
	params["mac"] = signWith(g.creds.Key1, params["data"])

	_, err := g.VerifyCallback(params)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestZaloPayVerifyRejectsMutation(t *testing.T) {
	g := testZaloPay()
	params := zaloCallback(t, g, zaloCallbackData{AppTransID: "240115_BK-X", Amount: 1000, ZpTransID: 1})
	params["data"] = strings.Replace(params["data"], `"amount":1000`, `"amount":9000`, 1)

	_, err := g.VerifyCallback(params)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestZaloPayVerifyRejectsMissingFields(t *testing.T) {
	g := testZaloPay()
	_, err := g.VerifyCallback(map[string]string{"data": `{}`})
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = g.VerifyCallback(map[string]string{"mac": "abc"})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
