package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/bus-ticketing/internal/config"
)

// zaloEmbedData is the embed_data object serialized into the signed
// string. It is a fixed-field struct, not a map, because encoding/json
// marshals struct fields in declaration order — the serialization must
// be byte-stable or the HMAC changes between two renderings of the
// same logical data.
type zaloEmbedData struct {
	RedirectURL string `json:"redirecturl"`
	BookingCode string `json:"booking_code"`
}

// zaloCallbackData is the JSON document carried in the callback's
// "data" field, parsed only after the MAC over the raw string checks
// out.
type zaloCallbackData struct {
	AppTransID string `json:"app_trans_id"`
	Amount     int64  `json:"amount"`
	ZpTransID  int64  `json:"zp_trans_id"`
	EmbedData  string `json:"embed_data"`
}

// ZaloPay implements the second wallet gateway. Outbound requests sign
// a pipe-joined sequence — appID|orderID|amount|orderInfo|timestamp|
// embedJSON| with the trailing delimiter included — using key1;
// callbacks are verified by re-MACing the raw data string with key2.
type ZaloPay struct {
	creds config.ZaloPayCredentials
	now   func() time.Time
}

// NewZaloPay returns an adapter bound to the given app credentials.
func NewZaloPay(creds config.ZaloPayCredentials) *ZaloPay {
	return &ZaloPay{creds: creds, now: time.Now}
}

// Name implements Gateway.
func (g *ZaloPay) Name() string { return "ZALOPAY" }

func signWith(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// requestData builds the signed string for a create-order call.
func (g *ZaloPay) requestData(orderID string, amount int64, orderInfo string, appTimeMillis int64, embedJSON string) string {
	return strings.Join([]string{
		g.creds.AppID,
		orderID,
		strconv.FormatInt(amount, 10),
		orderInfo,
		strconv.FormatInt(appTimeMillis, 10),
		embedJSON,
	}, "|") + "|"
}

// BuildRequest calls the create-order API and returns the order URL.
// The provider requires the merchant transaction id to be prefixed
// with the yymmdd of creation.
func (g *ZaloPay) BuildRequest(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	now := g.now()
	appTransID := now.Format("060102") + "_" + req.OrderID
	embed, err := json.Marshal(zaloEmbedData{RedirectURL: "", BookingCode: req.OrderID})
	if err != nil {
		return "", err
	}
	appTime := now.UnixMilli()
	mac := signWith(g.creds.Key1, g.requestData(appTransID, req.Amount, req.OrderInfo, appTime, string(embed)))

	body := map[string]interface{}{
		"app_id":       g.creds.AppID,
		"app_trans_id": appTransID,
		"app_user":     req.ClientIP,
		"app_time":     appTime,
		"amount":       req.Amount,
		"description":  req.OrderInfo,
		"embed_data":   string(embed),
		"item":         "[]",
		"mac":          mac,
	}
	resp, err := postJSON(ctx, g.creds.Endpoint, body)
	if err != nil {
		return "", err
	}
	if code, ok := numField(resp, "return_code"); !ok || code != 1 {
		return "", fmt.Errorf("zalopay create order declined: %v (%v)", resp["return_code"], resp["return_message"])
	}
	orderURL, _ := resp["order_url"].(string)
	if orderURL == "" {
		return "", fmt.Errorf("%w: zalopay response missing order_url", ErrGatewayUnavailable)
	}
	return orderURL, nil
}

// VerifyCallback checks the MAC over the raw data string with key2,
// then parses the embedded JSON. The callback is only delivered for
// successful payments, so a verified callback is a settlement.
func (g *ZaloPay) VerifyCallback(raw map[string]string) (Callback, error) {
	data, mac := raw["data"], raw["mac"]
	if data == "" || mac == "" {
		return Callback{}, ErrInvalidSignature
	}
	expected := signWith(g.creds.Key2, data)
	if !hmac.Equal([]byte(strings.ToLower(mac)), []byte(expected)) {
		return Callback{}, ErrInvalidSignature
	}
	var cb zaloCallbackData
	if err := json.Unmarshal([]byte(data), &cb); err != nil {
		return Callback{}, fmt.Errorf("zalopay callback: undecodable data: %v", err)
	}
	// Strip the yymmdd_ prefix to recover our booking code.
	orderID := cb.AppTransID
	if idx := strings.IndexByte(orderID, '_'); idx >= 0 {
		orderID = orderID[idx+1:]
	}
	return Callback{
		OrderID: orderID,
		Amount:  cb.Amount,
		TxnRef:  strconv.FormatInt(cb.ZpTransID, 10),
		Success: true,
	}, nil
}

// Refund initiates a wallet refund. Signed sequence: appID|
// refundID|zpTransID|amount|refundFee|timestamp using key1.
func (g *ZaloPay) Refund(ctx context.Context, req RefundRequest) (RefundStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	now := g.now()
	refundID := now.Format("060102") + "_" + g.creds.AppID + "_" + strconv.FormatInt(now.UnixNano(), 36)
	timestamp := now.UnixMilli()
	data := strings.Join([]string{
		g.creds.AppID,
		refundID,
		req.TxnRef,
		strconv.FormatInt(req.Amount, 10),
		"0",
		strconv.FormatInt(timestamp, 10),
	}, "|")

	body := map[string]interface{}{
		"app_id":      g.creds.AppID,
		"m_refund_id": refundID,
		"zp_trans_id": req.TxnRef,
		"amount":      req.Amount,
		"refund_fee":  0,
		"timestamp":   timestamp,
		"description": req.Reason,
		"mac":         signWith(g.creds.Key1, data),
	}
	endpoint := strings.Replace(g.creds.Endpoint, "/create", "/refund", 1)
	resp, err := postJSON(ctx, endpoint, body)
	if err != nil {
		return RefundRejected, err
	}
	// return_code 1 is final success, 3 is accepted-and-processing.
	if code, ok := numField(resp, "return_code"); ok && (code == 1 || code == 3) {
		return RefundAccepted, nil
	}
	return RefundRejected, fmt.Errorf("zalopay refund declined: %v (%v)", resp["return_code"], resp["return_message"])
}
