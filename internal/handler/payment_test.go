package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenJSONBody(t *testing.T) {
	// The flattened values feed the provider signature check, so big
	// integer amounts must come out exactly as sent — 2588659987, not
	// 2.588659987e+09.
	body := `{
		"partnerCode": "MOMOBUS01",
		"amount": 450000,
		"transId": 2588659987,
		"resultCode": 0,
		"message": "Successful.",
		"extraData": "",
		"promo": null
	}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/momo/ipn", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	params, err := flattenJSONBody(c)
	require.NoError(t, err)

	assert.Equal(t, "MOMOBUS01", params["partnerCode"])
	assert.Equal(t, "450000", params["amount"])
	assert.Equal(t, "2588659987", params["transId"])
	assert.Equal(t, "0", params["resultCode"])
	assert.Equal(t, "", params["extraData"])
	assert.Equal(t, "", params["promo"])
}

func TestFlattenJSONBodyRejectsGarbage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/momo/ipn", strings.NewReader("not-json"))
	c := e.NewContext(req, httptest.NewRecorder())

	_, err := flattenJSONBody(c)
	assert.Error(t, err)
}
