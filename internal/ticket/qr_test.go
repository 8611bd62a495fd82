package ticket

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRCodecRoundTrip(t *testing.T) {
	codec := NewQRCodec("qr-signing-secret")
	const code = "TKT-20240115-ABCD2345"

	payload := codec.Encode(code)
	require.True(t, strings.HasPrefix(payload, code+"."), payload)
	require.Len(t, payload, len(code)+1+qrTokenHexLen)

	got, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, code, got)
}

func TestQRCodecRejectsTamperedPayloads(t *testing.T) {
	codec := NewQRCodec("qr-signing-secret")
	const code = "TKT-20240115-ABCD2345"
	payload := codec.Encode(code)

	cases := map[string]string{
		"bare code without token": code,
		"empty payload":           "",
		"token only":              payload[len(code):],
		"trailing dot":            code + ".",
		"truncated token":         payload[:len(payload)-1],
		"flipped token byte":      payload[:len(payload)-1] + flipHex(payload[len(payload)-1]),
		"different code same token": "TKT-20240115-ABCD2346" +
			payload[len(code):],
		"garbage code": "DROP-TABLE-TICKETS00." + payload[len(code)+1:],
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(bad)
			assert.ErrorIs(t, err, ErrBadQR)
		})
	}
}

func TestQRCodecSecretsAreIndependent(t *testing.T) {
	const code = "TKT-20240115-ABCD2345"
	payload := NewQRCodec("secret-a").Encode(code)

	_, err := NewQRCodec("secret-b").Decode(payload)
	assert.ErrorIs(t, err, ErrBadQR)
}

// flipHex returns a hex digit different from b.
func flipHex(b byte) string {
	if b == 'a' {
		return "b"
	}
	return "a"
}
