package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTargetPrefersPhone(t *testing.T) {
	tgt, err := NewTarget("0901 234 567", "someone@example.com")
	require.NoError(t, err)
	assert.Equal(t, KindPhone, tgt.Kind)
	assert.Equal(t, "0901234567", tgt.Value)
}

func TestNewTargetEmailNormalized(t *testing.T) {
	tgt, err := NewTarget("", "  Someone@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, KindEmail, tgt.Kind)
	assert.Equal(t, "someone@example.com", tgt.Value)
}

func TestNewTargetRequiresOne(t *testing.T) {
	_, err := NewTarget("", "")
	assert.ErrorIs(t, err, ErrNoTarget)

	// A phone consisting only of separators is as good as absent.
	_, err = NewTarget(" - . ", "")
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestNormalizePhoneKeepsLeadingPlus(t *testing.T) {
	assert.Equal(t, "+84901234567", normalizePhone("+84 90-123.45.67"))
	assert.Equal(t, "84901234567", normalizePhone("8 4 9 0 1 2 3 4 5 6 7+"))
}

func TestGenerateCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q contains non-digit", code)
		}
	}
}

func TestStoreUnavailableWithoutRedis(t *testing.T) {
	s := NewStore(nil, 0, 0)
	_, _, err := s.Issue(t.Context(), Target{Kind: KindPhone, Value: "0900000000"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Verify(t.Context(), Target{Kind: KindPhone, Value: "0900000000"}, "123456"), ErrUnavailable)
}

func TestChallengeKeyIsTargetScoped(t *testing.T) {
	a := key(PurposeTicketLookup, Target{Kind: KindPhone, Value: "0901"})
	b := key(PurposeTicketLookup, Target{Kind: KindEmail, Value: "0901"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, "otp:ticket-lookup:phone:0901", a)
}
