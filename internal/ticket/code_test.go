package ticket

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeShape(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	code, err := NewCode(now)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(code, "TKT-20240115-"), code)
	assert.True(t, ValidCode(code), code)

	suffix := code[len("TKT-20240115-"):]
	require.Len(t, suffix, codeSuffixLen)
	for _, r := range suffix {
		assert.Contains(t, codeAlphabet, string(r), "suffix %q uses a character outside the alphabet", suffix)
	}
}

func TestNewCodeUnique(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := NewCode(now)
		require.NoError(t, err)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestNewBookingCodeShape(t *testing.T) {
	code, err := NewBookingCode()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(code, "BK-"), code)
	assert.Len(t, code, len("BK-")+codeSuffixLen)
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("TKT-20240115-ABCD2345"))

	for _, bad := range []string{
		"",
		"TKT-20240115-ABCD234",   // suffix too short
		"TKT-20240115-ABCD23456", // suffix too long
		"TKT-2024015-ABCD2345",   // malformed date
		"TKT-20240115-abcd2345",  // lowercase
		"TKT-20240115-ABCD2340",  // 0 not in alphabet
		"BK-ABCD2345",            // booking code, not a ticket code
		"TKT-20240115-ABCD2345.deadbeef",
	} {
		assert.False(t, ValidCode(bad), bad)
	}
}
