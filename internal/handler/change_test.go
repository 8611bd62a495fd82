package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeDelta(t *testing.T) {
	// Two passengers move from a 450000 ticket to a 300000/seat trip.
	assert.Equal(t, int64(150000), changeDelta(300000, 2, 450000))

	// Same total fare: nothing owed, swap completes immediately.
	assert.Equal(t, int64(0), changeDelta(225000, 2, 450000))

	// Cheaper trip: negative delta, not refunded but also not owed.
	assert.Equal(t, int64(-150000), changeDelta(150000, 2, 450000))

	// Single passenger upgrades.
	assert.Equal(t, int64(200000), changeDelta(650000, 1, 450000))
}
