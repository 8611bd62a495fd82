package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/bus-ticketing/internal/model"
)

const boardingGrace = 30 * time.Minute

func validTicket() *model.Ticket {
	return &model.Ticket{Status: model.TicketValid}
}

func TestEffectiveStatus(t *testing.T) {
	departure := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		ticket *model.Ticket
		now    time.Time
		want   string
	}{
		{"valid before departure", validTicket(), departure.Add(-3 * time.Hour), model.TicketValid},
		{"valid inside grace window", validTicket(), departure.Add(29 * time.Minute), model.TicketValid},
		{"valid exactly at grace boundary", validTicket(), departure.Add(boardingGrace), model.TicketValid},
		{"expired after grace window", validTicket(), departure.Add(31 * time.Minute), model.TicketExpired},
		{
			"used ticket never projects expired",
			&model.Ticket{Status: model.TicketUsed, IsUsed: true},
			departure.Add(24 * time.Hour),
			model.TicketUsed,
		},
		{
			"cancelled ticket never projects expired",
			&model.Ticket{Status: model.TicketCancelled},
			departure.Add(24 * time.Hour),
			model.TicketCancelled,
		},
		{
			"changed ticket never projects expired",
			&model.Ticket{Status: model.TicketChanged},
			departure.Add(24 * time.Hour),
			model.TicketChanged,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EffectiveStatus(tc.ticket, departure, boardingGrace, tc.now))
		})
	}
}

func TestCanUse(t *testing.T) {
	departure := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	assert.True(t, CanUse(validTicket(), departure, boardingGrace, departure.Add(-time.Hour)))
	assert.True(t, CanUse(validTicket(), departure, boardingGrace, departure.Add(boardingGrace)))
	assert.False(t, CanUse(validTicket(), departure, boardingGrace, departure.Add(boardingGrace+time.Second)))
	assert.False(t, CanUse(&model.Ticket{Status: model.TicketUsed, IsUsed: true}, departure, boardingGrace, departure))
	assert.False(t, CanUse(&model.Ticket{Status: model.TicketCancelled}, departure, boardingGrace, departure))
	// Inconsistent row: status still VALID but the used flag is set.
	// The flag wins.
	assert.False(t, CanUse(&model.Ticket{Status: model.TicketValid, IsUsed: true}, departure, boardingGrace, departure))
}

func TestCancelAndChangeGuards(t *testing.T) {
	assert.True(t, CanCancel(validTicket()))
	assert.True(t, CanChange(validTicket()))

	for _, status := range []string{model.TicketUsed, model.TicketCancelled, model.TicketChanged} {
		tk := &model.Ticket{Status: status}
		assert.False(t, CanCancel(tk), "status %s", status)
		assert.False(t, CanChange(tk), "status %s", status)
	}
	used := &model.Ticket{Status: model.TicketValid, IsUsed: true}
	assert.False(t, CanCancel(used))
	assert.False(t, CanChange(used))
}
