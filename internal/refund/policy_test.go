package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateFullRefundThreeHoursOut(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	dep := now.Add(3 * time.Hour)

	d := Calculate(450000, dep, now)

	assert.Equal(t, 100, d.Percentage)
	assert.Equal(t, int64(450000), d.Amount)
	assert.Equal(t, int64(450000), d.OriginalAmount)
	assert.Equal(t, RuleFull, d.Rule)
	assert.InDelta(t, 3.0, d.HoursUntilDeparture, 0.001)
}

func TestCalculateNoRefundOneHourOut(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	dep := now.Add(1 * time.Hour)

	d := Calculate(450000, dep, now)

	assert.Equal(t, 0, d.Percentage)
	assert.Equal(t, int64(0), d.Amount)
	assert.Equal(t, int64(450000), d.OriginalAmount)
	assert.Equal(t, RuleNone, d.Rule)
}

func TestCalculateBoundaryExactlyTwoHours(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	// >= 2h earns the full refund; one second inside the window does not.
	assert.Equal(t, 100, Calculate(100000, now.Add(2*time.Hour), now).Percentage)
	assert.Equal(t, 0, Calculate(100000, now.Add(2*time.Hour-time.Second), now).Percentage)
}

func TestCalculateDeparturePassed(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	d := Calculate(200000, now.Add(-30*time.Minute), now)

	assert.Equal(t, 0, d.Percentage)
	assert.Equal(t, int64(0), d.Amount)
	assert.Negative(t, d.HoursUntilDeparture)
}

func TestCalculateNeverExceedsOriginal(t *testing.T) {
	now := time.Now().UTC()
	for _, amount := range []int64{0, 1, 99, 450000, 1<<40 - 1} {
		for _, h := range []time.Duration{0, time.Hour, 2 * time.Hour, 72 * time.Hour} {
			d := Calculate(amount, now.Add(h), now)
			assert.GreaterOrEqual(t, d.Amount, int64(0))
			assert.LessOrEqual(t, d.Amount, amount)
		}
	}
}

func TestCalculateNegativeAmountClamped(t *testing.T) {
	now := time.Now().UTC()
	d := Calculate(-500, now.Add(5*time.Hour), now)
	assert.Equal(t, int64(0), d.OriginalAmount)
	assert.Equal(t, int64(0), d.Amount)
}
