package rewards

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentWeek(t *testing.T) {
	base := time.UnixMilli(0)
	assert.EqualValues(t, 0, CurrentWeek(base))
	assert.EqualValues(t, 0, CurrentWeek(base.Add(6*24*time.Hour)))
	assert.EqualValues(t, 1, CurrentWeek(base.Add(7*24*time.Hour)))
	assert.EqualValues(t, 2, CurrentWeek(base.Add(14*24*time.Hour)))
}

func TestShouldRunDebounce(t *testing.T) {
	assert.True(t, ShouldRun("", 100), "no marker yet: run")
	assert.True(t, ShouldRun("99", 100))
	assert.False(t, ShouldRun("100", 100), "already processed this week")
	assert.False(t, ShouldRun("101", 100), "clock skew never re-fires")
	assert.True(t, ShouldRun("garbage", 100), "unreadable marker: run rather than stall forever")
}

func TestAmountForRank(t *testing.T) {
	assert.EqualValues(t, 100_000_000, AmountForRank(1).Int64())
	assert.EqualValues(t, 75_000_000, AmountForRank(2).Int64())
	assert.EqualValues(t, 50_000_000, AmountForRank(3).Int64())
	assert.EqualValues(t, 25_000_000, AmountForRank(4).Int64())
	assert.EqualValues(t, 25_000_000, AmountForRank(10).Int64())
}
