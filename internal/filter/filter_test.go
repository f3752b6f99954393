package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestWindowHalfOpen(t *testing.T) {
	w := Window{Begin: date(2018, 6, 1, 0), End: date(2018, 6, 3, 0)}

	assert.True(t, w.Contains(date(2018, 6, 1, 0)), "begin is inclusive")
	assert.True(t, w.Contains(date(2018, 6, 2, 23)))
	assert.False(t, w.Contains(date(2018, 6, 3, 0)), "end is exclusive")
	assert.False(t, w.Contains(date(2018, 5, 31, 23)))
}

func TestWindowUnbounded(t *testing.T) {
	assert.True(t, Window{}.Contains(date(1999, 1, 1, 0)))
	assert.True(t, Window{End: date(2018, 6, 3, 0)}.Contains(date(1999, 1, 1, 0)))
	assert.False(t, Window{Begin: date(2018, 6, 3, 0)}.Contains(date(1999, 1, 1, 0)))
}

func TestCollectionWindowLooksBackOneDay(t *testing.T) {
	w := CollectionWindow(date(2018, 6, 10, 0), date(2018, 6, 12, 0))

	assert.Equal(t, date(2018, 6, 9, 0), w.Begin)
	assert.Equal(t, date(2018, 6, 12, 0), w.End)

	// the whole lookback day is included, the end day is not
	assert.True(t, w.Contains(date(2018, 6, 9, 0)))
	assert.True(t, w.Contains(time.Date(2018, 6, 11, 23, 59, 59, 0, time.UTC)))
	assert.False(t, w.Contains(date(2018, 6, 8, 23)))
	assert.False(t, w.Contains(date(2018, 6, 12, 0)))
}

func TestCollectionWindowTruncatesToDays(t *testing.T) {
	w := CollectionWindow(date(2018, 6, 10, 15), date(2018, 6, 12, 8))

	assert.Equal(t, date(2018, 6, 9, 0), w.Begin)
	assert.Equal(t, date(2018, 6, 12, 0), w.End)
}

func TestDay(t *testing.T) {
	w := Day(date(2018, 6, 10, 15))
	assert.Equal(t, date(2018, 6, 10, 0), w.Begin)
	assert.Equal(t, date(2018, 6, 11, 0), w.End)
}

func TestApply(t *testing.T) {
	records := []model.Record{
		{NodePath: "/a", CommandType: model.CommandStatus, Timestamp: date(2018, 6, 1, 1)},
		{NodePath: "/a", CommandType: model.CommandChild, Timestamp: date(2018, 6, 1, 2)},
		{NodePath: "/b", CommandType: model.CommandStatus, Timestamp: date(2018, 6, 1, 3)},
		{NodePath: "/a", CommandType: model.CommandStatus, Timestamp: date(2018, 6, 2, 4)},
	}

	got := Apply(records, ForNode("/a"), StatusOnly(), InWindow(Day(date(2018, 6, 1, 0))))
	if assert.Len(t, got, 1) {
		assert.Equal(t, date(2018, 6, 1, 1), got[0].Timestamp)
	}

	assert.Len(t, Apply(records), len(records))
}
