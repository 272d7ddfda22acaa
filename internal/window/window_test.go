package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/model"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestPlan_Incremental(t *testing.T) {
	w, err := Plan(Params{Latest: ptr(date(2025, 7, 14)), Today: date(2025, 8, 1)})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 7, 7), w.Start)
	assert.Equal(t, date(2025, 8, 1), w.End)
	assert.Equal(t, KindIncremental, w.Kind)
}

func TestPlan_Initial(t *testing.T) {
	w, err := Plan(Params{Today: date(2025, 8, 1)})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 5, 3), w.Start)
	assert.Equal(t, date(2025, 8, 1), w.End)
	assert.Equal(t, KindInitial, w.Kind)
}

func TestPlan_ExplicitStartClamped(t *testing.T) {
	today := date(2025, 8, 1)
	w, err := Plan(Params{
		Latest: ptr(date(2025, 7, 30)),
		Start:  ptr(today.AddDate(0, 0, -200)),
		Today:  today,
	})
	require.NoError(t, err)
	assert.Equal(t, today.AddDate(0, 0, -90), w.Start)
	assert.Equal(t, today, w.End)
	assert.Equal(t, KindExplicit, w.Kind)
}

func TestPlan_ExplicitRangeWithinLimit(t *testing.T) {
	w, err := Plan(Params{
		Start: ptr(date(2025, 7, 1)),
		End:   ptr(date(2025, 7, 15)),
		Today: date(2025, 8, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 7, 1), w.Start)
	assert.Equal(t, date(2025, 7, 15), w.End)
}

func TestPlan_StartAfterTodayClamped(t *testing.T) {
	w, err := Plan(Params{Latest: ptr(date(2025, 8, 20)), Today: date(2025, 8, 1)})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 8, 1), w.Start)
	assert.Equal(t, date(2025, 8, 1), w.End)

	w, err = Plan(Params{Start: ptr(date(2025, 9, 1)), Today: date(2025, 8, 1)})
	require.NoError(t, err)
	assert.Equal(t, w.Start, w.End)
}

func TestPlan_EndOnlyPullsDerivedStartBack(t *testing.T) {
	w, err := Plan(Params{
		Latest: ptr(date(2025, 7, 28)),
		End:    ptr(date(2025, 7, 15)),
		Today:  date(2025, 8, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 7, 15), w.Start)
	assert.Equal(t, date(2025, 7, 15), w.End)
	assert.Equal(t, KindIncremental, w.Kind)

	w, err = Plan(Params{Latest: ptr(date(2025, 7, 10)), End: ptr(date(2025, 7, 20)), Today: date(2025, 8, 1)})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 7, 3), w.Start)
}

func TestPlan_Inverted(t *testing.T) {
	_, err := Plan(Params{
		Start: ptr(date(2025, 7, 20)),
		End:   ptr(date(2025, 7, 10)),
		Today: date(2025, 8, 1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvariant)
}

func TestPlan_TimeOfDayIgnored(t *testing.T) {
	w, err := Plan(Params{Today: time.Date(2025, 8, 1, 23, 45, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, date(2025, 8, 1), w.End)
	assert.Equal(t, "2025-05-03..2025-08-01 (initial)", w.String())
}
