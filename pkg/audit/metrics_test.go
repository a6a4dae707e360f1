package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolution(t *testing.T) {
	for in, want := range map[string]Resolution{
		"":       ResolutionHour,
		"minute": ResolutionMinute,
		"hour":   ResolutionHour,
		"day":    ResolutionDay,
	} {
		got, err := ParseResolution(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseResolution("week")
	assert.ErrorContains(t, err, "invalid resolution")
}

func TestResolution_Truncate(t *testing.T) {
	ts := time.Date(2026, 3, 1, 13, 47, 31, 0, time.FixedZone("CET", 3600))

	assert.Equal(t, time.Date(2026, 3, 1, 12, 47, 0, 0, time.UTC), ResolutionMinute.Truncate(ts))
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), ResolutionHour.Truncate(ts))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), ResolutionDay.Truncate(ts))
}

func TestParseDimension(t *testing.T) {
	for _, d := range []Dimension{DimensionOperation, DimensionCountryCode, DimensionRegionID, DimensionTag} {
		got, err := ParseDimension(string(d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	_, err := ParseDimension("customer_id")
	assert.ErrorContains(t, err, "invalid group_by")
}

func TestWindow_Bounds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	from := now.Add(-time.Hour)
	to := now.Add(-30 * time.Minute)

	start, end := Window{}.Bounds(now)
	assert.Equal(t, now.Add(-DefaultMetricsWindow), start)
	assert.Equal(t, now, end)

	start, end = Window{Start: &from}.Bounds(now)
	assert.Equal(t, from, start)
	assert.Equal(t, now, end)

	start, end = Window{End: &to}.Bounds(now)
	assert.Equal(t, to.Add(-DefaultMetricsWindow), start, "lookback is relative to the end")
	assert.Equal(t, to, end)
}

func TestBreakdownFilter_EffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultBreakdownLimit, BreakdownFilter{}.EffectiveLimit())
	assert.Equal(t, DefaultBreakdownLimit, BreakdownFilter{Limit: -3}.EffectiveLimit())
	assert.Equal(t, 25, BreakdownFilter{Limit: 25}.EffectiveLimit())
	assert.Equal(t, MaxBreakdownLimit, BreakdownFilter{Limit: 5000}.EffectiveLimit())
}
