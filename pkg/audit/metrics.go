package audit

import (
	"context"
	"fmt"
	"time"
)

// DefaultMetricsWindow is the lookback used when a window has no start.
const DefaultMetricsWindow = 24 * time.Hour

// Breakdown limits.
const (
	DefaultBreakdownLimit = 10
	MaxBreakdownLimit     = 100
)

// Resolution is the bucket width of a timeseries.
type Resolution string

// Supported resolutions.
const (
	ResolutionMinute Resolution = "minute"
	ResolutionHour   Resolution = "hour"
	ResolutionDay    Resolution = "day"
)

// Valid reports whether r is a supported resolution.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionMinute, ResolutionHour, ResolutionDay:
		return true
	default:
		return false
	}
}

// ParseResolution validates s. An empty string means hourly buckets.
func ParseResolution(s string) (Resolution, error) {
	if s == "" {
		return ResolutionHour, nil
	}
	if r := Resolution(s); r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("invalid resolution %q: must be minute, hour, or day", s)
}

// Truncate returns the start of the bucket holding t, in UTC.
func (r Resolution) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch r {
	case ResolutionMinute:
		return t.Truncate(time.Minute)
	case ResolutionDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour)
	}
}

// Dimension is a breakdown group-by attribute.
type Dimension string

// Supported dimensions. DimensionTag counts each invalidated cache tag of an
// event separately.
const (
	DimensionOperation   Dimension = "operation"
	DimensionCountryCode Dimension = "country_code"
	DimensionRegionID    Dimension = "region_id"
	DimensionTag         Dimension = "tag"
)

// Valid reports whether d is a supported dimension.
func (d Dimension) Valid() bool {
	switch d {
	case DimensionOperation, DimensionCountryCode, DimensionRegionID, DimensionTag:
		return true
	default:
		return false
	}
}

// ParseDimension validates s.
func ParseDimension(s string) (Dimension, error) {
	if d := Dimension(s); d.Valid() {
		return d, nil
	}
	return "", fmt.Errorf("invalid group_by %q: must be operation, country_code, region_id, or tag", s)
}

// values returns the dimension values of e. Tags yield one value each.
func (d Dimension) values(e Event) []string {
	switch d {
	case DimensionOperation:
		return []string{string(e.Operation)}
	case DimensionCountryCode:
		return []string{e.CountryCode}
	case DimensionRegionID:
		return []string{e.RegionID}
	case DimensionTag:
		return e.Tags
	default:
		return nil
	}
}

// Window is an optional time range. Missing bounds default to the last
// DefaultMetricsWindow ending now.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Bounds resolves the window against now.
func (w Window) Bounds(now time.Time) (start, end time.Time) {
	end = now
	if w.End != nil {
		end = *w.End
	}
	start = end.Add(-DefaultMetricsWindow)
	if w.Start != nil {
		start = *w.Start
	}
	return start, end
}

// TimeseriesFilter selects a timeseries. An empty Operation counts every
// operation.
type TimeseriesFilter struct {
	Window
	Resolution Resolution
	Operation  Operation
}

// TimeseriesBucket holds counts for a single time bucket.
type TimeseriesBucket struct {
	Bucket        time.Time `json:"bucket"`
	Count         int       `json:"count"`
	SuccessCount  int       `json:"success_count"`
	ErrorCount    int       `json:"error_count"`
	AvgDurationMS float64   `json:"avg_duration_ms"`
}

// BreakdownFilter selects a breakdown.
type BreakdownFilter struct {
	Window
	GroupBy Dimension
	Limit   int
}

// EffectiveLimit applies the default and maximum to Limit.
func (f BreakdownFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultBreakdownLimit
	case f.Limit > MaxBreakdownLimit:
		return MaxBreakdownLimit
	default:
		return f.Limit
	}
}

// BreakdownEntry holds aggregated stats for a single dimension value.
type BreakdownEntry struct {
	Dimension     string  `json:"dimension"`
	Count         int     `json:"count"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Overview summarizes cart activity over a window.
type Overview struct {
	TotalEvents     int     `json:"total_events"`
	SuccessRate     float64 `json:"success_rate"`
	AvgDurationMS   float64 `json:"avg_duration_ms"`
	UniqueSessions  int     `json:"unique_sessions"`
	UniqueCarts     int     `json:"unique_carts"`
	UniqueCustomers int     `json:"unique_customers"`
	OrdersPlaced    int     `json:"orders_placed"`
	Invalidations   int     `json:"invalidations"`
	ErrorCount      int     `json:"error_count"`
}

// MetricsQuerier aggregates cart events. Loggers that can aggregate
// implement it alongside Logger.
type MetricsQuerier interface {
	Timeseries(ctx context.Context, filter TimeseriesFilter) ([]TimeseriesBucket, error)
	Breakdown(ctx context.Context, filter BreakdownFilter) ([]BreakdownEntry, error)
	Overview(ctx context.Context, window Window) (*Overview, error)
}
