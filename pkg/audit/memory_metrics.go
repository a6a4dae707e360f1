package audit

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"
)

// snapshot returns the retained events within [start, end].
func (m *MemoryLogger) snapshot(start, end time.Time) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.events)
	}
	out := make([]Event, 0, n)
	for _, e := range m.events[:n] {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// tally accumulates counts for one group of events.
type tally struct {
	count    int
	success  int
	duration int64
}

func (t *tally) add(e Event) {
	t.count++
	if e.Success {
		t.success++
	}
	t.duration += e.DurationMS
}

func (t *tally) avgDuration() float64 {
	if t.count == 0 {
		return 0
	}
	return float64(t.duration) / float64(t.count)
}

func (t *tally) successRate() float64 {
	if t.count == 0 {
		return 0
	}
	return float64(t.success) / float64(t.count)
}

// Timeseries buckets the retained events.
func (m *MemoryLogger) Timeseries(_ context.Context, filter TimeseriesFilter) ([]TimeseriesBucket, error) {
	if !filter.Resolution.Valid() {
		return nil, fmt.Errorf("invalid resolution: %q", filter.Resolution)
	}
	start, end := filter.Bounds(time.Now())

	groups := map[time.Time]*tally{}
	for _, e := range m.snapshot(start, end) {
		if filter.Operation != "" && e.Operation != filter.Operation {
			continue
		}
		b := filter.Resolution.Truncate(e.Timestamp)
		if groups[b] == nil {
			groups[b] = &tally{}
		}
		groups[b].add(e)
	}

	out := make([]TimeseriesBucket, 0, len(groups))
	for b, t := range groups {
		out = append(out, TimeseriesBucket{
			Bucket:        b,
			Count:         t.count,
			SuccessCount:  t.success,
			ErrorCount:    t.count - t.success,
			AvgDurationMS: t.avgDuration(),
		})
	}
	slices.SortFunc(out, func(a, b TimeseriesBucket) int { return a.Bucket.Compare(b.Bucket) })
	return out, nil
}

// Breakdown groups the retained events by a dimension, largest first.
func (m *MemoryLogger) Breakdown(_ context.Context, filter BreakdownFilter) ([]BreakdownEntry, error) {
	if !filter.GroupBy.Valid() {
		return nil, fmt.Errorf("invalid breakdown dimension: %q", filter.GroupBy)
	}
	start, end := filter.Bounds(time.Now())

	groups := map[string]*tally{}
	for _, e := range m.snapshot(start, end) {
		for _, v := range filter.GroupBy.values(e) {
			if groups[v] == nil {
				groups[v] = &tally{}
			}
			groups[v].add(e)
		}
	}

	out := make([]BreakdownEntry, 0, len(groups))
	for v, t := range groups {
		out = append(out, BreakdownEntry{
			Dimension:     v,
			Count:         t.count,
			SuccessRate:   t.successRate(),
			AvgDurationMS: t.avgDuration(),
		})
	}
	slices.SortFunc(out, func(a, b BreakdownEntry) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Dimension, b.Dimension)
	})
	if limit := filter.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Overview summarizes the retained events.
func (m *MemoryLogger) Overview(_ context.Context, window Window) (*Overview, error) {
	start, end := window.Bounds(time.Now())

	var (
		all       tally
		o         Overview
		sessions  = map[string]struct{}{}
		carts     = map[string]struct{}{}
		customers = map[string]struct{}{}
	)
	distinct := func(set map[string]struct{}, v string) {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	for _, e := range m.snapshot(start, end) {
		all.add(e)
		distinct(sessions, e.SessionID)
		distinct(carts, e.CartID)
		distinct(customers, e.CustomerID)
		if e.Operation == OpCompleteOrder && e.Success {
			o.OrdersPlaced++
		}
		o.Invalidations += len(e.Tags)
	}

	o.TotalEvents = all.count
	o.SuccessRate = all.successRate()
	o.AvgDurationMS = all.avgDuration()
	o.UniqueSessions = len(sessions)
	o.UniqueCarts = len(carts)
	o.UniqueCustomers = len(customers)
	o.ErrorCount = all.count - all.success
	return &o, nil
}

// Verify interface compliance.
var _ MetricsQuerier = (*MemoryLogger)(nil)
