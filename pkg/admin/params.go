package admin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/txn2/storefront/pkg/audit"
)

const (
	paramStartTime = "start_time"
	paramEndTime   = "end_time"
	pathParamID    = "id"
)

// queryParams reads typed query parameters and collects every malformed
// value so a handler can reject the request once.
type queryParams struct {
	q    url.Values
	errs []string
}

func newQueryParams(u *url.URL) *queryParams {
	return &queryParams{q: u.Query()}
}

func (p *queryParams) get(key string) string {
	return p.q.Get(key)
}

func (p *queryParams) invalid(key, want string) {
	p.errs = append(p.errs, fmt.Sprintf("%s must be %s", key, want))
}

// time parses an RFC3339 timestamp.
func (p *queryParams) time(key string) *time.Time {
	v := p.q.Get(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		p.invalid(key, "an RFC3339 timestamp")
		return nil
	}
	return &t
}

// window reads start_time and end_time.
func (p *queryParams) window() audit.Window {
	w := audit.Window{Start: p.time(paramStartTime), End: p.time(paramEndTime)}
	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		p.errs = append(p.errs, "end_time must not be before start_time")
	}
	return w
}

// boolean parses an optional true/false flag.
func (p *queryParams) boolean(key string) *bool {
	v := p.q.Get(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.invalid(key, "true or false")
		return nil
	}
	return &b
}

// positive parses an optional positive integer; absent is zero.
func (p *queryParams) positive(key string) int {
	v := p.q.Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.invalid(key, "a positive integer")
		return 0
	}
	return n
}

// operation parses an optional operation name.
func (p *queryParams) operation(key string) audit.Operation {
	op := audit.Operation(p.q.Get(key))
	if op != "" && !op.Valid() {
		p.invalid(key, "a recorded operation")
		return ""
	}
	return op
}

// err returns the collected problems, or nil.
func (p *queryParams) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid query: %s", strings.Join(p.errs, "; "))
}
