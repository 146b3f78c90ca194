package discord

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"discleanse/models"
)

const (
	headerRemaining  = "X-RateLimit-Remaining"
	headerResetAfter = "X-RateLimit-Reset-After"
	headerBucket     = "X-RateLimit-Bucket"
	headerRetryAfter = "Retry-After"

	defaultRetryAfter = time.Second
)

func parseSeconds(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// parseRateLimit reads the budget headers of a response.
func parseRateLimit(h http.Header) models.RateLimitState {
	state := models.RateLimitState{Bucket: h.Get(headerBucket)}
	raw := h.Get(headerRemaining)
	if raw == "" {
		return state
	}
	remaining, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return state
	}
	state.Remaining = remaining
	state.ResetAfter, _ = parseSeconds(h.Get(headerResetAfter))
	state.Present = true
	return state
}

// retryAfter returns how long a 429 asks us to wait. The header wins, the JSON
// body's retry_after is the fallback.
func retryAfter(h http.Header, body []byte) time.Duration {
	if d, ok := parseSeconds(h.Get(headerRetryAfter)); ok {
		return d
	}
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}
	return defaultRetryAfter
}

// routeKey groups paths the way Discord groups buckets: major parameters
// (channel, guild, webhook ids) stay, every other snowflake collapses.
func routeKey(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if i == 0 || !isSnowflake(part) {
			continue
		}
		switch parts[i-1] {
		case "channels", "guilds", "webhooks":
		default:
			parts[i] = ":id"
		}
	}
	return method + " /" + strings.Join(parts, "/")
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type bucketState struct {
	remaining int
	resetAt   time.Time
}

// bucketTable remembers, per rate-limit bucket, the last budget the server
// reported, so a call sharing an exhausted bucket waits before it is issued.
type bucketTable struct {
	mu     sync.Mutex
	routes map[string]string // route key -> bucket id
	states map[string]*bucketState
	now    func() time.Time
}

func newBucketTable(now func() time.Time) *bucketTable {
	return &bucketTable{
		routes: make(map[string]string),
		states: make(map[string]*bucketState),
		now:    now,
	}
}

// reserve returns how long a call on route must wait, and otherwise takes one
// unit of the bucket's remaining budget.
func (t *bucketTable) reserve(route string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.routes[route]
	if !ok {
		return 0
	}
	st, ok := t.states[bucket]
	if !ok {
		return 0
	}
	now := t.now()
	if !now.Before(st.resetAt) {
		delete(t.states, bucket)
		return 0
	}
	if st.remaining > 0 {
		st.remaining--
		return 0
	}
	return st.resetAt.Sub(now)
}

// observe records the budget a response reported for route.
func (t *bucketTable) observe(route string, s models.RateLimitState) {
	if !s.Present {
		return
	}
	bucket := s.Bucket
	if bucket == "" {
		bucket = route
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[route] = bucket
	t.states[bucket] = &bucketState{
		remaining: s.Remaining,
		resetAt:   t.now().Add(s.ResetAfter),
	}
}
