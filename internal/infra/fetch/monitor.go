package fetch

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	defaultThrottleBackoff = time.Minute
	defaultBlockBackoff    = 10 * time.Minute
)

// HostStatus is the throttle state of one host.
type HostStatus int

const (
	HostHealthy   HostStatus = iota // No recent throttle response
	HostThrottled                   // Answered 429
	HostBlocked                     // Answered 403
)

type hostState struct {
	status     HostStatus
	until      time.Time
	count429   int
	count403   int
	lastSeenAt time.Time
}

// HostStats summarizes throttle responses for a host.
type HostStats struct {
	Host       string
	Status     HostStatus
	Count429   int
	Count403   int
	RetryAfter time.Duration
}

// HostMonitor tracks hosts that answered 429 or 403 and how long to skip them.
type HostMonitor struct {
	mu    sync.RWMutex
	hosts map[string]*hostState
	now   func() time.Time
}

// NewHostMonitor creates an empty monitor.
func NewHostMonitor() *HostMonitor {
	return &HostMonitor{
		hosts: make(map[string]*hostState),
		now:   time.Now,
	}
}

// RecordThrottle records a 429 or 403 response for host.
// retryAfter is the raw Retry-After header (seconds or HTTP date).
func (m *HostMonitor) RecordThrottle(host string, statusCode int, retryAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	st, ok := m.hosts[host]
	if !ok {
		st = &hostState{}
		m.hosts[host] = st
	}
	st.lastSeenAt = now

	backoff := parseRetryAfter(retryAfter, now)
	switch statusCode {
	case 429:
		st.count429++
		st.status = HostThrottled
		if backoff <= 0 {
			backoff = defaultThrottleBackoff
		}
	case 403:
		// Hosts are blocked only after repeated 403s.
		st.count403++
		if st.count403 < 3 {
			return
		}
		st.status = HostBlocked
		if backoff <= 0 {
			backoff = defaultBlockBackoff
		}
	default:
		return
	}
	st.until = now.Add(backoff)
}

// RetryAfter returns how long host should be skipped, or 0.
func (m *HostMonitor) RetryAfter(host string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.hosts[host]
	if !ok {
		return 0
	}
	if remaining := st.until.Sub(m.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// Status returns the current status of host.
func (m *HostMonitor) Status(host string) HostStatus {
	if m.RetryAfter(host) == 0 {
		return HostHealthy
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hosts[host].status
}

// Stats returns a snapshot for every host seen.
func (m *HostMonitor) Stats() []HostStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	result := make([]HostStats, 0, len(m.hosts))
	for host, st := range m.hosts {
		s := HostStats{
			Host:     host,
			Count429: st.count429,
			Count403: st.count403,
		}
		if remaining := st.until.Sub(now); remaining > 0 {
			s.Status = st.status
			s.RetryAfter = remaining
		}
		result = append(result, s)
	}
	return result
}

func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return t.Sub(now)
	}
	return 0
}
