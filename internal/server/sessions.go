package server

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// SessionInfo describes an encode request that is currently streaming.
type SessionInfo struct {
	// SessionID is the id returned in the X-Session-ID header.
	SessionID string `json:"session_id"`

	// Mode is the SSTV mode being sent.
	Mode string `json:"mode"`

	// Format describes the PCM output, e.g. "48000Hz mono 16-bit".
	Format string `json:"format"`

	// AirTime is the length of the transmission being rendered.
	AirTime time.Duration `json:"air_time"`

	// RemoteAddr is the client address of the request.
	RemoteAddr string `json:"remote_addr"`

	// StartedAt is when encoding began.
	StartedAt time.Time `json:"started_at"`
}

// sessionTable tracks in-flight encode sessions. All methods are safe for
// concurrent use.
type sessionTable struct {
	mu     sync.Mutex
	active map[string]SessionInfo
}

func newSessionTable() *sessionTable {
	return &sessionTable{active: make(map[string]SessionInfo)}
}

// add registers info and returns a func that removes it again.
func (t *sessionTable) add(info SessionInfo) (done func()) {
	t.mu.Lock()
	t.active[info.SessionID] = info
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.active, info.SessionID)
		t.mu.Unlock()
	}
}

// list returns the active sessions, oldest first.
func (t *sessionTable) list() []SessionInfo {
	t.mu.Lock()
	out := make([]SessionInfo, 0, len(t.active))
	for _, s := range t.active {
		out = append(out, s)
	}
	t.mu.Unlock()
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

func (t *sessionTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
