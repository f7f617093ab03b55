package cart

import (
	"sync"
	"time"
)

const defaultNoticeTTL = 3 * time.Second

// Level grades a notice for the presentation layer.
type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// Notice is the transient message produced by a cart mutation.
type Notice struct {
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier holds at most one live notice. A new notice replaces the current
// one; there is no queue. Expired notices read as absent.
type Notifier struct {
	mu      sync.Mutex
	current *Notice
	ttl     time.Duration
	now     func() time.Time
}

func NewNotifier(ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = defaultNoticeTTL
	}
	return &Notifier{ttl: ttl, now: time.Now}
}

// Push replaces the current notice.
func (n *Notifier) Push(level Level, message string) {
	if message == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = &Notice{
		Message:   message,
		Level:     level,
		ExpiresAt: n.now().Add(n.ttl),
	}
}

// Current returns the live notice, if any. A notice past its expiry is
// dropped on read.
func (n *Notifier) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	if !n.now().Before(n.current.ExpiresAt) {
		n.current = nil
		return Notice{}, false
	}
	return *n.current, true
}

// Clear dismisses the current notice.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = nil
}
