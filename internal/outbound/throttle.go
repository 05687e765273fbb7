package outbound

import (
	"sync"
	"time"
)

// PhoneThrottle remembers when each recipient last got a message.
type PhoneThrottle struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewPhoneThrottle(window time.Duration) *PhoneThrottle {
	return &PhoneThrottle{last: make(map[string]time.Time), window: window, now: time.Now}
}

// Touch records a send to phone and reports whether the previous one fell
// inside the window.
func (t *PhoneThrottle) Touch(phone string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for p, at := range t.last {
		if now.Sub(at) >= t.window {
			delete(t.last, p)
		}
	}
	_, recent := t.last[phone]
	t.last[phone] = now
	return recent
}
