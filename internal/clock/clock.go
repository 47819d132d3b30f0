// Package clock is a settable wall clock kept as an offset from the system
// time, standing in for a battery backed RTC.
package clock

import (
	"sync"
	"time"
)

type RTC struct {
	mu     sync.RWMutex
	offset time.Duration
	now    func() time.Time
}

func New() *RTC {
	return &RTC{now: time.Now}
}

// NewForTest pins the underlying system clock.
func NewForTest(now func() time.Time) *RTC {
	return &RTC{now: now}
}

func (r *RTC) Now() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now().Add(r.offset)
}

func (r *RTC) Set(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offset = t.Sub(r.now())
}
