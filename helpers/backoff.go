package helpers

import "time"

// Backoff paces retry attempts between Min and Max, multiplying the delay
// by K after each consecutive failure. With Min == Max the delay is fixed.
// Not safe for concurrent use, each retry loop owns its own instance.
type Backoff struct {
	Min time.Duration
	Max time.Duration
	K   float32

	next time.Duration
}

// Next returns the delay to wait before the following attempt.
func (b *Backoff) Next(success bool) time.Duration {
	if success || b.next == 0 {
		b.next = b.Min
		return b.next
	}
	b.next = time.Duration(float32(b.next) * b.K)
	if b.next > b.Max {
		b.next = b.Max
	}
	if b.next < b.Min {
		b.next = b.Min
	}
	return b.next
}

func (b *Backoff) Reset() { b.next = 0 }
