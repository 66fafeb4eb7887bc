package scheduler

// Breaker counts consecutive failed cycles. Reaching the threshold trips it
// and starts the count over.
type Breaker struct {
	threshold int
	failures  int
}

func NewBreaker(threshold int) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{threshold: threshold}
}

// Success clears the failure streak.
func (b *Breaker) Success() { b.failures = 0 }

// Failure records one failed cycle. It returns the streak length including
// this failure and whether the breaker tripped.
func (b *Breaker) Failure() (streak int, tripped bool) {
	b.failures++
	streak = b.failures
	if b.failures >= b.threshold {
		b.failures = 0
		return streak, true
	}
	return streak, false
}

// Failures is the current streak.
func (b *Breaker) Failures() int { return b.failures }
