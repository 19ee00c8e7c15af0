package service

import "sync"

// breaker tracks consecutive counter-store errors. After failureThreshold
// consecutive failures the circuit opens and checks go straight to the
// in-process fallback; after successThreshold consecutive primary successes
// it closes again.
type breaker struct {
	mu               sync.Mutex
	open             bool
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

func newBreaker() *breaker {
	return &breaker{
		failureThreshold: 5,
		successThreshold: 3,
	}
}

func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// recordFailure registers a primary-store error and reports whether the
// circuit is (now) open.
func (b *breaker) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.successCount = 0
	if b.open {
		return true
	}
	if b.failureCount >= b.failureThreshold {
		b.open = true
	}
	return b.open
}

// recordSuccess registers a primary-store success and reports whether the
// circuit is closed afterwards.
func (b *breaker) recordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.open = false
			b.failureCount = 0
			b.successCount = 0
		}
		return !b.open
	}
	b.failureCount = 0
	return true
}
