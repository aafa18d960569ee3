package apmagent

import (
	"sync"
	"time"
)

// failureState is the worker's online/error gate for the transport. It is
// owned exclusively by the worker goroutine's flush path; producers never
// consult or mutate it.
type failureState struct {
	mu          sync.Mutex
	inError     bool
	retryNumber int
	lastCheck   time.Time
}

// shouldTry reports whether a flush attempt is currently permitted.
func (f *failureState) shouldTry() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.inError {
		return true
	}
	cooldown := backoffCooldown(f.retryNumber)
	return now().Sub(f.lastCheck) > cooldown
}

// setSuccess resets the gate to the online state.
func (f *failureState) setSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inError = false
	f.retryNumber = -1
	f.lastCheck = time.Time{}
}

// setFail records a failed send, advancing the backoff.
func (f *failureState) setFail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inError = true
	f.retryNumber++
	f.lastCheck = now()
}

// backoffCooldown computes min(retryNumber, 6)^2 seconds.
func backoffCooldown(retryNumber int) time.Duration {
	n := retryNumber
	if n > 6 {
		n = 6
	}
	if n < 0 {
		n = 0
	}
	return time.Duration(n*n) * time.Second
}
