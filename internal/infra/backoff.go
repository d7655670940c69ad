package infra

import "time"

const (
	backoffBase = 500 * time.Millisecond
	backoffMax  = 30 * time.Second
)

// CalculateBackoff returns the exponential reconnect delay for a retry count:
// backoffBase * 2^retry, capped at backoffMax. Negative counts read as zero.
func CalculateBackoff(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	// 2^26 * 500ms already exceeds the cap; avoid shift overflow past that.
	if retry > 26 {
		return backoffMax
	}
	d := backoffBase * time.Duration(1<<retry)
	if d > backoffMax {
		return backoffMax
	}
	return d
}
