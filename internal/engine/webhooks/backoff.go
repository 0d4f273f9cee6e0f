package webhooks

import (
	"fmt"
	"math/rand"
	"time"

	"ridehooks/internal/platform/models"
)

// maxErrorBytes caps how much of a response body or error string is retained
// on the delivery record.
const maxErrorBytes = 1000

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomePermanent
)

// Classify maps an attempt result to an outcome. A transport error (sendErr
// non-nil) means no HTTP status was observed and is always retryable. 429 is
// treated like a 5xx: the endpoint may recover.
func Classify(status int, sendErr error) Outcome {
	if sendErr != nil {
		return OutcomeRetryable
	}
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == 429 || status >= 500:
		return OutcomeRetryable
	default:
		return OutcomePermanent
	}
}

// Scheduler computes retry eligibility and the terminal state of a delivery
// after each attempt.
type Scheduler struct {
	Base time.Duration
	Cap  time.Duration
}

func NewScheduler(base, cap time.Duration) *Scheduler {
	if base <= 0 {
		base = time.Second
	}
	if cap <= 0 {
		cap = time.Hour
	}
	return &Scheduler{Base: base, Cap: cap}
}

// NextDelay returns the backoff before the given attempt is retried:
// base * 2^(attempt-1), capped, plus random jitter of up to 50% of the
// computed delay so recovering endpoints are not hit in lockstep.
func (s *Scheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.Cap {
			delay = s.Cap
			break
		}
	}
	if delay > s.Cap {
		delay = s.Cap
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

// Apply records one attempt outcome on the delivery: it increments the attempt
// count, stores the observed status and truncated error, and assigns the next
// state. Terminal states (success, exhausted) are never left.
func (s *Scheduler) Apply(d *models.Delivery, status int, body []byte, sendErr error, now time.Time) Outcome {
	outcome := Classify(status, sendErr)

	d.AttemptCount++
	if status > 0 {
		code := status
		d.LastHTTPStatus = &code
	}

	switch outcome {
	case OutcomeSuccess:
		d.Status = models.DeliverySuccess
		d.LastError = ""
	case OutcomeRetryable:
		d.LastError = attemptError(status, body, sendErr)
		if d.AttemptCount <= d.MaxRetries {
			d.Status = models.DeliveryRetryable
			d.NextAttemptAt = now.Add(s.NextDelay(d.AttemptCount)).Unix()
		} else {
			d.Status = models.DeliveryExhausted
		}
	case OutcomePermanent:
		d.LastError = attemptError(status, body, sendErr)
		d.Status = models.DeliveryExhausted
	}
	return outcome
}

func attemptError(status int, body []byte, sendErr error) string {
	if sendErr != nil {
		return truncate(sendErr.Error())
	}
	if len(body) > 0 {
		return truncate(string(body))
	}
	return fmt.Sprintf("HTTP %d", status)
}

func truncate(s string) string {
	if len(s) > maxErrorBytes {
		return s[:maxErrorBytes]
	}
	return s
}
