package webhooks

import (
	"errors"
	"strings"
	"testing"
	"time"

	"ridehooks/internal/platform/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		err      error
		expected Outcome
	}{
		{"200 OK", 200, nil, OutcomeSuccess},
		{"204 No Content", 204, nil, OutcomeSuccess},
		{"299 edge", 299, nil, OutcomeSuccess},
		{"network error", 0, errors.New("connection refused"), OutcomeRetryable},
		{"timeout", 0, errors.New("context deadline exceeded"), OutcomeRetryable},
		{"500", 500, nil, OutcomeRetryable},
		{"503", 503, nil, OutcomeRetryable},
		{"429 treated like 5xx", 429, nil, OutcomeRetryable},
		{"400", 400, nil, OutcomePermanent},
		{"404", 404, nil, OutcomePermanent},
		{"410", 410, nil, OutcomePermanent},
		{"301 stray redirect", 301, nil, OutcomePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.status, tt.err); got != tt.expected {
				t.Errorf("Classify(%d, %v) = %v, want %v", tt.status, tt.err, got, tt.expected)
			}
		})
	}
}

func TestScheduler_NextDelay(t *testing.T) {
	s := NewScheduler(time.Second, time.Hour)

	for attempt := 1; attempt <= 10; attempt++ {
		base := time.Second << (attempt - 1)
		if base > time.Hour {
			base = time.Hour
		}
		got := s.NextDelay(attempt)
		if got < base {
			t.Errorf("attempt %d: delay %v below base %v", attempt, got, base)
		}
		if got > base+base/2 {
			t.Errorf("attempt %d: delay %v exceeds base+50%% jitter %v", attempt, got, base+base/2)
		}
	}

	// Cap holds even at absurd attempt numbers.
	if got := s.NextDelay(60); got > time.Hour+time.Hour/2 {
		t.Errorf("capped delay %v exceeds cap+jitter", got)
	}
}

func TestScheduler_Apply_RetryableFirstAttempt(t *testing.T) {
	// Scenario: unreachable endpoint on attempt 1.
	s := NewScheduler(time.Second, time.Hour)
	now := time.Now()
	d := &models.Delivery{Status: models.DeliveryInFlight, MaxRetries: 5}

	outcome := s.Apply(d, 0, nil, errors.New("connection refused"), now)

	if outcome != OutcomeRetryable {
		t.Fatalf("expected retryable outcome, got %v", outcome)
	}
	if d.Status != models.DeliveryRetryable {
		t.Errorf("expected status failed_retryable, got %s", d.Status)
	}
	if d.AttemptCount != 1 {
		t.Errorf("expected attempt_count 1, got %d", d.AttemptCount)
	}
	if d.NextAttemptAt <= now.Unix() {
		t.Errorf("next_attempt_at %d not in the future of %d", d.NextAttemptAt, now.Unix())
	}
	if d.LastError == "" {
		t.Error("expected last_error to be recorded")
	}
}

func TestScheduler_Apply_Success(t *testing.T) {
	s := NewScheduler(time.Second, time.Hour)
	d := &models.Delivery{Status: models.DeliveryInFlight, MaxRetries: 5, LastError: "HTTP 500"}

	outcome := s.Apply(d, 200, nil, nil, time.Now())

	if outcome != OutcomeSuccess {
		t.Fatalf("expected success outcome, got %v", outcome)
	}
	if d.Status != models.DeliverySuccess {
		t.Errorf("expected status success, got %s", d.Status)
	}
	if d.LastHTTPStatus == nil || *d.LastHTTPStatus != 200 {
		t.Errorf("expected last_http_status 200, got %v", d.LastHTTPStatus)
	}
	if d.LastError != "" {
		t.Errorf("expected last_error cleared, got %q", d.LastError)
	}
}

func TestScheduler_Apply_PermanentFailure(t *testing.T) {
	// Scenario: 404 exhausts after exactly one attempt.
	s := NewScheduler(time.Second, time.Hour)
	d := &models.Delivery{Status: models.DeliveryInFlight, MaxRetries: 5}

	s.Apply(d, 404, []byte("not found"), nil, time.Now())

	if d.Status != models.DeliveryExhausted {
		t.Errorf("expected status exhausted, got %s", d.Status)
	}
	if d.AttemptCount != 1 {
		t.Errorf("expected attempt_count 1, got %d", d.AttemptCount)
	}
}

func TestScheduler_Apply_ExhaustsAfterMaxRetries(t *testing.T) {
	// Scenario: 500 on every attempt with max_retries=5 ends exhausted after
	// 6 total attempts.
	s := NewScheduler(time.Millisecond, time.Second)
	d := &models.Delivery{Status: models.DeliveryInFlight, MaxRetries: 5}

	for i := 0; i < 6; i++ {
		s.Apply(d, 500, []byte("boom"), nil, time.Now())
		if d.AttemptCount > d.MaxRetries+1 {
			t.Fatalf("attempt_count %d exceeded max_retries+1", d.AttemptCount)
		}
		if i < 5 && d.Status != models.DeliveryRetryable {
			t.Fatalf("attempt %d: expected failed_retryable, got %s", i+1, d.Status)
		}
	}

	if d.Status != models.DeliveryExhausted {
		t.Errorf("expected status exhausted after 6 attempts, got %s", d.Status)
	}
	if d.AttemptCount != 6 {
		t.Errorf("expected attempt_count 6, got %d", d.AttemptCount)
	}
}

func TestScheduler_Apply_TruncatesResponseBody(t *testing.T) {
	s := NewScheduler(time.Second, time.Hour)
	d := &models.Delivery{Status: models.DeliveryInFlight, MaxRetries: 5}

	s.Apply(d, 500, []byte(strings.Repeat("x", 5000)), nil, time.Now())

	if len(d.LastError) != maxErrorBytes {
		t.Errorf("expected last_error truncated to %d bytes, got %d", maxErrorBytes, len(d.LastError))
	}
}
