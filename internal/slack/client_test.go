package slack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/prite36/farm-monitor/internal/models"
)

type fakePoster struct {
	err   error
	calls chan string
}

func (f *fakePoster) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	if f.calls != nil {
		f.calls <- channelID
	}
	return channelID, "1", f.err
}

func TestIsRateLimitError(t *testing.T) {
	client := &Client{}

	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "message_limit_exceeded error",
			err:      errors.New("message_limit_exceeded"),
			expected: true,
		},
		{
			name:     "rate_limited error",
			err:      errors.New("rate_limited"),
			expected: true,
		},
		{
			name:     "too_many_requests error",
			err:      errors.New("too_many_requests"),
			expected: true,
		},
		{
			name:     "typed rate limit error",
			err:      &slack.RateLimitedError{RetryAfter: time.Second},
			expected: true,
		},
		{
			name:     "other error",
			err:      errors.New("some other error"),
			expected: false,
		},
		{
			name:     "case insensitive",
			err:      errors.New("MESSAGE_LIMIT_EXCEEDED"),
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := client.isRateLimitError(tc.err)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v for error: %v", tc.expected, result, tc.err)
			}
		})
	}
}

func TestHandleRateLimit(t *testing.T) {
	now := time.Date(2025, 12, 13, 9, 0, 0, 0, time.UTC)
	client := &Client{now: func() time.Time { return now }}

	// message_limit_exceeded gets the longer backoff
	client.handleRateLimit(errors.New("message_limit_exceeded"))
	if got := client.remainingBackoff(); got != 5*time.Minute {
		t.Errorf("Expected 5 minute backoff for message_limit_exceeded, got %v", got)
	}

	client.handleRateLimit(errors.New("rate_limited"))
	if got := client.remainingBackoff(); got != 1*time.Minute {
		t.Errorf("Expected 1 minute backoff for rate_limited, got %v", got)
	}

	client.handleRateLimit(&slack.RateLimitedError{RetryAfter: 3 * time.Minute})
	if got := client.remainingBackoff(); got != 3*time.Minute {
		t.Errorf("Expected Retry-After to be honoured, got %v", got)
	}
}

func TestIsRateLimited(t *testing.T) {
	now := time.Date(2025, 12, 13, 9, 0, 0, 0, time.UTC)
	client := &Client{now: func() time.Time { return now }}

	if client.IsRateLimited() {
		t.Error("Expected client to not be rate limited initially")
	}

	client.handleRateLimit(errors.New("rate_limited"))
	if !client.IsRateLimited() {
		t.Error("Expected client to be rate limited after a rate limit error")
	}

	now = now.Add(2 * time.Minute)
	if client.IsRateLimited() {
		t.Error("Expected client to not be rate limited once the backoff has passed")
	}
}

func TestRateLimitedClientSkipsMessages(t *testing.T) {
	api := &fakePoster{err: errors.New("rate_limited"), calls: make(chan string, 2)}
	client := &Client{api: api, channelID: "C1"}

	client.SendMessage("first")
	client.SendMessage("second")

	if len(api.calls) != 1 {
		t.Errorf("Expected one post before backoff, got %d", len(api.calls))
	}
	if client.SendMessageSafe("third") {
		t.Error("Expected SendMessageSafe to refuse while rate limited")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var client *Client
	client.SendMessage("ignored")
	if client.IsRateLimited() {
		t.Error("Expected nil client to never be rate limited")
	}
	if client.SendMessageSafe("ignored") {
		t.Error("Expected nil client to report nothing sent")
	}
}

type plantMap map[string]models.Plant

func (m plantMap) Plant(id string) (models.Plant, bool) {
	p, ok := m[id]
	return p, ok
}

func TestNotifierAlertsOnProblems(t *testing.T) {
	api := &fakePoster{calls: make(chan string, 4)}
	n := NewNotifier(&Client{api: api, channelID: "C1"}, plantMap{"1": {ID: "1", Field: "North 1", Species: "Tomato"}})

	n.Observe(context.Background(), models.EventEntry{PlantID: "1", Type: models.EventWatered})
	n.Observe(context.Background(), models.EventEntry{PlantID: "1", Type: models.EventProblemMarked})

	select {
	case ch := <-api.calls:
		if ch != "C1" {
			t.Errorf("Expected post to C1, got %s", ch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a problem alert to be posted")
	}

	select {
	case <-api.calls:
		t.Error("Expected watering events to be ignored")
	case <-time.After(50 * time.Millisecond):
	}
}
