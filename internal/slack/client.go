package slack

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/prite36/farm-monitor/internal/models"
)

// poster is the part of the Slack API the client needs.
type poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Client wraps the slack client
type Client struct {
	api       poster
	channelID string

	mu           sync.Mutex
	backoffUntil time.Time
	now          func() time.Time
}

// NewClient creates a new slack client. It returns nil when Slack is not configured;
// every method is safe to call on a nil client.
func NewClient(token, channelID string) *Client {
	if token == "" || channelID == "" {
		log.Println("Slack token or channel ID is not configured. Slack notifications will be disabled.")
		return nil
	}
	return &Client{
		api:       slack.New(token),
		channelID: channelID,
		now:       time.Now,
	}
}

// SendMessage sends a simple text message wrapped as an info block.
func (c *Client) SendMessage(message string) {
	if c == nil || c.api == nil {
		return
	}
	c.SendRichMessage(NewInfoMessage("Farm Monitor", message))
}

// SendRichMessage sends a message using block kit options with rate limit handling.
func (c *Client) SendRichMessage(options ...slack.MsgOption) {
	if c == nil || c.api == nil {
		return
	}
	if c.IsRateLimited() {
		log.Printf("[WARN] Skipping Slack message due to rate limit backoff (remaining: %v)", c.remainingBackoff())
		return
	}

	if _, _, err := c.api.PostMessage(c.channelID, options...); err != nil {
		if c.isRateLimitError(err) {
			c.handleRateLimit(err)
		} else {
			log.Printf("[ERROR] Failed to send rich Slack message: %v", err)
		}
	}
}

// isRateLimitError checks if the error is related to rate limiting
func (c *Client) isRateLimitError(err error) bool {
	if _, ok := err.(*slack.RateLimitedError); ok {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limited") ||
		strings.Contains(errStr, "message_limit_exceeded") ||
		strings.Contains(errStr, "too_many_requests")
}

// handleRateLimit suppresses messages for a while after a rate limit error.
func (c *Client) handleRateLimit(err error) {
	backoffDuration := 1 * time.Minute
	if rl, ok := err.(*slack.RateLimitedError); ok && rl.RetryAfter > backoffDuration {
		backoffDuration = rl.RetryAfter
	}
	if strings.Contains(strings.ToLower(err.Error()), "message_limit_exceeded") {
		backoffDuration = 5 * time.Minute
	}

	c.mu.Lock()
	c.backoffUntil = c.clock()().Add(backoffDuration)
	c.mu.Unlock()
	log.Printf("[WARN] Slack rate limit detected (%v). Messages will be suppressed for %v", err, backoffDuration)
}

// IsRateLimited returns true if the client is currently in a rate limit backoff period
func (c *Client) IsRateLimited() bool {
	if c == nil {
		return false
	}
	return c.remainingBackoff() > 0
}

func (c *Client) remainingBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backoffUntil.IsZero() {
		return 0
	}
	return c.backoffUntil.Sub(c.clock()())
}

func (c *Client) clock() func() time.Time {
	if c.now == nil {
		return time.Now
	}
	return c.now
}

// SendMessageSafe sends a message only if not rate limited, returns true if sent
func (c *Client) SendMessageSafe(message string) bool {
	if c == nil || c.IsRateLimited() {
		return false
	}
	c.SendMessage(message)
	return true
}

// SendDigest posts the result of an automatic watering run.
func (c *Client) SendDigest(watered int, s models.Summary, attention []models.PlantView) {
	c.SendRichMessage(NewDigestMessage(watered, s, attention))
}
