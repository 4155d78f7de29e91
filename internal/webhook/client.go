package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/botique-hub/internal/logging"
)

// responseSnippetLimit bounds how much of the target's response body is
// kept on the delivery record.
const responseSnippetLimit = 512

// Task describes one webhook notification to deliver
type Task struct {
	JobID   string
	AgentID string
	URL     string
	Secret  string
	Event   string
	Payload []byte
}

// DeliveryOutcome is the final result of a delivery sequence
type DeliveryOutcome struct {
	Attempts        int
	Success         bool
	Permanent       bool // true when a 4xx stopped delivery early
	LastStatusCode  int  // 0 when no response was ever received
	ErrorText       string
	ResponseSnippet string
}

// Attempt describes a single delivery attempt for logging
type Attempt struct {
	Task       *Task
	Number     int
	StatusCode int
	ErrorText  string
	Final      bool
	Timestamp  time.Time
}

// AttemptLogger records individual delivery attempts. Implementations are
// best-effort observers; their errors and panics never affect delivery.
type AttemptLogger interface {
	LogAttempt(ctx context.Context, attempt *Attempt)
}

// ClientConfig configures the delivery client
type ClientConfig struct {
	MaxAttempts    int           // total attempts per delivery (default 4)
	AttemptTimeout time.Duration // per-attempt HTTP timeout (default 30s)
	BaseDelay      time.Duration // delay before the second attempt; doubles after (default 1s)
}

// DefaultClientConfig returns the production delivery schedule:
// 4 attempts with 0s/1s/2s/4s between them, 30s per attempt.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxAttempts:    4,
		AttemptTimeout: 30 * time.Second,
		BaseDelay:      1 * time.Second,
	}
}

// Client delivers signed webhook notifications with bounded retries.
// Responses in the 4xx range are permanent rejections and stop delivery
// immediately; 5xx responses, timeouts and network errors are transient
// and retried until attempts are exhausted.
type Client struct {
	httpClient *http.Client
	config     *ClientConfig
	logger     AttemptLogger
}

// NewClient creates a delivery client. logger may be nil.
func NewClient(config *ClientConfig, logger AttemptLogger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.AttemptTimeout},
		config:     config,
		logger:     logger,
	}
}

// Deliver runs the full attempt sequence for one task and returns the
// outcome. It blocks the calling goroutine only; run it from a dispatcher
// worker, never from a request handler.
func (c *Client) Deliver(ctx context.Context, task *Task) *DeliveryOutcome {
	outcome := &DeliveryOutcome{}
	delay := c.config.BaseDelay

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				outcome.ErrorText = ctx.Err().Error()
				c.logAttempt(ctx, task, attempt, 0, outcome.ErrorText, true)
				return outcome
			}
			delay *= 2
		}

		outcome.Attempts = attempt
		statusCode, snippet, err := c.attempt(ctx, task)

		switch {
		case err != nil:
			// Network error or timeout: transient.
			outcome.LastStatusCode = 0
			outcome.ErrorText = err.Error()
		case statusCode >= 200 && statusCode < 300:
			outcome.Success = true
			outcome.LastStatusCode = statusCode
			outcome.ErrorText = ""
			outcome.ResponseSnippet = snippet
		case statusCode >= 400 && statusCode < 500:
			outcome.Permanent = true
			outcome.LastStatusCode = statusCode
			outcome.ErrorText = fmt.Sprintf("target rejected notification with status %d", statusCode)
			outcome.ResponseSnippet = snippet
		default:
			outcome.LastStatusCode = statusCode
			outcome.ErrorText = fmt.Sprintf("target returned status %d", statusCode)
			outcome.ResponseSnippet = snippet
		}

		final := outcome.Success || outcome.Permanent || attempt == c.config.MaxAttempts
		c.logAttempt(ctx, task, attempt, outcome.LastStatusCode, outcome.ErrorText, final)

		if final {
			break
		}
	}

	return outcome
}

// attempt performs one signed POST to the target
func (c *Client) attempt(ctx context.Context, task *Task) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.URL, bytes.NewReader(task.Payload))
	if err != nil {
		return 0, "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Botique-Event", task.Event)
	req.Header.Set("X-Botique-Signature", Sign(task.Payload, task.Secret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, responseSnippetLimit))
	return resp.StatusCode, string(snippet), nil
}

// logAttempt reports an attempt to the configured logger. A broken logger
// must never abort delivery, so errors are swallowed and panics recovered.
func (c *Client) logAttempt(ctx context.Context, task *Task, number, statusCode int, errorText string, final bool) {
	if c.logger == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).WithField("panic", r).Warn("Attempt logger panicked")
		}
	}()

	c.logger.LogAttempt(ctx, &Attempt{
		Task:       task,
		Number:     number,
		StatusCode: statusCode,
		ErrorText:  errorText,
		Final:      final,
		Timestamp:  time.Now(),
	})
}
