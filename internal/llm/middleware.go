package llm

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

type loggingClient struct {
	next   Client
	logger *log.Logger
}

// WithLogging logs every invocation with its duration and outcome.
func WithLogging(logger *log.Logger) Middleware {
	return func(next Client) Client {
		return &loggingClient{next: next, logger: logger}
	}
}

func (c *loggingClient) Name() string { return c.next.Name() }
func (c *loggingClient) Close() error { return c.next.Close() }

func (c *loggingClient) GenerateText(ctx context.Context, prompt, input string) (string, error) {
	start := time.Now()
	out, err := c.next.GenerateText(ctx, prompt, input)
	c.log("GenerateText", start, err)
	return out, err
}

func (c *loggingClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	start := time.Now()
	out, err := c.next.GenerateJSON(ctx, prompt, input)
	c.log("GenerateJSON", start, err)
	return out, err
}

func (c *loggingClient) log(op string, start time.Time, err error) {
	if c.logger == nil {
		return
	}
	if err != nil {
		c.logger.Printf("llm %s %s failed after %s: %v", c.next.Name(), op, time.Since(start).Round(time.Millisecond), err)
		return
	}
	c.logger.Printf("llm %s %s ok in %s", c.next.Name(), op, time.Since(start).Round(time.Millisecond))
}

type retryClient struct {
	next     Client
	attempts int
	backoff  time.Duration
}

// WithRetry retries failed invocations with exponential backoff. The
// context cancels waiting between attempts.
func WithRetry(attempts int, backoff time.Duration) Middleware {
	if attempts < 1 {
		attempts = 1
	}
	return func(next Client) Client {
		return &retryClient{next: next, attempts: attempts, backoff: backoff}
	}
}

func (c *retryClient) Name() string { return c.next.Name() }
func (c *retryClient) Close() error { return c.next.Close() }

func (c *retryClient) GenerateText(ctx context.Context, prompt, input string) (string, error) {
	var out string
	err := c.do(ctx, func() error {
		var err error
		out, err = c.next.GenerateText(ctx, prompt, input)
		return err
	})
	return out, err
}

func (c *retryClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, func() error {
		var err error
		out, err = c.next.GenerateJSON(ctx, prompt, input)
		return err
	})
	return out, err
}

func (c *retryClient) do(ctx context.Context, call func() error) error {
	var err error
	for i := 0; i < c.attempts; i++ {
		if i > 0 {
			if werr := sleepCtx(ctx, c.backoff<<(i-1)); werr != nil {
				return werr
			}
		}
		if err = call(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
