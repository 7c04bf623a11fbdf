package llm

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"outbound/internal/config"
)

// Completer is the single entry point the pipeline needs from the
// reasoning service. Keeping it this small lets tests swap in a fake.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Client struct {
	api        *openai.Client
	model      string
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
}

func NewClient(cfg config.Config) *Client {
	rps := cfg.OpenAIRateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	retries := cfg.OpenAIMaxRetries
	if retries < 1 {
		retries = 1
	}
	return &Client{
		api:        openai.NewClient(cfg.OpenAIAPIKey),
		model:      cfg.OpenAIModel,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		timeout:    time.Duration(cfg.OpenAITimeoutMs) * time.Millisecond,
		maxRetries: retries,
	}
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: 0.1,
		})
		cancel()

		if err == nil && len(resp.Choices) > 0 {
			return resp.Choices[0].Message.Content, nil
		}
		if err == nil {
			err = fmt.Errorf("completion returned no choices")
		}
		lastErr = err

		if attempt < c.maxRetries {
			backoff := time.Duration(attempt)*2*time.Second + time.Duration(rand.Intn(1500))*time.Millisecond
			log.Printf("llm attempt=%d failed, retrying in %v: %v", attempt, backoff, err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", c.maxRetries, lastErr)
}
