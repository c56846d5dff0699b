package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/LuisNabil29/billSplitter/internal/metrics"
)

const (
	requestTimeout   = 60 * time.Second
	maxResponseToken = 2000
)

// ErrUnavailable is returned when the circuit breaker is open or the model
// API call fails.
var ErrUnavailable = errors.New("vision service unavailable")

// ErrNoItems is returned when there is nothing to extract or verify.
var ErrNoItems = errors.New("no line items found")

// Client calls the vision model for extraction and verification.
type Client struct {
	api     *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a vision client for the given API key and model name.
func NewClient(apiKey, model string) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "vision",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Client{
		api:     openai.NewClient(apiKey),
		model:   model,
		breaker: breaker,
	}
}

// complete runs one JSON-mode chat completion with the given system prompt,
// receipt image, and user text, and returns the raw JSON content.
func (c *Client) complete(ctx context.Context, operation, systemPrompt, userText, imageBase64, mimeType string) ([]byte, error) {
	start := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: maxResponseToken,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL: fmt.Sprintf("data:%s;base64,%s", mimeType, imageBase64),
							},
						},
						{
							Type: openai.ChatMessagePartTypeText,
							Text: userText,
						},
					},
				},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return nil, fmt.Errorf("empty completion response")
		}
		return []byte(resp.Choices[0].Message.Content), nil
	})

	metrics.VisionRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.VisionRequestsTotal.WithLabelValues(operation, "open_circuit").Inc()
		} else {
			metrics.VisionRequestsTotal.WithLabelValues(operation, "error").Inc()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	metrics.VisionRequestsTotal.WithLabelValues(operation, "success").Inc()
	return result.([]byte), nil
}
