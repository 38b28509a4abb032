// Package bedrock wraps the AWS Bedrock Runtime InvokeModel API for the
// structured-extraction calls the interpreters make. The client is
// transport-only: prompt assembly and result interpretation stay with the
// caller.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const anthropicVersion = "bedrock-2023-05-31"

// bedrockAPI is the minimal Bedrock Runtime interface required by Client.
// *bedrockruntime.Client satisfies it.
type bedrockAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// anthropicRequest is the messages-API body shape Bedrock expects for
// Anthropic models.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	System           []anthropicContent `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// anthropicResponse is the minimal response envelope.
type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

// Client invokes an Anthropic model through Bedrock.
type Client struct {
	api         bedrockAPI
	modelID     string
	maxTokens   int
	temperature float64
}

type Option func(*Client)

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// NewClient creates a Client for the given model id (or inference profile
// ARN).
func NewClient(api bedrockAPI, modelID string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("bedrock: model id must not be empty")
	}
	c := &Client{
		api:         api,
		modelID:     modelID,
		maxTokens:   500,
		temperature: 0.1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Invoke sends one system+user prompt pair and returns the model's text
// output joined across content blocks.
func (c *Client) Invoke(ctx context.Context, system, user string) (string, error) {
	req := anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.maxTokens,
		Temperature:      c.temperature,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: user}},
		}},
	}
	if strings.TrimSpace(system) != "" {
		req.System = []anthropicContent{{Type: "text", Text: system}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("bedrock: marshal request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: invoke model: %w", err)
	}

	var payload anthropicResponse
	if err := json.Unmarshal(out.Body, &payload); err != nil {
		return "", fmt.Errorf("bedrock: decode response: %w", err)
	}

	var parts []string
	for _, block := range payload.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", errors.New("bedrock: no text content in response")
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}
