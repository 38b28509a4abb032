// Package ragworker invokes the retrieval Lambda that answers triage
// questions with snippets from the clinic's knowledge base.
package ragworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"intake-router/internal/domain"
)

// lambdaAPI is the minimal Lambda interface required by Client.
// *lambda.Client satisfies it.
type lambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type retrieveRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type retrieveResponse struct {
	Documents []domain.RAGDocument `json:"documents"`
}

// Client calls the retrieval worker synchronously. An unconfigured
// function name disables retrieval rather than failing the request.
type Client struct {
	api          lambdaAPI
	functionName string
}

// NewClient creates a Client. functionName may be empty; Retrieve then
// returns no documents.
func NewClient(api lambdaAPI, functionName string) (*Client, error) {
	if api == nil && strings.TrimSpace(functionName) != "" {
		return nil, errors.New("ragworker: api must not be nil")
	}
	return &Client{api: api, functionName: strings.TrimSpace(functionName)}, nil
}

// Enabled reports whether a retrieval worker is configured.
func (c *Client) Enabled() bool {
	return c.functionName != ""
}

// Retrieve asks the worker for up to maxResults documents relevant to the
// query.
func (c *Client) Retrieve(ctx context.Context, query string, maxResults int) ([]domain.RAGDocument, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("ragworker: query must not be empty")
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	payload, err := json.Marshal(retrieveRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("ragworker: marshal request: %w", err)
	}

	out, err := c.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(c.functionName),
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("ragworker: invoke %s: %w", c.functionName, err)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("ragworker: worker failed: %s", *out.FunctionError)
	}

	var resp retrieveResponse
	if err := json.Unmarshal(out.Payload, &resp); err != nil {
		return nil, fmt.Errorf("ragworker: decode response: %w", err)
	}
	return resp.Documents, nil
}
