// Package paramstore loads runtime configuration from AWS SSM Parameter
// Store: the Bedrock model id and the optional danger-combination trigger
// table.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter. Consumers depend on this
// rather than the concrete *Client so they stay testable without AWS calls.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// Config is the SSM-sourced runtime configuration of the router.
type Config struct {
	// ModelID is the Bedrock model id or inference profile ARN used for
	// extraction calls.
	ModelID string
	// TriggerTableJSON holds the danger-combination table as a JSON array
	// of reason sets. Empty when the deployment relies on the built-in
	// default table.
	TriggerTableJSON string
}

// ConfigLoader loads Config from a parameter prefix once per process and
// serves the cached copy afterwards. A failed load is retried on the next
// call.
type ConfigLoader struct {
	getter Getter
	prefix string

	mu     sync.RWMutex
	loaded bool
	config Config
}

// NewConfigLoader creates a loader rooted at the given parameter prefix,
// e.g. "/intake-router".
func NewConfigLoader(getter Getter, prefix string) (*ConfigLoader, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("paramstore: parameter prefix must not be empty")
	}
	return &ConfigLoader{getter: getter, prefix: prefix}, nil
}

// Load returns the configuration, fetching it from SSM on first use.
func (l *ConfigLoader) Load(ctx context.Context) (Config, error) {
	l.mu.RLock()
	if l.loaded {
		defer l.mu.RUnlock()
		return l.config, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.config, nil
	}

	modelID, err := l.getter.GetParameter(ctx, l.prefix+"/config/bedrock_model")
	if err != nil {
		return Config{}, fmt.Errorf("paramstore: load bedrock model: %w", err)
	}
	if strings.TrimSpace(modelID) == "" {
		return Config{}, errors.New("paramstore: bedrock model parameter is empty")
	}

	// The trigger table parameter is optional; absence means the built-in
	// default table applies.
	triggerJSON, err := l.getter.GetParameter(ctx, l.prefix+"/config/trigger_table")
	if err != nil && !isParameterNotFound(err) {
		return Config{}, fmt.Errorf("paramstore: load trigger table: %w", err)
	}

	l.config = Config{ModelID: modelID, TriggerTableJSON: triggerJSON}
	l.loaded = true
	return l.config, nil
}

func isParameterNotFound(err error) bool {
	var notFound *types.ParameterNotFound
	return errors.As(err, &notFound)
}
