package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamodbAPI is the minimal DynamoDB interface required by the repository
// clients. Defined here for testability; *dynamodb.Client satisfies it.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

// optStrAttr returns "" when the attribute is absent or not a string.
func optStrAttr(item map[string]types.AttributeValue, key string) string {
	s, ok := item[key].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return s.Value
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

// optIntAttr returns 0 when the attribute is absent or unparseable.
func optIntAttr(item map[string]types.AttributeValue, key string) int {
	n, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0
	}
	return parsed
}

func stringList(v types.AttributeValue) []string {
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		// Some seed rows store lists as a single comma-free string.
		if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value != "" {
			return []string{s.Value}
		}
		return nil
	}
	out := make([]string, 0, len(l.Value))
	for _, e := range l.Value {
		if s, ok := e.(*types.AttributeValueMemberS); ok {
			out = append(out, s.Value)
		}
	}
	return out
}

func stringListAttr(values []string) types.AttributeValue {
	members := make([]types.AttributeValue, 0, len(values))
	for _, v := range values {
		members = append(members, &types.AttributeValueMemberS{Value: v})
	}
	return &types.AttributeValueMemberL{Value: members}
}

func stringMapAttr(m map[string]string) types.AttributeValue {
	members := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		members[k] = &types.AttributeValueMemberS{Value: v}
	}
	return &types.AttributeValueMemberM{Value: members}
}

func stringMap(v types.AttributeValue) map[string]string {
	m, ok := v.(*types.AttributeValueMemberM)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m.Value))
	for k, e := range m.Value {
		if s, ok := e.(*types.AttributeValueMemberS); ok {
			out[k] = s.Value
		}
	}
	return out
}
