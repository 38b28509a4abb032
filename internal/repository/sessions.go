package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"intake-router/internal/domain"
)

const (
	sessionPKPrefix = "USER#"
	sessionSK       = "SESSION"
)

// ErrMalformedSession marks a stored record that could not be decoded.
// Callers treat it like an absent session rather than propagating a crash.
var ErrMalformedSession = errors.New("repository: malformed session record")

// SessionClient persists one session record per user in a DynamoDB table
// with TTL enabled on the expiresAt attribute. Writes are full-record
// overwrites (last-writer-wins); the table's TTL deletion is lazy, so reads
// enforce expiry themselves.
type SessionClient struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewSessionClient creates a SessionClient for the given table.
func NewSessionClient(api dynamodbAPI, tableName string) (*SessionClient, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &SessionClient{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(userID string) string {
	return sessionPKPrefix + userID
}

// Get returns the user's session, or (nil, nil) when no session exists or
// the stored one has expired. A record that fails to decode returns
// ErrMalformedSession.
func (c *SessionClient) Get(ctx context.Context, userID string) (*domain.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("repository: user id must not be empty")
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: sessionSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: get session: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	session, err := itemToSession(out.Item)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	if session.Expired(c.now()) {
		// TTL deletion is lazy; an expired record is indistinguishable
		// from an absent one to every consumer.
		return nil, nil
	}
	return session, nil
}

// Put overwrites the user's session record with expiry renewed to now+ttl.
// A session with no turns is never persisted: expiry is driven by the last
// write, not by keep-alive touches.
func (c *SessionClient) Put(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	if session == nil || strings.TrimSpace(session.UserID) == "" {
		return errors.New("repository: session user id must not be empty")
	}
	if len(session.Turns) == 0 {
		return errors.New("repository: refusing to persist session with no turns")
	}
	if ttl <= 0 {
		return errors.New("repository: ttl must be positive")
	}

	session.ExpiresAt = c.now().Add(ttl)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      sessionItem(session),
	})
	if err != nil {
		return fmt.Errorf("repository: put session: %w", err)
	}
	return nil
}

func sessionItem(session *domain.Session) map[string]types.AttributeValue {
	turns := make([]types.AttributeValue, 0, len(session.Turns))
	for _, t := range session.Turns {
		turns = append(turns, turnItem(t))
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(session.UserID)},
		"SK":        &types.AttributeValueMemberS{Value: sessionSK},
		"userId":    &types.AttributeValueMemberS{Value: session.UserID},
		"turns":     &types.AttributeValueMemberL{Value: turns},
		"expiresAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", session.ExpiresAt.Unix())},
	}
}

func turnItem(t domain.Turn) types.AttributeValue {
	m := map[string]types.AttributeValue{
		"message": &types.AttributeValueMemberS{Value: t.Message},
		"target":  &types.AttributeValueMemberS{Value: string(t.Target)},
	}
	if len(t.Fields) > 0 {
		m["fields"] = stringMapAttr(t.Fields)
	}
	if len(t.Reasons) > 0 {
		m["reasons"] = stringListAttr(t.Reasons)
	}
	if t.Tier != domain.TierNone {
		m["tier"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", t.Tier)}
	}
	if t.PendingQuestion != "" {
		m["pendingQuestion"] = &types.AttributeValueMemberS{Value: t.PendingQuestion}
	}
	return &types.AttributeValueMemberM{Value: m}
}

func itemToSession(item map[string]types.AttributeValue) (*domain.Session, error) {
	userID, err := strAttr(item, "userId")
	if err != nil {
		return nil, err
	}
	expires, err := int64Attr(item, "expiresAt")
	if err != nil {
		return nil, err
	}

	rawTurns, ok := item["turns"].(*types.AttributeValueMemberL)
	if !ok {
		return nil, errors.New("turns attribute is not a list")
	}
	turns := make([]domain.Turn, 0, len(rawTurns.Value))
	for _, raw := range rawTurns.Value {
		turn, err := itemToTurn(raw)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}

	return &domain.Session{
		UserID:    userID,
		Turns:     turns,
		ExpiresAt: time.Unix(expires, 0).UTC(),
	}, nil
}

func itemToTurn(raw types.AttributeValue) (domain.Turn, error) {
	m, ok := raw.(*types.AttributeValueMemberM)
	if !ok {
		return domain.Turn{}, errors.New("turn entry is not a map")
	}
	message, err := strAttr(m.Value, "message")
	if err != nil {
		return domain.Turn{}, err
	}
	target, err := strAttr(m.Value, "target")
	if err != nil {
		return domain.Turn{}, err
	}

	turn := domain.Turn{
		Message:         message,
		Target:          domain.Target(target),
		PendingQuestion: optStrAttr(m.Value, "pendingQuestion"),
		Tier:            optIntAttr(m.Value, "tier"),
	}
	if v, ok := m.Value["fields"]; ok {
		turn.Fields = stringMap(v)
	}
	if v, ok := m.Value["reasons"]; ok {
		turn.Reasons = stringList(v)
	}
	return turn, nil
}
