// Package dynamo stores sessions in a DynamoDB table, one item per chat keyed
// by the string attribute "id".
package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	assistantpkg "telegpt/pkg/assistant"
)

// API is the part of the DynamoDB client the store needs.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type item struct {
	ID      string                 `dynamodbav:"id"`
	APIKey  string                 `dynamodbav:"api_key,omitempty"`
	History []assistantpkg.Message `dynamodbav:"history"`
	Params  assistantpkg.Params    `dynamodbav:"params"`
}

type Store struct {
	api   API
	table string
}

func NewStore(api API, table string) *Store {
	return &Store{
		api:   api,
		table: table,
	}
}

func key(chatID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: strconv.FormatInt(chatID, 10)},
	}
}

func (s *Store) Get(ctx context.Context, chatID int64) (assistantpkg.Session, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(chatID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return assistantpkg.Session{}, fmt.Errorf("%w: get chat %d: %w", assistantpkg.ErrStoreUnavailable, chatID, err)
	}
	if out == nil || len(out.Item) == 0 {
		return assistantpkg.Session{ChatID: chatID}, nil
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return assistantpkg.Session{}, fmt.Errorf("%w: decode chat %d: %w", assistantpkg.ErrStoreUnavailable, chatID, err)
	}

	return assistantpkg.Session{
		ChatID:   chatID,
		APIKey:   it.APIKey,
		Messages: it.History,
		Params:   it.Params,
	}, nil
}

func (s *Store) Put(ctx context.Context, session assistantpkg.Session) error {
	history := session.Messages
	if history == nil {
		history = make([]assistantpkg.Message, 0)
	}

	av, err := attributevalue.MarshalMap(item{
		ID:      strconv.FormatInt(session.ChatID, 10),
		APIKey:  session.APIKey,
		History: history,
		Params:  session.Params,
	})
	if err != nil {
		return fmt.Errorf("encode chat %d: %w", session.ChatID, err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("%w: put chat %d: %w", assistantpkg.ErrStoreUnavailable, session.ChatID, err)
	}
	return nil
}
