package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orangebook/internal/events"
	"orangebook/internal/observability/mocks"
)

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.GetQueueUrlOutput), args.Error(1)
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

const queueURL = "https://sqs.us-east-1.amazonaws.com/000000000000/orangebook-ingestion"

func TestPublisher_Publish(t *testing.T) {
	client := &mockSQS{}
	client.On("GetQueueUrl", mock.Anything, mock.MatchedBy(func(in *sqs.GetQueueUrlInput) bool {
		return aws.ToString(in.QueueName) == "orangebook-ingestion"
	})).Return(&sqs.GetQueueUrlOutput{QueueUrl: aws.String(queueURL)}, nil).Once()

	var sent []*sqs.SendMessageInput
	client.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = append(sent, args.Get(1).(*sqs.SendMessageInput)) }).
		Return(&sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil)

	p := NewWithClient(client, "orangebook-ingestion", mocks.NewQuietLogger(), mocks.NewQuietMetrics())
	event := &events.Event{ID: "evt-1", Type: events.TypeIngestionFailed, RunID: "run-1", ErrorKind: "connection_failure"}

	require.NoError(t, p.Publish(context.Background(), event))
	require.NoError(t, p.Publish(context.Background(), event))

	client.AssertExpectations(t)
	require.Len(t, sent, 2)
	assert.Equal(t, queueURL, aws.ToString(sent[0].QueueUrl))
	assert.Equal(t, events.TypeIngestionFailed, aws.ToString(sent[0].MessageAttributes["event_type"].StringValue))

	var decoded events.Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(sent[0].MessageBody)), &decoded))
	assert.Equal(t, "connection_failure", decoded.ErrorKind)
}

func TestPublisher_Errors(t *testing.T) {
	t.Run("queue lookup", func(t *testing.T) {
		client := &mockSQS{}
		client.On("GetQueueUrl", mock.Anything, mock.Anything).Return(nil, errors.New("queue does not exist"))

		p := NewWithClient(client, "missing", mocks.NewQuietLogger(), mocks.NewQuietMetrics())
		err := p.Publish(context.Background(), &events.Event{Type: events.TypeIngestionCompleted})
		assert.ErrorContains(t, err, "queue URL for missing")
		client.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	})

	t.Run("send", func(t *testing.T) {
		client := &mockSQS{}
		client.On("GetQueueUrl", mock.Anything, mock.Anything).Return(&sqs.GetQueueUrlOutput{QueueUrl: aws.String(queueURL)}, nil)
		client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		p := NewWithClient(client, "orangebook-ingestion", mocks.NewQuietLogger(), mocks.NewQuietMetrics())
		err := p.Publish(context.Background(), &events.Event{Type: events.TypeIngestionCompleted})
		assert.ErrorContains(t, err, "throttled")
	})
}
