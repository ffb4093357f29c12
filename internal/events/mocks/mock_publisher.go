// Package mocks provides a testify mock of the event publisher
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"orangebook/internal/events"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event *events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
