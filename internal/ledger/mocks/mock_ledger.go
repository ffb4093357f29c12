// Package mocks provides a testify mock of the ledger port
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"orangebook/internal/ledger"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Start(ctx context.Context, run *ledger.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockLedger) Complete(ctx context.Context, runID string, c ledger.Completion) error {
	args := m.Called(ctx, runID, c)
	return args.Error(0)
}

func (m *MockLedger) Fail(ctx context.Context, runID string, f ledger.Failure) error {
	args := m.Called(ctx, runID, f)
	return args.Error(0)
}

func (m *MockLedger) Get(ctx context.Context, runID string) (*ledger.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Run), args.Error(1)
}

func (m *MockLedger) Close() error {
	args := m.Called()
	return args.Error(0)
}
