package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockBankValidator struct {
	mock.Mock
}

func (m *MockBankValidator) Validate(ctx context.Context, code string) (*BankInfo, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BankInfo), args.Error(1)
}
