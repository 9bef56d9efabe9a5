package services

import (
	"context"
	"sync"

	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/pipeline"
	"github.com/ruralpay/payauth/internal/rails"
	"github.com/ruralpay/payauth/internal/stepup"
	"github.com/stretchr/testify/mock"
)

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) AuthorizeTransfer(ctx context.Context, req pipeline.TransferRequest) (pipeline.Outcome, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).(pipeline.Outcome)
	return out, args.Error(1)
}

func (m *MockAuthorizer) AuthorizePaymentToPayee(ctx context.Context, req pipeline.PaymentRequest) (pipeline.Outcome, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).(pipeline.Outcome)
	return out, args.Error(1)
}

func (m *MockAuthorizer) AuthorizeScheduledPayment(ctx context.Context, req pipeline.ScheduledPaymentRequest) (pipeline.Outcome, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).(pipeline.Outcome)
	return out, args.Error(1)
}

func (m *MockAuthorizer) PreviewRecipient(ctx context.Context, name, sortCode, accountNumber string) (pipeline.RecipientPreview, error) {
	args := m.Called(ctx, name, sortCode, accountNumber)
	return args.Get(0).(pipeline.RecipientPreview), args.Error(1)
}

func (m *MockAuthorizer) PreviewRail(amount int64) (rails.Selection, error) {
	args := m.Called(amount)
	return args.Get(0).(rails.Selection), args.Error(1)
}

type MockChallengeIssuer struct {
	mock.Mock
}

func (m *MockChallengeIssuer) Issue(ctx context.Context, userID string, purpose models.Purpose) (*stepup.Challenge, string, error) {
	args := m.Called(ctx, userID, purpose)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*stepup.Challenge), args.String(1), args.Error(2)
}

func (m *MockChallengeIssuer) Verify(ctx context.Context, userID, challengeID, code string) (*stepup.Challenge, error) {
	args := m.Called(ctx, userID, challengeID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stepup.Challenge), args.Error(1)
}

type MockPayeeEditor struct {
	mock.Mock
}

func (m *MockPayeeEditor) Get(ctx context.Context, ownerID, payeeID string) (*models.Payee, error) {
	args := m.Called(ctx, ownerID, payeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payee), args.Error(1)
}

func (m *MockPayeeEditor) Update(ctx context.Context, ownerID, payeeID string, update models.PayeeUpdate) (*models.Payee, error) {
	args := m.Called(ctx, ownerID, payeeID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payee), args.Error(1)
}

type operationLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *operationLog) LogOperation(ctx context.Context, userID, operation, status string, details models.Metadata) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, operation)
}
