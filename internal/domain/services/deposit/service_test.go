package deposit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
	"github.com/tikup-service/tikup_service/pkg/logger"
)

type mockIntentStore struct {
	mock.Mock
}

func (m *mockIntentStore) Create(ctx context.Context, intent *entities.DepositIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *mockIntentStore) SetMessageID(ctx context.Context, id uuid.UUID, messageID int) error {
	args := m.Called(ctx, id, messageID)
	return args.Error(0)
}

func (m *mockIntentStore) GetByID(ctx context.Context, id uuid.UUID) (*entities.DepositIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DepositIntent), args.Error(1)
}

func (m *mockIntentStore) GetByMessageID(ctx context.Context, messageID int) (*entities.DepositIntent, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DepositIntent), args.Error(1)
}

func (m *mockIntentStore) FindPendingByUserAndAmount(ctx context.Context, userID string, amount decimal.Decimal, createdAfter time.Time) (*entities.DepositIntent, error) {
	args := m.Called(ctx, userID, amount, createdAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DepositIntent), args.Error(1)
}

func (m *mockIntentStore) Cancel(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestService(intents *mockIntentStore) *Service {
	return NewService(intents, "TIKUP", logger.New("debug", "test"))
}

func TestCreateIntent_ValidDenomination(t *testing.T) {
	intents := &mockIntentStore{}
	intents.On("Create", mock.Anything, mock.MatchedBy(func(i *entities.DepositIntent) bool {
		return i.UserID == "12345" &&
			i.Amount.Equal(decimal.NewFromInt(50000)) &&
			i.Status == entities.IntentStatusPending &&
			i.Description == "TIKUP12345" &&
			i.ID != uuid.Nil
	})).Return(nil)

	svc := newTestService(intents)

	intent, err := svc.CreateIntent(context.Background(), "12345", decimal.NewFromInt(50000))

	require.NoError(t, err)
	assert.Equal(t, "TIKUP12345", intent.Description)
	assert.Equal(t, entities.IntentStatusPending, intent.Status)
	intents.AssertExpectations(t)
}

func TestCreateIntent_RejectsUnknownDenomination(t *testing.T) {
	intents := &mockIntentStore{}
	svc := newTestService(intents)

	tests := []int64{0, 1, 30000, 50001, 1000000, -50000}
	for _, amount := range tests {
		_, err := svc.CreateIntent(context.Background(), "12345", decimal.NewFromInt(amount))
		assert.ErrorIs(t, err, domainerrors.ErrInvalidAmount, "amount %d", amount)
	}
	intents.AssertNotCalled(t, "Create")
}

func TestCreateIntent_AllDenominationsAccepted(t *testing.T) {
	intents := &mockIntentStore{}
	intents.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(intents)

	for _, d := range entities.DepositDenominations {
		_, err := svc.CreateIntent(context.Background(), "1", decimal.NewFromInt(d))
		assert.NoError(t, err, "denomination %d", d)
	}
}

func TestFindPendingByUserAndAmount_AppliesLookback(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	intents := &mockIntentStore{}
	intents.On("FindPendingByUserAndAmount", mock.Anything, "12345", decimal.NewFromInt(50000),
		fixed.Add(-entities.MatchLookback)).Return(nil, domainerrors.ErrNoMatchingIntent)

	svc := newTestService(intents).WithClock(func() time.Time { return fixed })

	_, err := svc.FindPendingByUserAndAmount(context.Background(), "12345", decimal.NewFromInt(50000))

	assert.ErrorIs(t, err, domainerrors.ErrNoMatchingIntent)
	intents.AssertExpectations(t)
}

func TestCancel_PropagatesInvalidState(t *testing.T) {
	id := uuid.New()

	intents := &mockIntentStore{}
	intents.On("Cancel", mock.Anything, id).Return(domainerrors.ErrInvalidState)

	svc := newTestService(intents)

	err := svc.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)
}

func TestCancel_Succeeds(t *testing.T) {
	id := uuid.New()

	intents := &mockIntentStore{}
	intents.On("Cancel", mock.Anything, id).Return(nil)

	svc := newTestService(intents)

	require.NoError(t, svc.Cancel(context.Background(), id))
}

func TestAttachMessage(t *testing.T) {
	id := uuid.New()

	intents := &mockIntentStore{}
	intents.On("SetMessageID", mock.Anything, id, 42).Return(nil)

	svc := newTestService(intents)

	require.NoError(t, svc.AttachMessage(context.Background(), id, 42))
	intents.AssertExpectations(t)
}

func TestAttachMessage_Propagates(t *testing.T) {
	id := uuid.New()
	boom := errors.New("connection reset")

	intents := &mockIntentStore{}
	intents.On("SetMessageID", mock.Anything, id, 42).Return(boom)

	svc := newTestService(intents)

	assert.ErrorIs(t, svc.AttachMessage(context.Background(), id, 42), boom)
}
