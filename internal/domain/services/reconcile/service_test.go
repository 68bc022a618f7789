package reconcile

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

func (m *mockIntentStore) GetByTID(ctx context.Context, tid string) (*entities.DepositIntent, error) {
	args := m.Called(ctx, tid)
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

func (m *mockIntentStore) Settle(ctx context.Context, id uuid.UUID, n *entities.BankNotification) (decimal.Decimal, error) {
	args := m.Called(ctx, id, n)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockCommissionEngine struct {
	mock.Mock
}

func (m *mockCommissionEngine) PayCommission(ctx context.Context, intent *entities.DepositIntent) (*entities.Commission, error) {
	args := m.Called(ctx, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Commission), args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) SendMessage(ctx context.Context, chatID, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

func (m *mockSink) EditCaption(ctx context.Context, chatID string, messageID int, caption string) error {
	args := m.Called(ctx, chatID, messageID, caption)
	return args.Error(0)
}

func newTestService(intents *mockIntentStore, engine *mockCommissionEngine, sink *mockSink) *Service {
	return NewService(intents, engine, sink, "TIKUP", logger.New("debug", "test"))
}

func notification(tid, description string, amount int64) *entities.BankNotification {
	return &entities.BankNotification{
		TID:         tid,
		Amount:      decimal.NewFromInt(amount),
		Description: description,
		BankName:    "MBBank",
		SenderName:  "NGUYEN VAN A",
	}
}

func pendingIntent(userID string, amount int64) *entities.DepositIntent {
	return &entities.DepositIntent{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    decimal.NewFromInt(amount),
		Status:    entities.IntentStatusPending,
		CreatedAt: time.Now().Add(-time.Minute),
	}
}

func TestExtractUserID(t *testing.T) {
	svc := newTestService(&mockIntentStore{}, &mockCommissionEngine{}, &mockSink{})

	tests := []struct {
		name        string
		description string
		expected    string
	}{
		{"plain token", "TIKUP12345", "12345"},
		{"embedded in bank noise", "MBVCB.123 TIKUP987654 chuyen tien", "987654"},
		{"no token", "chuyen khoan ca nhan", ""},
		{"token without digits", "TIKUP abc", ""},
		{"digits only after prefix", "TIKUP42x99", "42"},
		{"empty description", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, svc.ExtractUserID(tt.description))
		})
	}
}

func TestReconcile_Unroutable(t *testing.T) {
	intents := &mockIntentStore{}
	svc := newTestService(intents, &mockCommissionEngine{}, &mockSink{})

	result, err := svc.Reconcile(context.Background(), notification("FT123", "chuyen khoan", 50000))

	require.NoError(t, err)
	assert.Equal(t, entities.SettlementUnroutable, result.Outcome)
	intents.AssertNotCalled(t, "GetByTID")
}

func TestReconcile_DuplicateTID(t *testing.T) {
	intents := &mockIntentStore{}
	settled := pendingIntent("12345", 50000)
	settled.Status = entities.IntentStatusCompleted
	intents.On("GetByTID", mock.Anything, "FT123").Return(settled, nil)

	engine := &mockCommissionEngine{}
	svc := newTestService(intents, engine, &mockSink{})

	result, err := svc.Reconcile(context.Background(), notification("FT123", "TIKUP12345", 50000))

	require.NoError(t, err)
	assert.Equal(t, entities.SettlementDuplicate, result.Outcome)
	assert.Equal(t, settled, result.Intent)
	engine.AssertNotCalled(t, "PayCommission")
	intents.AssertNotCalled(t, "Settle")
}

func TestReconcile_NoMatchingIntent(t *testing.T) {
	intents := &mockIntentStore{}
	intents.On("GetByTID", mock.Anything, "FT123").Return(nil, domainerrors.ErrNotFound)
	intents.On("FindPendingByUserAndAmount", mock.Anything, "12345", decimal.NewFromInt(70000), mock.Anything).
		Return(nil, domainerrors.ErrNoMatchingIntent)

	svc := newTestService(intents, &mockCommissionEngine{}, &mockSink{})

	result, err := svc.Reconcile(context.Background(), notification("FT123", "TIKUP12345", 70000))

	require.NoError(t, err)
	assert.Equal(t, entities.SettlementUnmatched, result.Outcome)
	intents.AssertNotCalled(t, "Settle")
}

func TestReconcile_LookbackCutoff(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	intents := &mockIntentStore{}
	intents.On("GetByTID", mock.Anything, "FT123").Return(nil, domainerrors.ErrNotFound)
	intents.On("FindPendingByUserAndAmount", mock.Anything, "12345", decimal.NewFromInt(50000),
		fixed.Add(-entities.MatchLookback)).Return(nil, domainerrors.ErrNoMatchingIntent)

	svc := newTestService(intents, &mockCommissionEngine{}, &mockSink{}).
		WithClock(func() time.Time { return fixed })

	_, err := svc.Reconcile(context.Background(), notification("FT123", "TIKUP12345", 50000))

	require.NoError(t, err)
	intents.AssertExpectations(t)
}

func TestReconcile_Settles(t *testing.T) {
	intent := pendingIntent("12345", 50000)
	messageID := 777
	intent.MessageID = &messageID
	newBalance := decimal.NewFromInt(150000)

	intents := &mockIntentStore{}
	intents.On("GetByTID", mock.Anything, "FT123").Return(nil, domainerrors.ErrNotFound)
	intents.On("FindPendingByUserAndAmount", mock.Anything, "12345", decimal.NewFromInt(50000), mock.Anything).
		Return(intent, nil)
	intents.On("Settle", mock.Anything, intent.ID, mock.Anything).Return(newBalance, nil)

	commission := &entities.Commission{Paid: decimal.NewFromInt(1500)}
	engine := &mockCommissionEngine{}
	engine.On("PayCommission", mock.Anything, intent).Return(commission, nil)

	sink := &mockSink{}
	sink.On("EditCaption", mock.Anything, "12345", messageID, mock.Anything).Return(nil)
	sink.On("SendMessage", mock.Anything, "12345", mock.Anything).Return(nil)

	svc := newTestService(intents, engine, sink)

	result, err := svc.Reconcile(context.Background(), notification("FT123", "TIKUP12345", 50000))

	require.NoError(t, err)
	assert.Equal(t, entities.SettlementSettled, result.Outcome)
	assert.True(t, newBalance.Equal(result.NewBalance))
	assert.Equal(t, commission, result.Commission)
	intents.AssertExpectations(t)
	engine.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestReconcile_SettleRaceLostToDuplicate(t *testing.T) {
	intent := pendingIntent("12345", 50000)

	intents := &mockIntentStore{}
	intents.On("GetByTID", mock.Anything, "FT123").Return(nil, domainerrors.ErrNotFound)
	intents.On("FindPendingByUserAndAmount", mock.Anything, "12345", decimal.NewFromInt(50000), mock.Anything).
		Return(intent, nil)
	intents.On("Settle", mock.Anything, intent.ID, mock.Anything).
		Return(decimal.Zero, domainerrors.ErrDuplicateNotification)

	engine := &mockCommissionEngine{}
	svc := newTestService(intents, engine, &mockSink{})

	result, err := svc.Reconcile(context.Background(), notification("FT123", "TIKUP12345", 50000))

	require.NoError(t, err)
	assert.Equal(t, entities.SettlementDuplicate, result.Outcome)
	engine.AssertNotCalled(t, "PayCommission")
}

func TestReconcile_SettleRaceLostToCancellation(t *testing.T) {
	intent := pendingIntent("12345", 50000)

	intents := &mockIntentStore{}
	intents.On("GetByTID", mock.Anything, "FT123").Return(nil, domainerrors.ErrNotFound)
	intents.On("FindPendingByUserAndAmount", mock.Anything, "12345", decimal.NewFromInt(50000), mock.Anything).
		Return(intent, nil)
	intents.On("Settle", mock.Anything, intent.ID, mock.Anything).
		Return(decimal.Zero, domainerrors.ErrInvalidState)

	engine := &mockCommissionEngine{}
	svc := newTestService(intents, engine, &mockSink{})

	result, err := svc.Reconcile(context.Background(), notification("FT123", "TIKUP12345", 50000))

	require.NoError(t, err)
	assert.Equal(t, entities.SettlementUnmatched, result.Outcome)
	engine.AssertNotCalled(t, "PayCommission")
}

func TestReconcile_PersistenceFailure(t *testing.T) {
	intent := pendingIntent("12345", 50000)
	boom := errors.New("connection reset")

	intents := &mockIntentStore{}
	intents.On("GetByTID", mock.Anything, "FT123").Return(nil, domainerrors.ErrNotFound)
	intents.On("FindPendingByUserAndAmount", mock.Anything, "12345", decimal.NewFromInt(50000), mock.Anything).
		Return(intent, nil)
	intents.On("Settle", mock.Anything, intent.ID, mock.Anything).Return(decimal.Zero, boom)

	svc := newTestService(intents, &mockCommissionEngine{}, &mockSink{})

	result, err := svc.Reconcile(context.Background(), notification("FT123", "TIKUP12345", 50000))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, result)
}

func TestReconcile_CommissionFailureDoesNotFailSettlement(t *testing.T) {
	intent := pendingIntent("12345", 50000)
	newBalance := decimal.NewFromInt(50000)

	intents := &mockIntentStore{}
	intents.On("GetByTID", mock.Anything, "FT123").Return(nil, domainerrors.ErrNotFound)
	intents.On("FindPendingByUserAndAmount", mock.Anything, "12345", decimal.NewFromInt(50000), mock.Anything).
		Return(intent, nil)
	intents.On("Settle", mock.Anything, intent.ID, mock.Anything).Return(newBalance, nil)

	engine := &mockCommissionEngine{}
	engine.On("PayCommission", mock.Anything, intent).Return(nil, errors.New("deadlock"))

	sink := &mockSink{}
	sink.On("SendMessage", mock.Anything, "12345", mock.Anything).Return(nil)

	svc := newTestService(intents, engine, sink)

	result, err := svc.Reconcile(context.Background(), notification("FT123", "TIKUP12345", 50000))

	require.NoError(t, err)
	assert.Equal(t, entities.SettlementSettled, result.Outcome)
	assert.Nil(t, result.Commission)
}

func TestReconcile_NotificationFailureDoesNotFailSettlement(t *testing.T) {
	intent := pendingIntent("12345", 50000)

	intents := &mockIntentStore{}
	intents.On("GetByTID", mock.Anything, "FT123").Return(nil, domainerrors.ErrNotFound)
	intents.On("FindPendingByUserAndAmount", mock.Anything, "12345", decimal.NewFromInt(50000), mock.Anything).
		Return(intent, nil)
	intents.On("Settle", mock.Anything, intent.ID, mock.Anything).Return(decimal.NewFromInt(50000), nil)

	engine := &mockCommissionEngine{}
	engine.On("PayCommission", mock.Anything, intent).Return(nil, nil)

	sink := &mockSink{}
	sink.On("SendMessage", mock.Anything, "12345", mock.Anything).Return(errors.New("blocked by user"))

	svc := newTestService(intents, engine, sink)

	result, err := svc.Reconcile(context.Background(), notification("FT123", "TIKUP12345", 50000))

	require.NoError(t, err)
	assert.Equal(t, entities.SettlementSettled, result.Outcome)
}
