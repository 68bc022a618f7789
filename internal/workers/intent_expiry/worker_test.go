package intent_expiry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
	"github.com/tikup-service/tikup_service/pkg/logger"
)

type mockIntentStore struct {
	mock.Mock
}

func (m *mockIntentStore) ListPending(ctx context.Context, limit int) ([]*entities.DepositIntent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DepositIntent), args.Error(1)
}

func (m *mockIntentStore) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockIntentStore) Cancel(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
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

func newTestWorker(intents *mockIntentStore, sink *mockSink, now time.Time) *Worker {
	return NewWorker(intents, sink, nil, logger.New("debug", "test")).
		WithClock(func() time.Time { return now })
}

func pendingIntent(age time.Duration, now time.Time) *entities.DepositIntent {
	return &entities.DepositIntent{
		ID:        uuid.New(),
		UserID:    "12345",
		Amount:    decimal.NewFromInt(50000),
		Status:    entities.IntentStatusPending,
		CreatedAt: now.Add(-age),
	}
}

func TestSweep_FreshIntentUntouched(t *testing.T) {
	now := time.Now()
	intent := pendingIntent(2*time.Minute, now)

	intents := &mockIntentStore{}
	intents.On("ListPending", mock.Anything, 100).Return([]*entities.DepositIntent{intent}, nil)

	sink := &mockSink{}
	w := newTestWorker(intents, sink, now)

	w.RunOnce(context.Background())

	intents.AssertNotCalled(t, "MarkReminderSent")
	intents.AssertNotCalled(t, "Cancel")
	sink.AssertNotCalled(t, "SendMessage")
}

func TestSweep_RemindsAtThreshold(t *testing.T) {
	now := time.Now()
	intent := pendingIntent(5*time.Minute, now)

	intents := &mockIntentStore{}
	intents.On("ListPending", mock.Anything, 100).Return([]*entities.DepositIntent{intent}, nil)
	intents.On("MarkReminderSent", mock.Anything, intent.ID).Return(true, nil)

	sink := &mockSink{}
	sink.On("SendMessage", mock.Anything, "12345", mock.Anything).Return(nil)

	w := newTestWorker(intents, sink, now)
	w.RunOnce(context.Background())

	intents.AssertExpectations(t)
	sink.AssertExpectations(t)
	intents.AssertNotCalled(t, "Cancel")
}

func TestSweep_ReminderSentOnlyOnce(t *testing.T) {
	now := time.Now()
	intent := pendingIntent(7*time.Minute, now)
	intent.ReminderSent = true

	intents := &mockIntentStore{}
	intents.On("ListPending", mock.Anything, 100).Return([]*entities.DepositIntent{intent}, nil)

	sink := &mockSink{}
	w := newTestWorker(intents, sink, now)

	w.RunOnce(context.Background())

	intents.AssertNotCalled(t, "MarkReminderSent")
	sink.AssertNotCalled(t, "SendMessage")
}

func TestSweep_ReminderFlagRace(t *testing.T) {
	now := time.Now()
	intent := pendingIntent(6*time.Minute, now)

	intents := &mockIntentStore{}
	intents.On("ListPending", mock.Anything, 100).Return([]*entities.DepositIntent{intent}, nil)
	// Another sweep flipped the flag first.
	intents.On("MarkReminderSent", mock.Anything, intent.ID).Return(false, nil)

	sink := &mockSink{}
	w := newTestWorker(intents, sink, now)

	w.RunOnce(context.Background())

	sink.AssertNotCalled(t, "SendMessage")
}

func TestSweep_ExpiresStaleIntent(t *testing.T) {
	now := time.Now()
	intent := pendingIntent(15*time.Minute, now)
	messageID := 777
	intent.MessageID = &messageID

	intents := &mockIntentStore{}
	intents.On("ListPending", mock.Anything, 100).Return([]*entities.DepositIntent{intent}, nil)
	intents.On("Cancel", mock.Anything, intent.ID).Return(nil)

	sink := &mockSink{}
	sink.On("EditCaption", mock.Anything, "12345", messageID, mock.Anything).Return(nil)
	sink.On("SendMessage", mock.Anything, "12345", mock.Anything).Return(nil)

	w := newTestWorker(intents, sink, now)
	w.RunOnce(context.Background())

	intents.AssertExpectations(t)
	sink.AssertExpectations(t)
	// Hard deadline takes precedence over the reminder.
	intents.AssertNotCalled(t, "MarkReminderSent")
}

func TestSweep_ExpiryRaceWithSettlement(t *testing.T) {
	now := time.Now()
	intent := pendingIntent(20*time.Minute, now)

	intents := &mockIntentStore{}
	intents.On("ListPending", mock.Anything, 100).Return([]*entities.DepositIntent{intent}, nil)
	// Settlement flipped the row to completed between list and cancel.
	intents.On("Cancel", mock.Anything, intent.ID).Return(domainerrors.ErrInvalidState)

	sink := &mockSink{}
	w := newTestWorker(intents, sink, now)

	w.RunOnce(context.Background())

	sink.AssertNotCalled(t, "SendMessage")
	sink.AssertNotCalled(t, "EditCaption")
}

func TestSweep_MixedBatch(t *testing.T) {
	now := time.Now()
	fresh := pendingIntent(1*time.Minute, now)
	due := pendingIntent(6*time.Minute, now)
	stale := pendingIntent(16*time.Minute, now)

	intents := &mockIntentStore{}
	intents.On("ListPending", mock.Anything, 100).
		Return([]*entities.DepositIntent{fresh, due, stale}, nil)
	intents.On("MarkReminderSent", mock.Anything, due.ID).Return(true, nil)
	intents.On("Cancel", mock.Anything, stale.ID).Return(nil)

	sink := &mockSink{}
	sink.On("SendMessage", mock.Anything, "12345", mock.Anything).Return(nil)

	w := newTestWorker(intents, sink, now)
	w.RunOnce(context.Background())

	intents.AssertExpectations(t)
	intents.AssertNotCalled(t, "Cancel", mock.Anything, fresh.ID)
	intents.AssertNotCalled(t, "Cancel", mock.Anything, due.ID)
}
