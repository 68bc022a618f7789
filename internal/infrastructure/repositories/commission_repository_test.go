package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
)

func testCommission() *entities.Commission {
	return &entities.Commission{
		ID:       uuid.New(),
		UserID:   "200",
		SourceID: "100",
		IntentID: uuid.New(),
		Amount:   decimal.NewFromInt(50000),
		Paid:     decimal.NewFromInt(1500),
		Rate:     decimal.NewFromFloat(0.03),
	}
}

func TestCommissionRepository_CreateAndCredit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCommissionRepository(db)

	commission := testCommission()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO commissions`).
		WithArgs(commission.ID, "200", "100", commission.IntentID,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users`).
		WithArgs("200", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE affiliates`).
		WithArgs("200", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := repo.CreateAndCredit(context.Background(), commission)

	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepository_CreateAndCredit_AlreadyPaid(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCommissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO commissions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	created, err := repo.CreateAndCredit(context.Background(), testCommission())

	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepository_CreateAndCredit_CreditFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCommissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO commissions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	created, err := repo.CreateAndCredit(context.Background(), testCommission())

	assert.Error(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepository_GetByIntentID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCommissionRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM commissions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	commission, err := repo.GetByIntentID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Nil(t, commission)
}

func TestCommissionRepository_TotalByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCommissionRepository(db)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(commission_amount\), 0\)`).
		WithArgs("200").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("4500"))

	total, err := repo.TotalByUser(context.Background(), "200")

	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(4500)))
}
