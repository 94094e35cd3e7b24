package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	repository "github.com/honeynil/PaymentServiceTochka/internal/repository/postgres"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionCols = []string{"order_id", "customer_name", "phone", "email", "amount", "payment_id", "status", "created_at", "settled_at"}

const (
	insertTransactionSQL = `INSERT INTO transactions (order_id, customer_name, phone, email, amount, status) VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	selectTransactionSQL = `SELECT order_id, customer_name, phone, email, amount, payment_id, status, created_at, settled_at FROM transactions WHERE order_id = $1`
	transitionSQL        = `UPDATE transactions`
)

func pendingTx() *models.Transaction {
	return &models.Transaction{
		OrderID:      "order_1",
		CustomerName: "Asha",
		Phone:        "9999999999",
		Email:        "asha@example.com",
		Amount:       decimal.NewFromInt(500),
		Status:       models.StatusPending,
	}
}

func TestPostgresTransactionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db)
	ctx := context.Background()

	t.Run("NilTransaction", func(t *testing.T) {
		err := repo.Create(ctx, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrNilTransaction)
	})

	t.Run("NotPending", func(t *testing.T) {
		tx := pendingTx()
		tx.Status = models.StatusSuccess
		err := repo.Create(ctx, tx)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionStatus)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		tx := pendingTx()
		tx.Amount = decimal.Zero
		err := repo.Create(ctx, tx)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
		assert.Contains(t, err.Error(), "amount must be positive")
	})

	t.Run("Success", func(t *testing.T) {
		tx := pendingTx()
		createdAt := time.Now().UTC()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(insertTransactionSQL)).
			WithArgs(tx.OrderID, tx.CustomerName, tx.Phone, tx.Email, tx.Amount, tx.Status).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))
		mock.ExpectCommit()

		err := repo.Create(ctx, tx)
		assert.NoError(t, err)
		assert.Equal(t, createdAt, tx.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateOrder", func(t *testing.T) {
		tx := pendingTx()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(insertTransactionSQL)).
			WithArgs(tx.OrderID, tx.CustomerName, tx.Phone, tx.Email, tx.Amount, tx.Status).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := repo.Create(ctx, tx)
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackError", func(t *testing.T) {
		tx := pendingTx()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(insertTransactionSQL)).
			WillReturnError(fmt.Errorf("database error"))
		mock.ExpectRollback().WillReturnError(fmt.Errorf("rollback error"))

		err := repo.Create(ctx, tx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "rollback failed")
		assert.Contains(t, err.Error(), "database error")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CommitError", func(t *testing.T) {
		tx := pendingTx()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(insertTransactionSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectCommit().WillReturnError(fmt.Errorf("commit error"))

		err := repo.Create(ctx, tx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTransactionRepository_GetByOrderID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db)
	ctx := context.Background()

	t.Run("Pending", func(t *testing.T) {
		createdAt := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactionSQL)).
			WithArgs("order_1").
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("order_1", "Asha", "9999999999", "asha@example.com", "500.00", nil, "PENDING", createdAt, nil))

		tx, err := repo.GetByOrderID(ctx, "order_1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, tx.Status)
		assert.True(t, tx.Amount.Equal(decimal.NewFromInt(500)))
		assert.Nil(t, tx.PaymentID)
		assert.Nil(t, tx.SettledAt)
		assert.Equal(t, createdAt, tx.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactionSQL)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		tx, err := repo.GetByOrderID(ctx, "missing")
		assert.Nil(t, tx)
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactionSQL)).
			WithArgs("order_1").
			WillReturnError(fmt.Errorf("database error"))

		tx, err := repo.GetByOrderID(ctx, "order_1")
		assert.Nil(t, tx)
		assert.Contains(t, err.Error(), "failed to get transaction by order id")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTransactionRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db)
	ctx := context.Background()

	t.Run("NewestFirst", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions ORDER BY created_at DESC`)).
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("order_2", "Ravi", "8888888888", "ravi@example.com", "120.50", "pay_2", "SUCCESS", now, now).
				AddRow("order_1", "Asha", "9999999999", "asha@example.com", "500.00", nil, "PENDING", now.Add(-time.Hour), nil))

		txs, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "order_2", txs[0].OrderID)
		require.NotNil(t, txs[0].PaymentID)
		assert.Equal(t, "pay_2", *txs[0].PaymentID)
		assert.Equal(t, "order_1", txs[1].OrderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions ORDER BY created_at DESC`)).
			WillReturnRows(sqlmock.NewRows(transactionCols))

		txs, err := repo.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, txs)
		assert.Empty(t, txs)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions ORDER BY created_at DESC`)).
			WillReturnError(fmt.Errorf("database error"))

		txs, err := repo.List(ctx)
		assert.Nil(t, txs)
		assert.Contains(t, err.Error(), "failed to list transactions")
	})
}

func TestPostgresTransactionRepository_TransitionFromPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresTransactionRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("FlipsPending", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(transitionSQL)).
			WithArgs("order_1", models.StatusSuccess, "pay_1").
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("order_1", "Asha", "9999999999", "asha@example.com", "500.00", "pay_1", "SUCCESS", now, now))

		tx, changed, err := repo.TransitionFromPending(ctx, "order_1", models.StatusSuccess, "pay_1")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, models.StatusSuccess, tx.Status)
		require.NotNil(t, tx.SettledAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadySettled", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(transitionSQL)).
			WithArgs("order_1", models.StatusSuccess, "pay_1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactionSQL)).
			WithArgs("order_1").
			WillReturnRows(sqlmock.NewRows(transactionCols).
				AddRow("order_1", "Asha", "9999999999", "asha@example.com", "500.00", "pay_1", "SUCCESS", now, now))

		tx, changed, err := repo.TransitionFromPending(ctx, "order_1", models.StatusSuccess, "pay_1")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, models.StatusSuccess, tx.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(transitionSQL)).
			WithArgs("missing", models.StatusFailed, "").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta(selectTransactionSQL)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		tx, changed, err := repo.TransitionFromPending(ctx, "missing", models.StatusFailed, "")
		assert.Nil(t, tx)
		assert.False(t, changed)
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NonTerminalTarget", func(t *testing.T) {
		_, changed, err := repo.TransitionFromPending(ctx, "order_1", models.StatusPending, "")
		assert.False(t, changed)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionStatus)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(transitionSQL)).
			WillReturnError(fmt.Errorf("connection reset"))

		_, changed, err := repo.TransitionFromPending(ctx, "order_1", models.StatusSuccess, "pay_1")
		assert.False(t, changed)
		assert.Contains(t, err.Error(), "failed to update transaction status")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
