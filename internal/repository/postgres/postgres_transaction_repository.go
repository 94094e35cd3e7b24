package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const (
	transactionTracer  = "transaction-repository"
	transactionColumns = `order_id, customer_name, phone, email, amount, payment_id, status, created_at, settled_at`
)

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx        models.Transaction
		paymentID sql.NullString
		settledAt sql.NullTime
	)
	err := row.Scan(&tx.OrderID, &tx.CustomerName, &tx.Phone, &tx.Email, &tx.Amount, &paymentID, &tx.Status, &tx.CreatedAt, &settledAt)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		tx.PaymentID = &paymentID.String
	}
	if settledAt.Valid {
		tx.SettledAt = &settledAt.Time
	}
	return &tx, nil
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.Transaction) (err error) {
	ctx, span, done := startCall(ctx, transactionTracer, "CreateTransaction")
	defer done(&err)

	if tx == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to create transaction", "method", "Create", "error", err)
		return err
	}
	if tx.OrderID == "" {
		err = fmt.Errorf("%w: order_id is required", pkgerrors.ErrInvalidInput)
		slog.Error("failed to create transaction", "method", "Create", "error", err)
		return err
	}
	if tx.Status != models.StatusPending {
		err = pkgerrors.ErrInvalidTransactionStatus
		slog.Error("transaction must be created pending", "method", "Create", "order_id", tx.OrderID, "status", tx.Status, "error", err)
		return err
	}
	if !tx.Amount.IsPositive() {
		err = fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
		slog.Error("amount must be positive", "method", "Create", "order_id", tx.OrderID, "amount", tx.Amount.String(), "error", err)
		return err
	}

	span.SetAttributes(
		attribute.String("order_id", tx.OrderID),
		attribute.String("amount", tx.Amount.String()),
	)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Create", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `INSERT INTO transactions (order_id, customer_name, phone, email, amount, status) VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	err = dbTx.QueryRowContext(ctx, query, tx.OrderID, tx.CustomerName, tx.Phone, tx.Email, tx.Amount, tx.Status).Scan(&tx.CreatedAt)
	if err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			err = fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
			slog.Error("rollback failed", "method", "Create", "error", rbErr)
		}
		if isUniqueViolation(err) {
			slog.Warn("transaction already exists", "method", "Create", "order_id", tx.OrderID)
			return fmt.Errorf("%w: %s", pkgerrors.ErrTransactionExists, tx.OrderID)
		}
		slog.Error("failed to create transaction", "method", "Create", "order_id", tx.OrderID, "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Create", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("transaction created", "method", "Create", "order_id", tx.OrderID, "status", tx.Status)
	return nil
}

func (r *PostgresTransactionRepository) GetByOrderID(ctx context.Context, orderID string) (tx *models.Transaction, err error) {
	ctx, span, done := startCall(ctx, transactionTracer, "GetTransactionByOrderID")
	defer done(&err)
	span.SetAttributes(attribute.String("order_id", orderID))

	return r.getByOrderID(ctx, orderID)
}

func (r *PostgresTransactionRepository) getByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE order_id = $1`
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, orderID))
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("transaction not found", "method", "GetByOrderID", "order_id", orderID)
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if err != nil {
		slog.Error("failed to get transaction", "method", "GetByOrderID", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to get transaction by order id: %w", err)
	}
	return tx, nil
}

func (r *PostgresTransactionRepository) List(ctx context.Context) (txs []models.Transaction, err error) {
	ctx, _, done := startCall(ctx, transactionTracer, "ListTransactions")
	defer done(&err)

	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("failed to list transactions", "method", "List", "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs = []models.Transaction{}
	for rows.Next() {
		tx, scanErr := scanTransaction(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan transaction: %w", scanErr)
			return nil, err
		}
		txs = append(txs, *tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	slog.Info("transactions listed", "method", "List", "count", len(txs))
	return txs, nil
}

// TransitionFromPending is a single conditional UPDATE: of any number of
// concurrent callers for the same order, exactly one sees changed=true.
func (r *PostgresTransactionRepository) TransitionFromPending(ctx context.Context, orderID string, status models.StatusType, paymentID string) (tx *models.Transaction, changed bool, err error) {
	ctx, span, done := startCall(ctx, transactionTracer, "TransitionFromPending")
	defer done(&err)
	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("status", string(status)),
	)

	if !status.Terminal() {
		err = pkgerrors.ErrInvalidTransactionStatus
		return nil, false, err
	}

	query := `UPDATE transactions
		SET status = $2, payment_id = COALESCE(NULLIF($3, ''), payment_id), settled_at = NOW()
		WHERE order_id = $1 AND status = 'PENDING'
		RETURNING ` + transactionColumns
	tx, err = scanTransaction(r.db.QueryRowContext(ctx, query, orderID, status, paymentID))
	if err == nil {
		span.SetAttributes(attribute.Bool("changed", true))
		slog.Info("transaction status changed", "method", "TransitionFromPending", "order_id", orderID, "status", status)
		return tx, true, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		slog.Error("failed to update transaction status", "method", "TransitionFromPending", "order_id", orderID, "error", err)
		return nil, false, fmt.Errorf("failed to update transaction status: %w", err)
	}

	// Nothing was pending: either the order is unknown or already settled.
	tx, err = r.getByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("changed", false))
	slog.Info("transaction already settled", "method", "TransitionFromPending", "order_id", orderID, "stored_status", tx.Status, "requested_status", status)
	return tx, false, nil
}
