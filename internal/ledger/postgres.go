package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	walletColumns      = []string{"id", "balance"}
	transactionColumns = []string{"id", "wallet_id", "amount", "created_at"}
	customerColumns    = []string{"id", "name"}
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists wallets and their transactions in PostgreSQL.
type PostgresStore struct {
	pgRepository
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store. The pool must have the
// decimal codec registered (see infra.NewPostgresPool).
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgRepository: pgRepository{q: db}, db: db}
}

// RunInTx opens a transaction at the requested isolation level, hands fn a
// repository bound to it and commits when fn succeeds. Wallet reads inside the
// transaction take a row lock. Serialization failures and deadlocks surface as ErrConflict.
func (s *PostgresStore) RunInTx(ctx context.Context, level IsolationLevel, fn func(repo Repository) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: level.txIsoLevel(), AccessMode: pgx.ReadWrite})
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(pgRepository{q: tx, lock: true}); err != nil {
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (l IsolationLevel) txIsoLevel() pgx.TxIsoLevel {
	if l == Serializable {
		return pgx.Serializable
	}
	return pgx.RepeatableRead
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	return err
}

type pgRepository struct {
	q    querier
	lock bool
}

func (r pgRepository) FindWallet(ctx context.Context, id int64) (Wallet, error) {
	query, args, err := selectWalletSQL(id, r.lock)
	if err != nil {
		return Wallet{}, err
	}
	w, err := scanWallet(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return Wallet{}, fmt.Errorf("find wallet %d: %w", id, err)
	}
	return w, nil
}

func (r pgRepository) SaveWallet(ctx context.Context, wallet Wallet) (Wallet, error) {
	query, args, err := updateWalletSQL(wallet)
	if err != nil {
		return Wallet{}, err
	}
	saved, err := scanWallet(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return Wallet{}, fmt.Errorf("save wallet %d: %w", wallet.ID, err)
	}
	return saved, nil
}

func (r pgRepository) InsertTransaction(ctx context.Context, walletID int64, amount decimal.Decimal, at time.Time) (Transaction, error) {
	query, args, err := insertTransactionSQL(walletID, amount, at)
	if err != nil {
		return Transaction{}, err
	}
	inserted := Transaction{WalletID: walletID, Amount: amount, Timestamp: at}
	if err := r.q.QueryRow(ctx, query, args...).Scan(&inserted.ID); err != nil {
		return Transaction{}, fmt.Errorf("insert transaction for wallet %d: %w", walletID, err)
	}
	return inserted, nil
}

func (r pgRepository) ListTransactions(ctx context.Context, walletID int64, pageNumber, pageSize int) ([]Transaction, error) {
	if pageNumber < 0 || pageSize <= 0 {
		return []Transaction{}, nil
	}
	query, args, err := selectTransactionsSQL(walletID, pageNumber, pageSize)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions for wallet %d: %w", walletID, err)
	}
	defer rows.Close()

	txs := make([]Transaction, 0, pageSize)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Amount, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Timestamp = t.Timestamp.UTC()
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions for wallet %d: %w", walletID, err)
	}
	return txs, nil
}

func (r pgRepository) ListWallets(ctx context.Context) ([]Wallet, error) {
	query, args, err := psql.Select(walletColumns...).From("wallet").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (r pgRepository) FindCustomer(ctx context.Context, id int64) (Customer, error) {
	query, args, err := psql.Select(customerColumns...).From("customer").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Customer{}, err
	}
	var c Customer
	if err := r.q.QueryRow(ctx, query, args...).Scan(&c.ID, &c.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, fmt.Errorf("find customer %d: %w", id, err)
	}
	return c, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.ID, &w.Balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.CustomerID = w.ID
	return w, nil
}

func selectWalletSQL(id int64, lock bool) (string, []any, error) {
	b := psql.Select(walletColumns...).From("wallet").Where(sq.Eq{"id": id})
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	return b.ToSql()
}

func updateWalletSQL(w Wallet) (string, []any, error) {
	return psql.Update("wallet").
		Set("balance", w.Balance).
		Where(sq.Eq{"id": w.ID}).
		Suffix("RETURNING id, balance").
		ToSql()
}

func insertTransactionSQL(walletID int64, amount decimal.Decimal, at time.Time) (string, []any, error) {
	return psql.Insert("wallet_transaction").
		Columns("wallet_id", "amount", "created_at").
		Values(walletID, amount, at).
		Suffix("RETURNING id").
		ToSql()
}

func selectTransactionsSQL(walletID int64, pageNumber, pageSize int) (string, []any, error) {
	return psql.Select(transactionColumns...).
		From("wallet_transaction").
		Where(sq.Eq{"wallet_id": walletID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(pageSize)).
		Offset(uint64(pageNumber) * uint64(pageSize)).
		ToSql()
}
