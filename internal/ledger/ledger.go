package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrWalletNotFound is returned when no wallet exists for the requested identifier.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrCustomerNotFound is returned when the owning customer of a wallet cannot be loaded.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrConflict wraps transient failures raised by the store when two transactions
	// touch the same wallet concurrently. Callers may retry the whole unit of work.
	ErrConflict = errors.New("concurrent update conflict")
)

// IsolationLevel names the transactional isolation a unit of work requires.
type IsolationLevel string

const (
	RepeatableRead IsolationLevel = "repeatable_read"
	Serializable   IsolationLevel = "serializable"
)

// Customer owns exactly one wallet. The ledger never mutates customers.
type Customer struct {
	ID   int64
	Name string
}

// Wallet holds a single balance. Its identifier equals the owning customer's identifier.
type Wallet struct {
	ID         int64
	CustomerID int64
	Balance    decimal.Decimal
}

// Transaction is an immutable signed balance movement. Positive amounts are deposits.
type Transaction struct {
	ID        int64
	WalletID  int64
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Repository is the set of wallet persistence capabilities. When obtained from
// Store.RunInTx every call joins the surrounding transaction.
type Repository interface {
	FindWallet(ctx context.Context, id int64) (Wallet, error)
	SaveWallet(ctx context.Context, wallet Wallet) (Wallet, error)
	InsertTransaction(ctx context.Context, walletID int64, amount decimal.Decimal, at time.Time) (Transaction, error)
	ListTransactions(ctx context.Context, walletID int64, pageNumber, pageSize int) ([]Transaction, error)
	ListWallets(ctx context.Context) ([]Wallet, error)
	FindCustomer(ctx context.Context, id int64) (Customer, error)
}

// Store is implemented by ledger backends (Postgres, in-memory). Its embedded
// Repository serves single-statement reads outside any explicit transaction.
type Store interface {
	Repository

	// RunInTx executes fn inside one transaction at the given isolation level.
	// The transaction commits only when fn returns nil; any error or panic rolls it back.
	RunInTx(ctx context.Context, level IsolationLevel, fn func(repo Repository) error) error
}
