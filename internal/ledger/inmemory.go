package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	customers    map[int64]Customer
	wallets      map[int64]Wallet
	transactions map[int64][]Transaction
	nextTxID     int64
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and local development. Transactions are serialized behind a single write lock,
// so every unit of work observes the outcome of all previously committed ones.
func NewInMemory() Store {
	return &inMemoryStore{
		customers:    make(map[int64]Customer),
		wallets:      make(map[int64]Wallet),
		transactions: make(map[int64][]Transaction),
	}
}

func (s *inMemoryStore) FindWallet(ctx context.Context, id int64) (Wallet, error) {
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *inMemoryStore) SaveWallet(ctx context.Context, wallet Wallet) (Wallet, error) {
	var saved Wallet
	err := s.RunInTx(ctx, RepeatableRead, func(repo Repository) error {
		var err error
		saved, err = repo.SaveWallet(ctx, wallet)
		return err
	})
	return saved, err
}

func (s *inMemoryStore) InsertTransaction(ctx context.Context, walletID int64, amount decimal.Decimal, at time.Time) (Transaction, error) {
	var inserted Transaction
	err := s.RunInTx(ctx, RepeatableRead, func(repo Repository) error {
		var err error
		inserted, err = repo.InsertTransaction(ctx, walletID, amount, at)
		return err
	})
	return inserted, err
}

func (s *inMemoryStore) ListTransactions(ctx context.Context, walletID int64, pageNumber, pageSize int) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return page(s.transactions[walletID], pageNumber, pageSize), nil
}

func (s *inMemoryStore) ListWallets(ctx context.Context) ([]Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedWallets(s.wallets, nil), nil
}

func (s *inMemoryStore) FindCustomer(ctx context.Context, id int64) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return c, nil
}

// RunInTx stages writes in an overlay and applies them only after fn succeeds.
// The isolation level is ignored: holding the write lock is already serializable.
func (s *inMemoryStore) RunInTx(ctx context.Context, _ IsolationLevel, fn func(repo Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &inMemoryTx{store: s, wallets: make(map[int64]Wallet), nextTxID: s.nextTxID}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, w := range tx.wallets {
		s.wallets[id] = w
	}
	for _, t := range tx.inserted {
		s.transactions[t.WalletID] = append(s.transactions[t.WalletID], t)
	}
	s.nextTxID = tx.nextTxID
	return nil
}

// inMemoryTx is the Repository handed to RunInTx callbacks. The store's write
// lock is held for its whole lifetime.
type inMemoryTx struct {
	store    *inMemoryStore
	wallets  map[int64]Wallet
	inserted []Transaction
	nextTxID int64
}

func (t *inMemoryTx) wallet(id int64) (Wallet, bool) {
	if w, ok := t.wallets[id]; ok {
		return w, true
	}
	w, ok := t.store.wallets[id]
	return w, ok
}

func (t *inMemoryTx) FindWallet(ctx context.Context, id int64) (Wallet, error) {
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}
	w, ok := t.wallet(id)
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (t *inMemoryTx) SaveWallet(ctx context.Context, wallet Wallet) (Wallet, error) {
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}
	current, ok := t.wallet(wallet.ID)
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	if wallet.Balance.IsNegative() {
		return Wallet{}, fmt.Errorf("save wallet %d: balance %s violates non-negative constraint", wallet.ID, wallet.Balance)
	}
	current.Balance = wallet.Balance
	t.wallets[wallet.ID] = current
	return current, nil
}

func (t *inMemoryTx) InsertTransaction(ctx context.Context, walletID int64, amount decimal.Decimal, at time.Time) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	if _, ok := t.wallet(walletID); !ok {
		return Transaction{}, ErrWalletNotFound
	}
	if amount.IsZero() {
		return Transaction{}, fmt.Errorf("insert transaction for wallet %d: amount must not be zero", walletID)
	}
	t.nextTxID++
	inserted := Transaction{ID: t.nextTxID, WalletID: walletID, Amount: amount, Timestamp: at}
	t.inserted = append(t.inserted, inserted)
	return inserted, nil
}

func (t *inMemoryTx) ListTransactions(ctx context.Context, walletID int64, pageNumber, pageSize int) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	committed := t.store.transactions[walletID]
	all := make([]Transaction, 0, len(committed)+len(t.inserted))
	all = append(all, committed...)
	for _, tr := range t.inserted {
		if tr.WalletID == walletID {
			all = append(all, tr)
		}
	}
	return page(all, pageNumber, pageSize), nil
}

func (t *inMemoryTx) ListWallets(ctx context.Context) ([]Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sortedWallets(t.store.wallets, t.wallets), nil
}

func (t *inMemoryTx) FindCustomer(ctx context.Context, id int64) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, err
	}
	c, ok := t.store.customers[id]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return c, nil
}

// page orders a copy of txs by (timestamp desc, id desc) and cuts one page out of it.
func page(txs []Transaction, pageNumber, pageSize int) []Transaction {
	if pageNumber < 0 || pageSize <= 0 {
		return []Transaction{}
	}
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.After(ordered[j].Timestamp)
		}
		return ordered[i].ID > ordered[j].ID
	})

	offset := pageNumber * pageSize
	if offset/pageSize != pageNumber || offset >= len(ordered) {
		return []Transaction{}
	}
	end := offset + pageSize
	if end > len(ordered) || end < offset {
		end = len(ordered)
	}
	return ordered[offset:end]
}

func sortedWallets(committed, staged map[int64]Wallet) []Wallet {
	out := make([]Wallet, 0, len(committed))
	for id, w := range committed {
		if s, ok := staged[id]; ok {
			w = s
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
