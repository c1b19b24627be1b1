package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newSeededStore(t *testing.T) Store {
	t.Helper()
	s := NewInMemory()
	SeedWallet(s, Customer{ID: 1, Name: "Alice"}, decimal.RequireFromString("100.00"))
	SeedWallet(s, Customer{ID: 2, Name: "Bob"}, decimal.RequireFromString("150.00"))
	return s
}

func TestInMemoryStore_CommitAppliesWalletAndTransaction(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	err := s.RunInTx(ctx, RepeatableRead, func(repo Repository) error {
		w, err := repo.FindWallet(ctx, 1)
		if err != nil {
			return err
		}
		w.Balance = w.Balance.Add(decimal.NewFromInt(25))
		if _, err := repo.SaveWallet(ctx, w); err != nil {
			return err
		}
		_, err = repo.InsertTransaction(ctx, 1, decimal.NewFromInt(25), at)
		return err
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}

	w, err := s.FindWallet(ctx, 1)
	if err != nil {
		t.Fatalf("find wallet: %v", err)
	}
	if !w.Balance.Equal(decimal.RequireFromString("125")) {
		t.Fatalf("expected balance 125, got %s", w.Balance)
	}

	txs, err := s.ListTransactions(ctx, 1, 0, 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != 1 || !txs[0].Timestamp.Equal(at) {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
}

func TestInMemoryStore_ErrorRollsBack(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, RepeatableRead, func(repo Repository) error {
		w, _ := repo.FindWallet(ctx, 2)
		w.Balance = decimal.Zero
		if _, err := repo.SaveWallet(ctx, w); err != nil {
			return err
		}
		if _, err := repo.InsertTransaction(ctx, 2, decimal.NewFromInt(-150), time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	w, _ := s.FindWallet(ctx, 2)
	if !w.Balance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("balance changed after rollback: %s", w.Balance)
	}
	txs, _ := s.ListTransactions(ctx, 2, 0, 10)
	if len(txs) != 0 {
		t.Fatalf("transaction visible after rollback: %+v", txs)
	}
}

func TestInMemoryStore_PanicRollsBackAndReleasesLock(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	func() {
		defer func() { _ = recover() }()
		_ = s.RunInTx(ctx, RepeatableRead, func(repo Repository) error {
			_, _ = repo.InsertTransaction(ctx, 1, decimal.NewFromInt(10), time.Now())
			panic("unexpected")
		})
	}()

	txs, err := s.ListTransactions(ctx, 1, 0, 10)
	if err != nil {
		t.Fatalf("list after panic: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions after panic, got %d", len(txs))
	}
}

func TestInMemoryStore_TxSeesOwnWrites(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := s.RunInTx(ctx, Serializable, func(repo Repository) error {
		if _, err := repo.InsertTransaction(ctx, 1, decimal.NewFromInt(10), now); err != nil {
			return err
		}
		latest, err := repo.ListTransactions(ctx, 1, 0, 1)
		if err != nil {
			return err
		}
		if len(latest) != 1 || !latest[0].Amount.Equal(decimal.NewFromInt(10)) {
			t.Errorf("staged insert not visible: %+v", latest)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}
}

func TestInMemoryStore_OrderingAndPaging(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()
	same := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	stamps := []time.Time{same.Add(-time.Minute), same, same, same.Add(time.Minute)}

	for i, ts := range stamps {
		if _, err := s.InsertTransaction(ctx, 2, decimal.NewFromInt(int64(i+1)), ts); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	all, _ := s.ListTransactions(ctx, 2, 0, 50)
	wantIDs := []int64{4, 3, 2, 1}
	if len(all) != len(wantIDs) {
		t.Fatalf("expected %d transactions, got %d", len(wantIDs), len(all))
	}
	for i, id := range wantIDs {
		if all[i].ID != id {
			t.Fatalf("position %d: expected id %d, got %d", i, id, all[i].ID)
		}
	}

	second, _ := s.ListTransactions(ctx, 2, 1, 2)
	if len(second) != 2 || second[0].ID != all[2].ID {
		t.Fatalf("second page mismatch: %+v", second)
	}

	beyond, _ := s.ListTransactions(ctx, 2, 5, 2)
	if len(beyond) != 0 {
		t.Fatalf("expected empty page, got %d", len(beyond))
	}
}

func TestInMemoryStore_RejectsConstraintViolations(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	if _, err := s.SaveWallet(ctx, Wallet{ID: 1, Balance: decimal.NewFromInt(-1)}); err == nil {
		t.Fatalf("expected negative balance to be rejected")
	}
	if _, err := s.InsertTransaction(ctx, 1, decimal.Zero, time.Now()); err == nil {
		t.Fatalf("expected zero amount to be rejected")
	}
	if _, err := s.FindWallet(ctx, 99); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
	if _, err := s.FindCustomer(ctx, 99); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestInMemoryStore_ConcurrentUnitsOfWork(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(ctx, RepeatableRead, func(repo Repository) error {
				w, err := repo.FindWallet(ctx, 1)
				if err != nil {
					return err
				}
				w.Balance = w.Balance.Add(decimal.NewFromInt(5))
				if _, err := repo.SaveWallet(ctx, w); err != nil {
					return err
				}
				_, err = repo.InsertTransaction(ctx, 1, decimal.NewFromInt(5), time.Now())
				return err
			})
			if err != nil {
				t.Errorf("unit of work failed: %v", err)
			}
		}()
	}
	wg.Wait()

	w, _ := s.FindWallet(ctx, 1)
	if !w.Balance.Equal(decimal.NewFromInt(100 + 5*workers)) {
		t.Fatalf("lost update: balance %s", w.Balance)
	}
	txs, _ := s.ListTransactions(ctx, 1, 0, 100)
	if len(txs) != workers {
		t.Fatalf("expected %d transactions, got %d", workers, len(txs))
	}
}

func TestInMemoryStore_CanceledContext(t *testing.T) {
	s := newSeededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.RunInTx(ctx, RepeatableRead, func(repo Repository) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
