package wallet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/wallet_engine/internal/ledger"
	"github.com/congo-pay/wallet_engine/internal/logging"
	"github.com/congo-pay/wallet_engine/internal/notification"
)

// Service is the wallet transaction engine. It holds no mutable state of its
// own; all coordination between concurrent requests happens in the store.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
	cfg      Config
	logger   *slog.Logger

	now        func() time.Time
	newBackOff func() backoff.BackOff
}

// NewService builds the engine. notifier may be nil.
func NewService(store ledger.Store, notifier notification.Notifier, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		store:      store,
		notifier:   notifier,
		cfg:        cfg.withDefaults(),
		logger:     logger.With("component", "wallet"),
		now:        time.Now,
		newBackOff: conflictBackOff,
	}
}

func conflictBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	return b
}

// DefaultPageSize is the page size used when a caller does not pick one.
func (s *Service) DefaultPageSize() int {
	return s.cfg.DefaultPageSize
}

// GetWallet returns the persisted wallet.
func (s *Service) GetWallet(ctx context.Context, walletID int64) (ledger.Wallet, error) {
	return s.store.FindWallet(ctx, walletID)
}

// ListWallets returns every wallet ordered by id.
func (s *Service) ListWallets(ctx context.Context) ([]ledger.Wallet, error) {
	return s.store.ListWallets(ctx)
}

// Owner fetches the customer owning the wallet.
func (s *Service) Owner(ctx context.Context, walletID int64) (ledger.Customer, error) {
	w, err := s.store.FindWallet(ctx, walletID)
	if err != nil {
		return ledger.Customer{}, err
	}
	return s.store.FindCustomer(ctx, w.CustomerID)
}

// ListTransactions returns one page of the wallet's transactions, newest first.
// A missing wallet is reported as ledger.ErrWalletNotFound, never as an empty page.
func (s *Service) ListTransactions(ctx context.Context, walletID int64, pageNumber, pageSize int) ([]ledger.Transaction, error) {
	if err := s.cfg.checkPage(pageNumber, pageSize); err != nil {
		return nil, err
	}
	if _, err := s.store.FindWallet(ctx, walletID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, walletID, pageNumber, pageSize)
}

// Deposit credits amount to the wallet and returns the updated wallet.
func (s *Service) Deposit(ctx context.Context, walletID int64, amount decimal.Decimal) (ledger.Wallet, error) {
	if err := s.cfg.checkDeposit(amount); err != nil {
		s.reject(ctx, walletID, "deposit", err)
		return ledger.Wallet{}, err
	}
	return s.process(ctx, walletID, amount)
}

// Withdraw debits amount from the wallet and returns the updated wallet.
func (s *Service) Withdraw(ctx context.Context, walletID int64, amount decimal.Decimal) (ledger.Wallet, error) {
	if err := s.cfg.checkWithdrawal(amount); err != nil {
		s.reject(ctx, walletID, "withdraw", err)
		return ledger.Wallet{}, err
	}
	return s.process(ctx, walletID, amount.Neg())
}

// process applies delta in its own transaction and retries the whole unit of
// work on store conflicts, up to the configured number of extra attempts.
func (s *Service) process(ctx context.Context, walletID int64, delta decimal.Decimal) (ledger.Wallet, error) {
	log := logging.FromContext(ctx, s.logger).With("wallet_id", walletID)

	var (
		updated ledger.Wallet
		posted  ledger.Transaction
	)
	attempt := func() error {
		var err error
		updated, posted, err = s.apply(ctx, walletID, delta)
		if err == nil || errors.Is(err, ledger.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}
	retries := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.cfg.ConflictRetries)), ctx)
	onConflict := func(err error, wait time.Duration) {
		log.Warn("wallet update conflict, retrying", "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(attempt, retries, onConflict); err != nil {
		switch OutcomeOf(err) {
		case OutcomeInvalid, OutcomeNotFound:
			s.reject(ctx, walletID, "process", err)
		case OutcomeConflict:
			log.Warn("wallet update conflict, giving up", "error", err)
		case OutcomeInternal:
			log.Error("wallet update failed", "error", err)
		}
		return ledger.Wallet{}, err
	}

	log.Debug("wallet transaction committed",
		"transaction_id", posted.ID,
		"amount", posted.Amount.String(),
		"balance", updated.Balance.String(),
	)
	s.notify(ctx, updated, posted)
	return updated, nil
}

// apply is one attempt of the common processor: lookup, guard, balance check,
// save and append, all inside a single transaction sharing one clock reading.
func (s *Service) apply(ctx context.Context, walletID int64, delta decimal.Decimal) (ledger.Wallet, ledger.Transaction, error) {
	var (
		updated ledger.Wallet
		posted  ledger.Transaction
	)
	err := s.store.RunInTx(ctx, s.cfg.IsolationLevel, func(repo ledger.Repository) error {
		w, err := repo.FindWallet(ctx, walletID)
		if err != nil {
			return err
		}

		latest, err := repo.ListTransactions(ctx, walletID, 0, 1)
		if err != nil {
			return err
		}

		now := s.now().UTC().Truncate(time.Microsecond)
		if err := s.cfg.checkDoubleSubmit(latest, delta, now); err != nil {
			return err
		}

		balance := w.Balance.Add(delta)
		if err := checkBalance(balance); err != nil {
			return err
		}

		w.Balance = balance
		if updated, err = repo.SaveWallet(ctx, w); err != nil {
			return err
		}
		posted, err = repo.InsertTransaction(ctx, walletID, delta, now)
		return err
	})
	if err != nil {
		return ledger.Wallet{}, ledger.Transaction{}, err
	}
	return updated, posted, nil
}

func (s *Service) reject(ctx context.Context, walletID int64, op string, err error) {
	logging.FromContext(ctx, s.logger).Info("wallet operation rejected",
		"wallet_id", walletID,
		"op", op,
		"outcome", OutcomeOf(err).String(),
		"reason", err.Error(),
	)
}

// notify publishes the committed transaction. Delivery failures never undo a commit.
func (s *Service) notify(ctx context.Context, w ledger.Wallet, t ledger.Transaction) {
	if s.notifier == nil {
		return
	}
	kind := notification.KindDeposit
	if t.Amount.IsNegative() {
		kind = notification.KindWithdrawal
	}
	msg := notification.Message{
		Kind:          kind,
		WalletID:      w.ID,
		TransactionID: t.ID,
		Amount:        formatMoney(t.Amount),
		Balance:       formatMoney(w.Balance),
		Timestamp:     t.Timestamp,
	}
	if err := s.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		logging.FromContext(ctx, s.logger).Warn("notification failed", "wallet_id", w.ID, "transaction_id", t.ID, "error", err)
	}
}
