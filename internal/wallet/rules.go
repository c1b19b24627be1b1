package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/wallet_engine/internal/ledger"
)

const (
	moneyScale = 2

	reasonDoubleSubmit     = "Transaction rejected - possible double-submit"
	reasonExceedsBalance   = "Withdrawal amount exceeds available balance"
	reasonScale            = "Amount must have at most 2 decimal places"
	reasonNegativePage     = "pageNumber must not be negative"
	reasonNonPositiveSize  = "pageSize must be positive"
	reasonPageSizeTooLarge = "pageSize must not exceed %d"
)

// Config carries the business limits of the engine. All bounds are inclusive.
type Config struct {
	MinDeposit        decimal.Decimal
	MaxDeposit        decimal.Decimal
	MinWithdrawal     decimal.Decimal
	MaxWithdrawal     decimal.Decimal
	DoubleSubmitGuard time.Duration
	DefaultPageSize   int
	MaxPageSize       int
	ConflictRetries   int
	IsolationLevel    ledger.IsolationLevel
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		MinDeposit:        decimal.NewFromInt(10),
		MaxDeposit:        decimal.NewFromInt(10000),
		MinWithdrawal:     decimal.New(1, -2),
		MaxWithdrawal:     decimal.NewFromInt(5000),
		DoubleSubmitGuard: 3 * time.Second,
		DefaultPageSize:   10,
		MaxPageSize:       100,
		ConflictRetries:   3,
		IsolationLevel:    ledger.RepeatableRead,
	}
}

// withDefaults fills unset limits. A zero guard window or zero retries are
// kept as given since both are meaningful.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinDeposit.IsZero() {
		c.MinDeposit = def.MinDeposit
	}
	if c.MaxDeposit.IsZero() {
		c.MaxDeposit = def.MaxDeposit
	}
	if c.MinWithdrawal.IsZero() {
		c.MinWithdrawal = def.MinWithdrawal
	}
	if c.MaxWithdrawal.IsZero() {
		c.MaxWithdrawal = def.MaxWithdrawal
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = def.MaxPageSize
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		c.DefaultPageSize = min(def.DefaultPageSize, c.MaxPageSize)
	}
	if c.IsolationLevel == "" {
		c.IsolationLevel = def.IsolationLevel
	}
	return c
}

func checkScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(moneyScale)) {
		return invalid(reasonScale)
	}
	return nil
}

func (c Config) checkDeposit(amount decimal.Decimal) error {
	if err := checkScale(amount); err != nil {
		return err
	}
	if amount.LessThan(c.MinDeposit) {
		return invalidf("Deposit amount must be at least %s", c.MinDeposit)
	}
	if amount.GreaterThan(c.MaxDeposit) {
		return invalidf("Deposit amount must not exceed %s", c.MaxDeposit)
	}
	return nil
}

func (c Config) checkWithdrawal(amount decimal.Decimal) error {
	if err := checkScale(amount); err != nil {
		return err
	}
	if amount.LessThan(c.MinWithdrawal) {
		return invalidf("Withdrawal amount must be at least %s", c.MinWithdrawal)
	}
	if amount.GreaterThan(c.MaxWithdrawal) {
		return invalidf("Withdrawal amount must not exceed %s", c.MaxWithdrawal)
	}
	return nil
}

// checkDoubleSubmit rejects delta when the most recent transaction carried the
// exact same signed amount less than the guard window ago. Only the latest
// transaction is consulted, so a burst A, B, A inside the window is accepted.
func (c Config) checkDoubleSubmit(latest []ledger.Transaction, delta decimal.Decimal, now time.Time) error {
	if c.DoubleSubmitGuard <= 0 || len(latest) == 0 {
		return nil
	}
	prev := latest[0]
	if prev.Amount.Equal(delta) && now.Sub(prev.Timestamp) < c.DoubleSubmitGuard {
		return invalid(reasonDoubleSubmit)
	}
	return nil
}

func checkBalance(newBalance decimal.Decimal) error {
	if newBalance.IsNegative() {
		return invalid(reasonExceedsBalance)
	}
	return nil
}

func (c Config) checkPage(pageNumber, pageSize int) error {
	switch {
	case pageNumber < 0:
		return invalid(reasonNegativePage)
	case pageSize <= 0:
		return invalid(reasonNonPositiveSize)
	case pageSize > c.MaxPageSize:
		return invalidf(reasonPageSizeTooLarge, c.MaxPageSize)
	}
	return nil
}
