package ledger

import "github.com/shopspring/decimal"

// SeedEntry is a customer together with the opening balance of its wallet.
type SeedEntry struct {
	Customer Customer
	Balance  decimal.Decimal
}

// DefaultSeed mirrors the rows inserted by the seed migration so that the
// in-memory store used in development starts from the same state as Postgres.
func DefaultSeed() []SeedEntry {
	return []SeedEntry{
		{Customer: Customer{ID: 1, Name: "Alice"}, Balance: decimal.RequireFromString("100.00")},
		{Customer: Customer{ID: 2, Name: "Bob"}, Balance: decimal.RequireFromString("150.00")},
		{Customer: Customer{ID: 3, Name: "Carol"}, Balance: decimal.RequireFromString("1000.00")},
	}
}

// SeedWallet registers a customer and its wallet when using the in-memory store.
// Other backends are seeded through migrations and are left untouched.
func SeedWallet(s Store, customer Customer, balance decimal.Decimal) {
	mem, ok := s.(*inMemoryStore)
	if !ok {
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.customers[customer.ID] = customer
	mem.wallets[customer.ID] = Wallet{ID: customer.ID, CustomerID: customer.ID, Balance: balance}
}
