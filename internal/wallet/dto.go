package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/wallet_engine/internal/ledger"
)

// timestampLayout renders transaction times as ISO-8601 local datetimes without an offset.
const timestampLayout = "2006-01-02T15:04:05.999999"

// AmountRequest is the body of deposit and withdraw calls. Amount accepts a
// JSON number or a numeric string and is decoded without passing through float64.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BalanceResponse is returned by balance, deposit and withdraw calls.
type BalanceResponse struct {
	Balance string `json:"balance"`
}

// TransactionResponse is one entry of a transaction page.
type TransactionResponse struct {
	ID        int64  `json:"id"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

// TransactionPageResponse echoes the paging parameters with the page contents.
type TransactionPageResponse struct {
	PageNumber   int                   `json:"pageNumber"`
	PageSize     int                   `json:"pageSize"`
	Transactions []TransactionResponse `json:"transactions"`
}

// OwnerResponse describes the customer owning a wallet.
type OwnerResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyScale)
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format(timestampLayout)
}

func toBalanceResponse(w ledger.Wallet) BalanceResponse {
	return BalanceResponse{Balance: formatMoney(w.Balance)}
}

func toPageResponse(pageNumber, pageSize int, txs []ledger.Transaction) TransactionPageResponse {
	out := TransactionPageResponse{
		PageNumber:   pageNumber,
		PageSize:     pageSize,
		Transactions: make([]TransactionResponse, 0, len(txs)),
	}
	for _, t := range txs {
		out.Transactions = append(out.Transactions, TransactionResponse{
			ID:        t.ID,
			Amount:    formatMoney(t.Amount),
			Timestamp: formatTimestamp(t.Timestamp),
		})
	}
	return out
}
