package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KindDeposit indicates a committed deposit.
	KindDeposit = "wallet_deposit"
	// KindWithdrawal indicates a committed withdrawal.
	KindWithdrawal = "wallet_withdrawal"
)

// Message describes a committed wallet transaction. Money is rendered with two decimals.
type Message struct {
	Kind          string    `json:"kind"`
	WalletID      int64     `json:"wallet_id"`
	TransactionID int64     `json:"transaction_id"`
	Amount        string    `json:"amount"`
	Balance       string    `json:"balance"`
	Timestamp     time.Time `json:"timestamp"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		"kind", message.Kind,
		"wallet_id", message.WalletID,
		"transaction_id", message.TransactionID,
		"amount", message.Amount,
		"balance", message.Balance,
	)
	return nil
}

// RedisNotifier publishes JSON encoded messages on a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier constructs a notifier publishing to channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Send publishes the message. Having no subscribers is not an error.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.client == nil {
		return nil
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification on %s: %w", n.channel, err)
	}
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

// Send delivers to all notifiers even if some of them fail.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
