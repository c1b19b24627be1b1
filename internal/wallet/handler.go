package wallet

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/wallet_engine/internal/ledger"
	"github.com/congo-pay/wallet_engine/internal/logging"
)

const (
	msgWalletNotFound   = "Wallet does not exist"
	msgCustomerNotFound = "Customer does not exist"
	msgInvalidWalletID  = "Invalid wallet id"
	msgMalformedBody    = "Malformed request body"
	msgBusy             = "Wallet is busy, please retry"
	msgTimeout          = "Request timed out"
	msgInternal         = "Internal server error"
)

// HandlerConfig tunes the HTTP adaptation of the engine.
type HandlerConfig struct {
	// RequestTimeout bounds each engine call. Zero means no extra deadline.
	RequestTimeout time.Duration
	// HideInternalErrors replaces internal error details with a generic message.
	HideInternalErrors bool
}

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
	cfg     HandlerConfig
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service, logger *slog.Logger, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{service: service, logger: logger, cfg: cfg}
}

// Balance returns the wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID, err := walletIDParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.context(c)
	defer cancel()

	w, err := h.service.GetWallet(ctx, walletID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(w))
}

// Transactions returns one page of the wallet's history, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	walletID, err := walletIDParam(c)
	if err != nil {
		return err
	}
	pageNumber, err := intQuery(c, "pageNumber", 0)
	if err != nil {
		return err
	}
	pageSize, err := intQuery(c, "pageSize", h.service.DefaultPageSize())
	if err != nil {
		return err
	}
	ctx, cancel := h.context(c)
	defer cancel()

	txs, err := h.service.ListTransactions(ctx, walletID, pageNumber, pageSize)
	if err != nil {
		return h.fail(ctx, err)
	}
	return c.Status(http.StatusOK).JSON(toPageResponse(pageNumber, pageSize, txs))
}

// Deposit credits the wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.move(c, h.service.Deposit)
}

// Withdraw debits the wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.move(c, h.service.Withdraw)
}

// Owner returns the customer owning the wallet.
func (h *Handler) Owner(c *fiber.Ctx) error {
	walletID, err := walletIDParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.context(c)
	defer cancel()

	customer, err := h.service.Owner(ctx, walletID)
	if err != nil {
		return h.fail(ctx, err)
	}
	return c.Status(http.StatusOK).JSON(OwnerResponse{ID: customer.ID, Name: customer.Name})
}

type moveFunc func(ctx context.Context, walletID int64, amount decimal.Decimal) (ledger.Wallet, error)

func (h *Handler) move(c *fiber.Ctx, op moveFunc) error {
	walletID, err := walletIDParam(c)
	if err != nil {
		return err
	}
	var req AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, msgMalformedBody)
	}
	ctx, cancel := h.context(c)
	defer cancel()

	w, err := op(ctx, walletID, req.Amount)
	if err != nil {
		return h.fail(ctx, err)
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(w))
}

func (h *Handler) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if h.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, h.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// fail maps an engine error to the HTTP error rendered by ErrorHandler.
func (h *Handler) fail(ctx context.Context, err error) error {
	switch OutcomeOf(err) {
	case OutcomeNotFound:
		if errors.Is(err, ledger.ErrCustomerNotFound) {
			return fiber.NewError(http.StatusNotFound, msgCustomerNotFound)
		}
		return fiber.NewError(http.StatusNotFound, msgWalletNotFound)
	case OutcomeInvalid:
		var verr *ValidationError
		errors.As(err, &verr)
		return fiber.NewError(http.StatusBadRequest, verr.Reason)
	case OutcomeConflict:
		return fiber.NewError(http.StatusServiceUnavailable, msgBusy)
	case OutcomeTimeout:
		return fiber.NewError(http.StatusGatewayTimeout, msgTimeout)
	default:
		logging.FromContext(ctx, h.logger).Error("wallet request failed", "error", err)
		if h.cfg.HideInternalErrors {
			return fiber.NewError(http.StatusInternalServerError, msgInternal)
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func walletIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, msgInvalidWalletID)
	}
	return id, nil
}

func intQuery(c *fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, key+" must be an integer")
	}
	return v, nil
}

// ErrorHandler renders every error reaching fiber as an ErrorResponse.
// Errors that are not *fiber.Error are unexpected and logged.
func ErrorHandler(logger *slog.Logger, hideInternal bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		message := err.Error()

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled request error", "method", c.Method(), "path", c.Path(), "error", err)
			if hideInternal {
				message = msgInternal
			}
		}
		return c.Status(status).JSON(ErrorResponse{Status: status, Message: message})
	}
}
