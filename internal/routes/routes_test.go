package routes

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/wallet_engine/internal/config"
	"github.com/congo-pay/wallet_engine/internal/logging"
	"github.com/congo-pay/wallet_engine/internal/wallet"
)

func devConfig() config.Config {
	return config.Config{
		AppName:        "wallet-engine-test",
		AppEnv:         "development",
		Port:           "0",
		LogLevel:       "debug",
		RequestTimeout: time.Second,
		NotifyChannel:  "wallet.transactions",
		IsolationLevel: "repeatable_read",
	}
}

func newApp(t *testing.T, d Deps) *fiber.App {
	t.Helper()
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	app := fiber.New(fiber.Config{ErrorHandler: wallet.ErrorHandler(d.Logger, d.Cfg.IsProduction())})
	require.NoError(t, Setup(app, d))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSetupRequiresDatabaseOutsideDevelopment(t *testing.T) {
	cfg := devConfig()
	cfg.AppEnv = "production"
	err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestSetupServesSeededWallets(t *testing.T) {
	app := newApp(t, Deps{Cfg: devConfig()})

	var balance wallet.BalanceResponse
	require.Equal(t, fiber.StatusOK, doJSON(t, app, fiber.MethodGet, "/api/wallet/3", "", &balance))
	assert.Equal(t, "1000.00", balance.Balance)

	var owner wallet.OwnerResponse
	require.Equal(t, fiber.StatusOK, doJSON(t, app, fiber.MethodGet, "/api/wallet/2/owner", "", &owner))
	assert.Equal(t, "Bob", owner.Name)

	var missing wallet.ErrorResponse
	require.Equal(t, fiber.StatusNotFound, doJSON(t, app, fiber.MethodGet, "/api/wallet/-1", "", &missing))
	assert.Equal(t, "Wallet does not exist", missing.Message)
}

func TestHealthWithoutBackends(t *testing.T) {
	app := newApp(t, Deps{Cfg: devConfig()})

	var body struct {
		Status  map[string]string `json:"status"`
		Version string            `json:"version"`
	}
	require.Equal(t, fiber.StatusOK, doJSON(t, app, fiber.MethodGet, "/healthz", "", &body))
	assert.Equal(t, "disabled", body.Status["postgres"])
	assert.Equal(t, "disabled", body.Status["redis"])
	assert.NotEmpty(t, body.Version)
}

func TestDepositPublishesAndIsRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cfg := devConfig()
	cfg.RateLimitPerMinute = 1
	app := newApp(t, Deps{Cfg: cfg, Cache: cache})

	sub := cache.Subscribe(context.Background(), cfg.NotifyChannel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	var balance wallet.BalanceResponse
	require.Equal(t, fiber.StatusOK, doJSON(t, app, fiber.MethodPost, "/api/wallet/1/deposit", `{"amount": 25}`, &balance))
	assert.Equal(t, "125.00", balance.Balance)

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"wallet_deposit"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification published")
	}

	var limited wallet.ErrorResponse
	require.Equal(t, fiber.StatusTooManyRequests, doJSON(t, app, fiber.MethodPost, "/api/wallet/1/withdraw", `{"amount": 5}`, &limited))
	assert.Equal(t, 429, limited.Status)

	// Reads are not limited.
	require.Equal(t, fiber.StatusOK, doJSON(t, app, fiber.MethodGet, "/api/wallet/1", "", nil))
}
