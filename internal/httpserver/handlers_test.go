package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profitcruiser/internal/auth"
	"profitcruiser/internal/payment"
	"profitcruiser/internal/shop"
	"profitcruiser/internal/state"
)

func newTestAPI(t *testing.T) (*httptest.Server, *auth.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := state.Open(filepath.Join(t.TempDir(), "state.json"), logger)
	require.NoError(t, err)

	registry := payment.NewRegistry(payment.ManualProvider{})
	authService := auth.New(store, logger)
	shopService := shop.New(store, registry, logger, nil)
	webhook := payment.NewWebhookHandler(logger, nil, "", false, shopService)

	server := New(":0", Deps{
		Logger:  logger,
		Auth:    authService,
		Shop:    shopService,
		Webhook: webhook,
		Crypto:  nil,
	})

	ts := httptest.NewServer(server.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, authService
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func decode(t *testing.T, res *http.Response, dest any) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(dest))
}

func TestRegisterOrderAndListFlow(t *testing.T) {
	ts, _ := newTestAPI(t)

	res := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]string{
		"email":    "julian@example.com",
		"username": "julian",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var session struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	decode(t, res, &session)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "user", session.User.Role)

	res = doJSON(t, http.MethodPost, ts.URL+"/api/orders", session.Token, map[string]any{
		"amount":        14.5,
		"currency":      "EUR",
		"product":       "Private Chat",
		"paymentMethod": "manual",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var created struct {
		Order struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"order"`
		Chat *struct {
			Status string `json:"status"`
		} `json:"chat"`
	}
	decode(t, res, &created)
	assert.Equal(t, "paid", created.Order.Status)
	require.NotNil(t, created.Chat)
	assert.Equal(t, "open", created.Chat.Status)

	res = doJSON(t, http.MethodGet, ts.URL+"/api/orders", session.Token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var listing struct {
		Orders []struct {
			ID string `json:"id"`
		} `json:"orders"`
	}
	decode(t, res, &listing)
	require.Len(t, listing.Orders, 1)
	assert.Equal(t, created.Order.ID, listing.Orders[0].ID)
}

func TestOrdersRequireAuth(t *testing.T) {
	ts, _ := newTestAPI(t)

	res := doJSON(t, http.MethodPost, ts.URL+"/api/orders", "", map[string]any{
		"amount": 5, "product": "X",
	})
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = doJSON(t, http.MethodGet, ts.URL+"/api/chats", "", nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAdminEndpointsEnforceRole(t *testing.T) {
	ts, authService := newTestAPI(t)

	res := doJSON(t, http.MethodGet, ts.URL+"/api/admin/overview", "", nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	_, userToken, err := authService.Register("user@example.com", "user", "pw")
	require.NoError(t, err)
	res = doJSON(t, http.MethodGet, ts.URL+"/api/admin/overview", userToken, nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	_, adminToken, err := authService.Login(state.DefaultAdminEmail, state.DefaultAdminPassword)
	require.NoError(t, err)
	res = doJSON(t, http.MethodGet, ts.URL+"/api/admin/overview", adminToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var overview struct {
		Totals struct {
			Views int `json:"views"`
		} `json:"totals"`
	}
	decode(t, res, &overview)
	assert.Greater(t, overview.Totals.Views, 0)
}

func TestPublicEndpoints(t *testing.T) {
	ts, _ := newTestAPI(t)

	res := doJSON(t, http.MethodGet, ts.URL+"/api/payments/providers", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var providers struct {
		Providers []struct {
			Key string `json:"key"`
		} `json:"providers"`
	}
	decode(t, res, &providers)
	require.Len(t, providers.Providers, 1)
	assert.Equal(t, "manual", providers.Providers[0].Key)

	res = doJSON(t, http.MethodGet, ts.URL+"/api/crypto/prices", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var prices struct {
		Prices     map[string]float64 `json:"prices"`
		Currencies []struct {
			Code string `json:"code"`
		} `json:"currencies"`
	}
	decode(t, res, &prices)
	assert.Empty(t, prices.Prices)
	assert.Len(t, prices.Currencies, 4)

	res = doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCreateScriptDuplicateSlugConflicts(t *testing.T) {
	ts, authService := newTestAPI(t)

	_, adminToken, err := authService.Login(state.DefaultAdminEmail, state.DefaultAdminPassword)
	require.NoError(t, err)

	script := map[string]string{"slug": "auto-rob-hub", "title": "Auto Rob Hub", "category": "farming"}

	res := doJSON(t, http.MethodPost, ts.URL+"/api/admin/scripts", adminToken, script)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = doJSON(t, http.MethodPost, ts.URL+"/api/admin/scripts", adminToken, script)
	defer res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestRecordViewEndpoint(t *testing.T) {
	ts, _ := newTestAPI(t)

	res := doJSON(t, http.MethodPost, ts.URL+"/api/views/auto-rob-hub", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var snap struct {
		Views map[string]int `json:"views"`
		Total int            `json:"total"`
	}
	decode(t, res, &snap)
	assert.Equal(t, 1581, snap.Views["auto-rob-hub"])
}

func TestWebhookRouteDisabledSink(t *testing.T) {
	ts, _ := newTestAPI(t)

	res := doJSON(t, http.MethodPost, ts.URL+"/api/nowpayments/webhook", "", map[string]string{
		"order_id": "#30219", "payment_status": "finished",
	})
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}
