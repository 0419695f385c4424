package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateInvoice(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/invoice", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          4321098765,
			"invoice_url": "https://nowpayments.io/payment/?iid=4321098765",
			"status":      "waiting",
			"pay_amount":  0.00021,
		})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		BaseURL:            srv.URL,
		APIKey:             "test-key",
		WebhookURL:         "https://shop.example/api/nowpayments/webhook",
		SuccessURLTemplate: "https://shop.example/account?order={{orderId}}&status=success",
		CancelURLTemplate:  "https://shop.example/account?order={{orderId}}&status=cancelled",
		Timeout:            5 * time.Second,
	}, discardLogger(), nil, nil)

	invoice, err := client.CreateInvoice(context.Background(), Request{
		OrderID:  "#30221",
		Amount:   7.99,
		Currency: "EUR",
		Product:  "Auto Rob Hub",
		Username: "Alex#123",
	}, "btc")
	require.NoError(t, err)

	assert.Equal(t, 7.99, captured["price_amount"])
	assert.Equal(t, "eur", captured["price_currency"])
	assert.Equal(t, "btc", captured["pay_currency"])
	assert.Equal(t, "#30221", captured["order_id"])
	assert.Equal(t, "Auto Rob Hub for Alex#123", captured["order_description"])
	assert.Equal(t, "https://shop.example/api/nowpayments/webhook", captured["ipn_callback_url"])
	assert.Equal(t, "https://shop.example/account?order=%2330221&status=success", captured["success_url"])
	assert.Equal(t, "https://shop.example/account?order=%2330221&status=cancelled", captured["cancel_url"])

	require.NotNil(t, invoice.InvoiceID)
	assert.Equal(t, "4321098765", *invoice.InvoiceID)
	require.NotNil(t, invoice.InvoiceURL)
	assert.Equal(t, "https://nowpayments.io/payment/?iid=4321098765", *invoice.InvoiceURL)
	assert.Equal(t, "waiting", invoice.Status)
	assert.Equal(t, "btc", invoice.PayCurrency)
	require.NotNil(t, invoice.PayAmount)
	assert.Equal(t, 0.00021, *invoice.PayAmount)
}

func TestCreateInvoiceProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Invalid api key"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "bad"}, discardLogger(), nil, nil)

	_, err := client.CreateInvoice(context.Background(), Request{OrderID: "#1", Amount: 1, Currency: "EUR"}, "btc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid api key")
}

func TestCreateInvoiceOpaqueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, discardLogger(), nil, nil)

	_, err := client.CreateInvoice(context.Background(), Request{OrderID: "#1", Amount: 1, Currency: "EUR"}, "eth")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOWPayments request failed (502)")
}

func TestEstimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/estimate", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("amount"))
		require.Equal(t, "eur", r.URL.Query().Get("currency_from"))
		require.Equal(t, "btc", r.URL.Query().Get("currency_to"))
		_, _ = w.Write([]byte(`{"estimated_amount":"0.0000112"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, discardLogger(), nil, nil)

	rate, err := client.Estimate(context.Background(), "EUR", "btc")
	require.NoError(t, err)
	assert.Equal(t, 0.0000112, rate)
}

func TestCryptoProviderCreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"77","invoice_url":"https://nowpayments.io/payment/?iid=77","status":"waiting"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, discardLogger(), nil, nil)
	providers := NewCryptoProviders(client)
	require.Len(t, providers, len(SupportedCryptoCurrencies))

	btc := providers[0]
	assert.Equal(t, "nowpayments-btc", btc.Key())
	assert.Equal(t, "NOWPayments (Bitcoin)", btc.Label())
	assert.Equal(t, "BTC", btc.PayCurrency())
	assert.True(t, btc.SupportsRedirect())

	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result, err := btc.CreatePayment(context.Background(), Request{
		OrderID:   "#30222",
		Amount:    14.5,
		Currency:  "EUR",
		Product:   "Private Chat",
		Username:  "julian",
		CreatedAt: createdAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "pending", result.OrderStatus)
	assert.Equal(t, "nowpayments-btc", result.Payment.Provider)
	assert.Equal(t, "waiting", result.Payment.Status)
	require.NotNil(t, result.Payment.InvoiceURL)
	assert.Nil(t, result.Payment.ActuallyPaid)
	assert.Equal(t, createdAt, result.Payment.CreatedAt)
	assert.Equal(t, createdAt, result.Payment.UpdatedAt)
}
