package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"profitcruiser/internal/cache"
	"profitcruiser/internal/metrics"
	"profitcruiser/internal/state"
)

const defaultEstimateCacheTTL = 5 * time.Minute

// CryptoCurrency describes one settlement asset offered at checkout.
type CryptoCurrency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// SupportedCryptoCurrencies is the fixed asset set, in NOWPayments
// currency-code format.
var SupportedCryptoCurrencies = []CryptoCurrency{
	{Code: "btc", Name: "Bitcoin", Symbol: "₿"},
	{Code: "eth", Name: "Ethereum", Symbol: "Ξ"},
	{Code: "usdterc20", Name: "Tether USD (ERC-20)", Symbol: "₮"},
	{Code: "usdcerc20", Name: "USD Coin (ERC-20)", Symbol: "$"},
}

// ClientConfig holds NOWPayments client configuration.
type ClientConfig struct {
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	WebhookURL         string
	SuccessURLTemplate string
	CancelURLTemplate  string
}

// Client provides typed access to the NOWPayments API.
type Client struct {
	logger      *slog.Logger
	baseURL     string
	apiKey      string
	webhookURL  string
	successTmpl string
	cancelTmpl  string
	http        *http.Client
	metrics     *metrics.Metrics
	cache       *cache.Redis
	estimateTTL time.Duration
}

// NewClient creates a NOWPayments client. The redis cache may be nil.
func NewClient(cfg ClientConfig, logger *slog.Logger, metrics *metrics.Metrics, redis *cache.Redis) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.nowpayments.io"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		logger:      logger.With("component", "nowpayments"),
		baseURL:     base,
		apiKey:      cfg.APIKey,
		webhookURL:  cfg.WebhookURL,
		successTmpl: cfg.SuccessURLTemplate,
		cancelTmpl:  cfg.CancelURLTemplate,
		http:        &http.Client{Timeout: timeout},
		metrics:     metrics,
		cache:       redis,
		estimateTTL: defaultEstimateCacheTTL,
	}
}

// Invoice is the subset of the hosted-invoice response the storefront
// keeps.
type Invoice struct {
	InvoiceID   *string
	InvoiceURL  *string
	Status      string
	PayCurrency string
	PayAmount   *float64
}

// resolveTemplate substitutes the literal {{orderId}} placeholder.
func resolveTemplate(template, orderID string) string {
	return strings.ReplaceAll(template, "{{orderId}}", url.QueryEscape(orderID))
}

// CreateInvoice calls POST /v1/invoice with the order metadata and the
// configured callback URLs.
func (c *Client) CreateInvoice(ctx context.Context, req Request, payCurrency string) (*Invoice, error) {
	payload := map[string]any{
		"price_amount":      req.Amount,
		"price_currency":    strings.ToLower(req.Currency),
		"pay_currency":      strings.ToLower(payCurrency),
		"order_id":          req.OrderID,
		"order_description": fmt.Sprintf("%s for %s", req.Product, req.Username),
		"ipn_callback_url":  c.webhookURL,
	}
	if c.successTmpl != "" {
		payload["success_url"] = resolveTemplate(c.successTmpl, req.OrderID)
	}
	if c.cancelTmpl != "" {
		payload["cancel_url"] = resolveTemplate(c.cancelTmpl, req.OrderID)
	}

	data, err := c.do(ctx, http.MethodPost, "/v1/invoice", payload)
	if err != nil {
		return nil, err
	}

	invoice := &Invoice{
		Status:      strings.ToLower(firstString(data, "status")),
		PayCurrency: firstString(data, "pay_currency"),
	}
	if invoice.Status == "" {
		invoice.Status = "waiting"
	}
	if invoice.PayCurrency == "" {
		invoice.PayCurrency = payCurrency
	}
	if id := firstString(data, "id"); id != "" {
		invoice.InvoiceID = &id
	}
	if invoiceURL := firstString(data, "invoice_url"); invoiceURL != "" {
		invoice.InvoiceURL = &invoiceURL
	}
	if amount, ok := numberField(data, "pay_amount"); ok {
		invoice.PayAmount = &amount
	}
	return invoice, nil
}

// Estimate converts one unit of a fiat currency into the given crypto
// asset, served from the redis cache when fresh.
func (c *Client) Estimate(ctx context.Context, fiatCurrency, cryptoCurrency string) (float64, error) {
	fiat := strings.ToLower(strings.TrimSpace(fiatCurrency))
	if fiat == "" {
		fiat = "eur"
	}
	crypto := strings.ToLower(strings.TrimSpace(cryptoCurrency))
	cacheKey := "nowpayments:estimate:" + fiat + ":" + crypto

	var cached float64
	if ok, err := c.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		c.logger.Warn("read estimate cache failed", "error", err)
	} else if ok {
		return cached, nil
	}

	endpoint := "/v1/estimate?amount=1&currency_from=" + url.QueryEscape(fiat) +
		"&currency_to=" + url.QueryEscape(crypto)
	data, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	rate, ok := numberField(data, "estimated_amount")
	if !ok {
		return 0, fmt.Errorf("estimate response missing estimated_amount")
	}

	if err := c.cache.SetJSON(ctx, cacheKey, rate, c.estimateTTL); err != nil {
		c.logger.Warn("set estimate cache failed", "error", err)
	}
	return rate, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	metricEndpoint := endpoint
	if i := strings.IndexByte(metricEndpoint, '?'); i >= 0 {
		metricEndpoint = metricEndpoint[:i]
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.NowPaymentsRequests.WithLabelValues(metricEndpoint, "error").Inc()
		}
		return nil, fmt.Errorf("nowpayments request: %w", err)
	}
	defer res.Body.Close()

	if c.metrics != nil {
		statusLabel := strconv.Itoa(res.StatusCode)
		c.metrics.NowPaymentsRequests.WithLabelValues(metricEndpoint, statusLabel).Inc()
		c.metrics.NowPaymentsLatency.WithLabelValues(metricEndpoint, statusLabel).Observe(time.Since(start).Seconds())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Malformed bodies decode to an empty map; the status code decides
	// whether that is an error.
	data := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			data = map[string]any{}
		}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		message := firstString(data, "message", "error")
		if message == "" {
			message = fmt.Sprintf("NOWPayments request failed (%d)", res.StatusCode)
		}
		return nil, fmt.Errorf("nowpayments %s error: %s", metricEndpoint, message)
	}
	return data, nil
}

func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := data[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func numberField(data map[string]any, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return parsed, true
		}
	case json.Number:
		parsed, err := v.Float64()
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// CryptoProvider creates hosted NOWPayments invoices for a single asset.
type CryptoProvider struct {
	client *Client
	asset  CryptoCurrency
}

// NewCryptoProviders builds one provider per supported asset sharing the
// same client.
func NewCryptoProviders(client *Client) []Provider {
	providers := make([]Provider, 0, len(SupportedCryptoCurrencies))
	for _, asset := range SupportedCryptoCurrencies {
		providers = append(providers, &CryptoProvider{client: client, asset: asset})
	}
	return providers
}

func (p *CryptoProvider) Key() string            { return keyGeneric + "-" + p.asset.Code }
func (p *CryptoProvider) Label() string          { return "NOWPayments (" + p.asset.Name + ")" }
func (p *CryptoProvider) Type() string           { return TypeCrypto }
func (p *CryptoProvider) PayCurrency() string    { return strings.ToUpper(p.asset.Code) }
func (p *CryptoProvider) SupportsRedirect() bool { return true }

// CreatePayment creates a hosted invoice and reports the normalized
// status it starts in.
func (p *CryptoProvider) CreatePayment(ctx context.Context, req Request) (*Result, error) {
	invoice, err := p.client.CreateInvoice(ctx, req, p.asset.Code)
	if err != nil {
		return nil, err
	}

	return &Result{
		OrderStatus: NormalizeStatus(invoice.Status),
		Payment: state.Payment{
			Provider:      p.Key(),
			ProviderLabel: p.Label(),
			InvoiceID:     invoice.InvoiceID,
			InvoiceURL:    invoice.InvoiceURL,
			Status:        invoice.Status,
			PayCurrency:   invoice.PayCurrency,
			PayAmount:     invoice.PayAmount,
			CreatedAt:     req.CreatedAt,
			UpdatedAt:     req.CreatedAt,
		},
	}, nil
}
