package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	calls    int
	lastBody []byte
	err      error
}

func (p *recordingProcessor) HandlePaymentEvent(_ context.Context, payload []byte) error {
	p.calls++
	p.lastBody = payload
	return p.err
}

func sign(secret, body string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(h http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/nowpayments/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("x-nowpayments-sig", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookValidSignature(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewWebhookHandler(discardLogger(), nil, "secret", true, proc)

	body := `{"order_id":"#30219","payment_status":"finished"}`
	rec := postWebhook(h, body, sign("secret", body))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 1, proc.calls)
	assert.Equal(t, body, string(proc.lastBody))
}

func TestWebhookAlternateHeaderAndCase(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewWebhookHandler(discardLogger(), nil, "secret", true, proc)

	body := `{"order_id":"#30219"}`
	req := httptest.NewRequest(http.MethodPost, "/api/nowpayments/webhook", strings.NewReader(body))
	req.Header.Set("x-nowpayments-signature", strings.ToUpper(sign("secret", body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, proc.calls)
}

func TestWebhookTamperedBody(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewWebhookHandler(discardLogger(), nil, "secret", true, proc)

	signature := sign("secret", `{"order_id":"#30219","payment_status":"waiting"}`)
	rec := postWebhook(h, `{"order_id":"#30219","payment_status":"finished"}`, signature)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, proc.calls)
}

func TestWebhookMissingSignature(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewWebhookHandler(discardLogger(), nil, "secret", true, proc)

	rec := postWebhook(h, `{"order_id":"#30219"}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, proc.calls)
}

func TestWebhookEmptyBody(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewWebhookHandler(discardLogger(), nil, "secret", true, proc)

	rec := postWebhook(h, "", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, proc.calls)
}

func TestWebhookDisabled(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewWebhookHandler(discardLogger(), nil, "", false, proc)

	body := `{"order_id":"#30219","payment_status":"finished"}`
	rec := postWebhook(h, body, "anything")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, proc.calls)
}

func TestWebhookProcessorErrorStillAcknowledged(t *testing.T) {
	proc := &recordingProcessor{err: assert.AnError}
	h := NewWebhookHandler(discardLogger(), nil, "secret", true, proc)

	body := `{"order_id":"#unknown"}`
	rec := postWebhook(h, body, sign("secret", body))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, proc.calls)
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	h := NewWebhookHandler(discardLogger(), nil, "secret", true, &recordingProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/api/nowpayments/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
