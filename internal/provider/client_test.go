package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/models"
)

func testCharge() *models.Charge {
	return &models.Charge{
		ID:          "c1",
		MerchantID:  "m1",
		AmountCents: 1000,
		Currency:    "BRL",
		Method:      models.MethodPix,
		ExternalRef: "order-1",
	}
}

func TestPixIssuer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/pix/charges", r.URL.Path)
		assert.Equal(t, "Bearer pk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "c1", r.Header.Get("Idempotency-Key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 1000, req["amount"])

		json.NewEncoder(w).Encode(map[string]string{
			"transaction_id": "tx-9",
			"qr_code":        "00020126pix",
			"expires_at":     "2026-09-01T12:00:00Z",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "pk_test", 5*time.Second, zap.NewNop())
	issuer, ok := client.IssuerFor(models.MethodPix)
	require.True(t, ok)

	inst, err := issuer.Issue(context.Background(), testCharge())

	require.NoError(t, err)
	assert.Equal(t, "tx-9", inst.ProviderTxID)
	assert.Equal(t, "00020126pix", inst.CopyPaste)
	assert.Equal(t, models.MethodPix, inst.Method)
	assert.False(t, inst.ExpiresAt.IsZero())
}

func TestBoletoIssuer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/boletos", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"transaction_id": "tx-10",
			"url":            "https://provider.test/boletos/tx-10.pdf",
			"barcode":        "23790000010000",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "pk_test", 5*time.Second, zap.NewNop())
	issuer, ok := client.IssuerFor(models.MethodBoleto)
	require.True(t, ok)

	charge := testCharge()
	charge.Method = models.MethodBoleto
	inst, err := issuer.Issue(context.Background(), charge)

	require.NoError(t, err)
	assert.Equal(t, "https://provider.test/boletos/tx-10.pdf", inst.BoletoURL)
	assert.Equal(t, "23790000010000", inst.Barcode)
}

func TestIssuerForCardHasNoIssuer(t *testing.T) {
	client := NewClient("http://unused", "pk", time.Second, zap.NewNop())

	_, ok := client.IssuerFor(models.MethodCard)
	assert.False(t, ok)
}

func TestIssueErrorOnProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "pk", time.Second, zap.NewNop())
	issuer, _ := client.IssuerFor(models.MethodPix)

	_, err := issuer.Issue(context.Background(), testCharge())
	assert.Error(t, err)
}
