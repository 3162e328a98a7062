// Package provider is the HTTP adapter to the external banking provider.
// Instrument issuance is the only outbound surface this engine needs; status
// updates come back asynchronously through the inbound webhook pipeline.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/interfaces"
	"github.com/turbofy/charge-engine/internal/models"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
	issuers map[models.PaymentMethod]interfaces.InstrumentIssuer
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
	c.issuers = map[models.PaymentMethod]interfaces.InstrumentIssuer{
		models.MethodPix:    &pixIssuer{c},
		models.MethodBoleto: &boletoIssuer{c},
	}
	return c
}

// IssuerFor selects the issuer for a payment method. Card charges have no
// instrument; methods without an issuer report false.
func (c *Client) IssuerFor(method models.PaymentMethod) (interfaces.InstrumentIssuer, bool) {
	issuer, ok := c.issuers[method]
	return issuer, ok
}

type issueRequest struct {
	AmountCents int64             `json:"amount"`
	Currency    string            `json:"currency"`
	ExternalRef string            `json:"external_reference,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type issueResponse struct {
	TransactionID string `json:"transaction_id"`
	QRCode        string `json:"qr_code"`
	QRCodeBase64  string `json:"qr_code_base64"`
	URL           string `json:"url"`
	Barcode       string `json:"barcode"`
	ExpiresAt     string `json:"expires_at"`
}

func (c *Client) post(ctx context.Context, path string, charge *models.Charge) (*issueResponse, error) {
	body, err := json.Marshal(issueRequest{
		AmountCents: charge.AmountCents,
		Currency:    charge.Currency,
		ExternalRef: charge.ExternalRef,
		Metadata:    charge.Metadata,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", charge.ID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("Provider rejected issuance",
			zap.String("charge_id", charge.ID),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var out issueResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return &out, nil
}

func parseExpiry(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

type pixIssuer struct {
	c *Client
}

func (p *pixIssuer) Issue(ctx context.Context, charge *models.Charge) (*models.PaymentInstrument, error) {
	resp, err := p.c.post(ctx, "/v1/pix/charges", charge)
	if err != nil {
		return nil, err
	}
	return &models.PaymentInstrument{
		Method:       models.MethodPix,
		ProviderTxID: resp.TransactionID,
		CopyPaste:    resp.QRCode,
		QRCodeBase64: resp.QRCodeBase64,
		ExpiresAt:    parseExpiry(resp.ExpiresAt),
	}, nil
}

type boletoIssuer struct {
	c *Client
}

func (b *boletoIssuer) Issue(ctx context.Context, charge *models.Charge) (*models.PaymentInstrument, error) {
	resp, err := b.c.post(ctx, "/v1/boletos", charge)
	if err != nil {
		return nil, err
	}
	return &models.PaymentInstrument{
		Method:       models.MethodBoleto,
		ProviderTxID: resp.TransactionID,
		BoletoURL:    resp.URL,
		Barcode:      resp.Barcode,
		ExpiresAt:    parseExpiry(resp.ExpiresAt),
	}, nil
}
