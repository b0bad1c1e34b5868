// File: internal/infra/adapters/payment/phonepe_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"homeaura-subscription/internal/config"
	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PhonePeGateway)(nil)

const (
	payPath         = "/pg/v1/pay"
	statusPathFmt   = "/pg/v1/status/%s/%s"
	codeInitiated   = "PAYMENT_INITIATED"
	maxResponseSize = 1 << 20
)

// PhonePeGateway implements adapter.PaymentGateway against the PhonePe PG v1 REST API.
type PhonePeGateway struct {
	merchantID  string
	baseURL     string
	debitPath   string
	publicURL   string
	callbackURL string
	signer      Signer
	client      *http.Client
}

func NewPhonePeGateway(cfg config.PaymentConfig) (*PhonePeGateway, error) {
	pp := cfg.PhonePe
	if pp.MerchantID == "" || pp.SaltKey == "" {
		return nil, errors.New("phonepe merchant id and salt key are required")
	}
	if _, err := url.ParseRequestURI(pp.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid phonepe base url: %w", err)
	}
	return &PhonePeGateway{
		merchantID:  pp.MerchantID,
		baseURL:     strings.TrimRight(pp.BaseURL, "/"),
		debitPath:   pp.RecurringDebitPath,
		publicURL:   cfg.PublicURL,
		callbackURL: cfg.CallbackURL + "/api/v1/payment/callback",
		signer:      NewSigner(pp.SaltKey, pp.SaltIndex),
		client:      &http.Client{Timeout: pp.Timeout},
	}, nil
}

func (g *PhonePeGateway) Name() string { return "phonepe" }

type payRequest struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl,omitempty"`
	RedirectMode          string            `json:"redirectMode,omitempty"`
	CallbackURL           string            `json:"callbackUrl,omitempty"`
	MobileNumber          string            `json:"mobileNumber,omitempty"`
	PaymentInstrument     map[string]string `json:"paymentInstrument"`
	Metadata              map[string]string `json:"metadata,omitempty"`
}

// Initiate opens a hosted pay page. Only a PAYMENT_INITIATED reply counts as success.
func (g *PhonePeGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	payload := payRequest{
		MerchantID:            g.merchantID,
		MerchantTransactionID: req.TransactionID,
		MerchantUserID:        req.UserID,
		Amount:                req.Amount * 100,
		RedirectURL:           successURL(g.publicURL, req.TransactionID, req.PropertyID),
		RedirectMode:          "POST",
		CallbackURL:           g.callbackURL,
		MobileNumber:          req.MobileNumber,
		PaymentInstrument:     map[string]string{"type": "PAY_PAGE"},
		Metadata: map[string]string{
			"planId":     req.PlanID,
			"propertyId": req.PropertyID,
			"userId":     req.UserID,
		},
	}
	resp, err := g.postSigned(ctx, payPath, payload)
	if err != nil {
		return adapter.InitiateResult{}, fmt.Errorf("%w: %v", domain.ErrPaymentInitiation, err)
	}
	if resp.Code != codeInitiated || resp.Data.InstrumentResponse.RedirectInfo.URL == "" {
		return adapter.InitiateResult{ResponseCode: resp.Code},
			fmt.Errorf("%w: provider replied %s: %s", domain.ErrPaymentInitiation, resp.Code, resp.Message)
	}
	return adapter.InitiateResult{
		RedirectURL:  resp.Data.InstrumentResponse.RedirectInfo.URL,
		ResponseCode: resp.Code,
	}, nil
}

// CheckStatus performs the signed status GET.
func (g *PhonePeGateway) CheckStatus(ctx context.Context, txnID string) (model.PaymentOutcome, error) {
	path := fmt.Sprintf(statusPathFmt, g.merchantID, url.PathEscape(txnID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return model.PaymentOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", g.signer.Sign(path))
	req.Header.Set("X-MERCHANT-ID", g.merchantID)

	resp, raw, err := g.do(req)
	if err != nil {
		return model.PaymentOutcome{}, err
	}
	out := resp.outcome(raw)
	out.TransactionID = txnID
	return out, nil
}

// Charge executes a recurring debit for a renewal.
func (g *PhonePeGateway) Charge(ctx context.Context, req adapter.ChargeRequest) (model.PaymentOutcome, error) {
	payload := payRequest{
		MerchantID:            g.merchantID,
		MerchantTransactionID: req.TransactionID,
		MerchantUserID:        req.UserID,
		Amount:                req.Amount * 100,
		MobileNumber:          req.MobileNumber,
		PaymentInstrument:     map[string]string{"type": "UPI_AUTOPAY"},
		Metadata:              map[string]string{"planId": req.PlanID, "userId": req.UserID},
	}
	resp, err := g.postSigned(ctx, g.debitPath, payload)
	if err != nil {
		return model.PaymentOutcome{}, err
	}
	out := resp.outcome(nil)
	out.TransactionID = req.TransactionID
	return out, nil
}

func (g *PhonePeGateway) ParseCallback(raw []byte, signature string) (model.PaymentOutcome, error) {
	return parseCallback(g.signer, raw, signature)
}

func (g *PhonePeGateway) postSigned(ctx context.Context, path string, payload any) (providerResponse, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return providerResponse{}, err
	}
	encoded := base64.StdEncoding.EncodeToString(b)
	body, _ := json.Marshal(map[string]string{"request": encoded})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return providerResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", g.signer.Sign(encoded, path))

	resp, _, err := g.do(req)
	return resp, err
}

func (g *PhonePeGateway) do(req *http.Request) (providerResponse, []byte, error) {
	res, err := g.client.Do(req)
	if err != nil {
		return providerResponse{}, nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return providerResponse{}, nil, err
	}
	var out providerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return providerResponse{}, raw, fmt.Errorf("phonepe http %d: %w", res.StatusCode, err)
	}
	return out, raw, nil
}

// successURL is where the browser lands after the pay page.
func successURL(publicURL, txnID, propertyID string) string {
	q := url.Values{}
	q.Set("transaction_id", txnID)
	q.Set("propertyId", propertyID)
	return publicURL + "/subscription/success?" + q.Encode()
}
