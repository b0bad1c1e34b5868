package payment

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"homeaura-subscription/internal/domain"
	"homeaura-subscription/internal/domain/model"
)

// providerResponse is the PhonePe body shared by pay, status, debit and the
// decoded callback envelope.
type providerResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantID            string `json:"merchantId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
		State                 string `json:"state"`
		ResponseCode          string `json:"responseCode"`
		PaymentInstrument     struct {
			Type string `json:"type"`
		} `json:"paymentInstrument"`
		InstrumentResponse struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

func (r providerResponse) outcome(raw []byte) model.PaymentOutcome {
	return model.PaymentOutcome{
		TransactionID: r.Data.MerchantTransactionID,
		Code:          outcomeCode(r.Code),
		Status:        r.Data.State,
		Message:       r.Message,
		Data: model.PaymentData{
			ProviderReferenceID: r.Data.TransactionID,
			State:               r.Data.State,
			ResponseCode:        r.Data.ResponseCode,
			InstrumentType:      r.Data.PaymentInstrument.Type,
			AmountMinor:         r.Data.Amount,
			Raw:                 string(raw),
		},
	}
}

// flatCallback is the simplified push some integrations send.
type flatCallback struct {
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Code          string          `json:"code"`
	PaymentData   json.RawMessage `json:"paymentData"`
}

// statusCode derives a verdict from the flat form's status field when the
// code is absent ("succeeded", "failed", ...).
func statusCode(status string) (model.OutcomeCode, bool) {
	st, ok := model.ParsePaymentStatus(status)
	if !ok {
		return "", false
	}
	switch st {
	case model.PaymentStatusSucceeded:
		return model.OutcomeSuccess, true
	case model.PaymentStatusPending:
		return model.OutcomePending, true
	}
	return model.OutcomeDeclined, true
}

func outcomeCode(code string) model.OutcomeCode {
	switch model.OutcomeCode(strings.ToUpper(strings.TrimSpace(code))) {
	case model.OutcomeSuccess:
		return model.OutcomeSuccess
	case model.OutcomePending:
		return model.OutcomePending
	case model.OutcomeDeclined:
		return model.OutcomeDeclined
	}
	return model.OutcomeError
}

// parseCallback authenticates raw with signer and decodes either the
// {"response": base64} envelope or the flat form.
func parseCallback(s Signer, raw []byte, signature string) (model.PaymentOutcome, error) {
	if signature == "" || !s.Verify(signature, string(raw)) {
		return model.PaymentOutcome{}, domain.ErrInvalidSignature
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.PaymentOutcome{}, fmt.Errorf("decode callback: %w", err)
	}

	if enc, ok := fields["response"]; ok {
		var b64 string
		if err := json.Unmarshal(enc, &b64); err != nil {
			return model.PaymentOutcome{}, fmt.Errorf("decode envelope: %w", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return model.PaymentOutcome{}, fmt.Errorf("decode envelope: %w", err)
		}
		var resp providerResponse
		if err := json.Unmarshal(decoded, &resp); err != nil {
			return model.PaymentOutcome{}, fmt.Errorf("decode envelope: %w", err)
		}
		return resp.outcome(decoded), nil
	}

	var flat flatCallback
	if err := json.Unmarshal(raw, &flat); err != nil {
		return model.PaymentOutcome{}, fmt.Errorf("decode callback: %w", err)
	}
	code := outcomeCode(flat.Code)
	if flat.Code == "" {
		c, ok := statusCode(flat.Status)
		if !ok {
			return model.PaymentOutcome{}, errors.New("callback has neither code nor known status")
		}
		code = c
	}
	out := model.PaymentOutcome{
		TransactionID: flat.TransactionID,
		Code:          code,
		Status:        flat.Status,
		Data:          model.PaymentData{State: flat.Status, Raw: string(raw)},
	}
	if len(flat.PaymentData) > 0 {
		// Known fields are lifted; the full payload stays in Raw.
		var pd struct {
			TransactionID string `json:"transactionId"`
			ResponseCode  string `json:"responseCode"`
			Amount        int64  `json:"amount"`
		}
		if err := json.Unmarshal(flat.PaymentData, &pd); err == nil {
			out.Data.ProviderReferenceID = pd.TransactionID
			out.Data.ResponseCode = pd.ResponseCode
			out.Data.AmountMinor = pd.Amount
		}
	}
	return out, nil
}
