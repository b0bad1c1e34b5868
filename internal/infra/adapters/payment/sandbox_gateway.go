package payment

import (
	"context"
	"sync"

	"homeaura-subscription/internal/domain/model"
	"homeaura-subscription/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SandboxGateway)(nil)

// SandboxGateway never contacts the provider. Initiate redirects straight to
// the success page and every status check or debit succeeds. It is wired only
// when payment.environment is sandbox.
type SandboxGateway struct {
	publicURL string
	signer    Signer

	mu        sync.Mutex
	initiated map[string]int64 // txn -> amount, dropped once the status is read
}

func NewSandboxGateway(publicURL string, signer Signer) *SandboxGateway {
	return &SandboxGateway{
		publicURL: publicURL,
		signer:    signer,
		initiated: make(map[string]int64),
	}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	g.mu.Lock()
	g.initiated[req.TransactionID] = req.Amount
	g.mu.Unlock()
	return adapter.InitiateResult{
		RedirectURL:  successURL(g.publicURL, req.TransactionID, req.PropertyID),
		ResponseCode: codeInitiated,
	}, nil
}

func (g *SandboxGateway) CheckStatus(ctx context.Context, txnID string) (model.PaymentOutcome, error) {
	g.mu.Lock()
	amount := g.initiated[txnID]
	delete(g.initiated, txnID)
	g.mu.Unlock()
	return sandboxSuccess(txnID, amount), nil
}

func (g *SandboxGateway) Charge(ctx context.Context, req adapter.ChargeRequest) (model.PaymentOutcome, error) {
	return sandboxSuccess(req.TransactionID, req.Amount), nil
}

func (g *SandboxGateway) ParseCallback(raw []byte, signature string) (model.PaymentOutcome, error) {
	return parseCallback(g.signer, raw, signature)
}

func sandboxSuccess(txnID string, amount int64) model.PaymentOutcome {
	return model.PaymentOutcome{
		TransactionID: txnID,
		Code:          model.OutcomeSuccess,
		Status:        "COMPLETED",
		Message:       "sandbox",
		Data: model.PaymentData{
			ProviderReferenceID: "SBX-" + txnID,
			State:               "COMPLETED",
			ResponseCode:        "SUCCESS",
			AmountMinor:         amount * 100,
		},
	}
}
