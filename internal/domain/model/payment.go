package model

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"   // intent recorded, awaiting provider outcome
	PaymentStatusSucceeded PaymentStatus = "SUCCESS"   // provider confirmed capture
	PaymentStatusFailed    PaymentStatus = "FAILED"    // declined, verification failed or charge error
	PaymentStatusCancelled PaymentStatus = "CANCELLED" // abandoned by user or admin
)

// ParsePaymentStatus accepts the canonical names and the lower-case aliases
// that older records and provider payloads carry.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING", "INITIATED":
		return PaymentStatusPending, true
	case "SUCCESS", "SUCCEEDED", "COMPLETED":
		return PaymentStatusSucceeded, true
	case "FAILED", "FAILURE", "DECLINED":
		return PaymentStatusFailed, true
	case "CANCELLED", "CANCELED":
		return PaymentStatusCancelled, true
	}
	return "", false
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// CanTransition encodes the monotonic intent lifecycle: only PENDING moves.
func CanTransition(from, to PaymentStatus) bool {
	return from == PaymentStatusPending && to.IsTerminal()
}

type PaymentKind string

const (
	PaymentKindPurchase PaymentKind = "purchase"
	PaymentKindRenewal  PaymentKind = "renewal"
)

// IntentMetadata carries the known descriptive fields of an intent.
// Extra is an opaque string kept for fields we do not model yet.
type IntentMetadata struct {
	PropertyID     string `json:"propertyId,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	PlanName       string `json:"planName,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
	ReturnURL      string `json:"returnUrl,omitempty"`
	Extra          string `json:"extra,omitempty"`
}

// PaymentData is the provider-reported detail of an outcome.
// Raw keeps the undecoded provider payload.
type PaymentData struct {
	ProviderReferenceID string `json:"providerReferenceId,omitempty"`
	State               string `json:"state,omitempty"`
	ResponseCode        string `json:"responseCode,omitempty"`
	InstrumentType      string `json:"instrumentType,omitempty"`
	AmountMinor         int64  `json:"amount,omitempty"`
	Raw                 string `json:"raw,omitempty"`
}

// PaymentIntent is one attempt to collect money for a plan.
// TransactionID is globally unique and assigned before the provider is contacted.
type PaymentIntent struct {
	TransactionID string
	UserID        string
	PlanID        string
	Kind          PaymentKind
	Provider      string
	Amount        int64 // whole rupees
	Currency      string
	Status        PaymentStatus
	Metadata      IntentMetadata
	PaymentData   PaymentData
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
}

// OutcomeCode is the provider's verdict for an intent.
type OutcomeCode string

const (
	OutcomeSuccess  OutcomeCode = "PAYMENT_SUCCESS"
	OutcomePending  OutcomeCode = "PAYMENT_PENDING"
	OutcomeError    OutcomeCode = "PAYMENT_ERROR"
	OutcomeDeclined OutcomeCode = "PAYMENT_DECLINED"
)

// PaymentOutcome is a provider verdict after signature checks.
type PaymentOutcome struct {
	TransactionID string
	Code          OutcomeCode
	Status        string
	Message       string
	Data          PaymentData
}

func (o PaymentOutcome) Succeeded() bool { return o.Code == OutcomeSuccess }
func (o PaymentOutcome) Pending() bool   { return o.Code == OutcomePending }

// TargetStatus maps the verdict onto the intent lifecycle.
func (o PaymentOutcome) TargetStatus() PaymentStatus {
	switch o.Code {
	case OutcomeSuccess:
		return PaymentStatusSucceeded
	case OutcomePending:
		return PaymentStatusPending
	}
	return PaymentStatusFailed
}
