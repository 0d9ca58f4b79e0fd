package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRecord is a completed credit purchase. AccountName is empty when the
// account row is missing.
type PurchaseRecord struct {
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Credits     int64           `json:"credits"`
	PackageName string          `json:"package_name"`
}

type EarningsRecord struct {
	PartnerID   string          `json:"partner_id"`
	PartnerName string          `json:"partner_name,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Amount      decimal.Decimal `json:"amount"`
}

type RedemptionRecord struct {
	AccountID   string    `json:"account_id"`
	CreatedAt   time.Time `json:"created_at"`
	CreditsUsed int64     `json:"credits_used"`
}

type PayoutRequest struct {
	PartnerID string          `json:"partner_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
