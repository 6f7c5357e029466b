package dto

import (
	"time"

	"github.com/noah-isme/challenge-api/internal/models"
)

// SpendRequest debits credits from the caller's wallet.
type SpendRequest struct {
	Amount int64  `json:"amount" validate:"gt=0"`
	Reason string `json:"reason" validate:"omitempty,max=64"`
	RefID  *uint  `json:"ref_id"`
}

// SpendResponse reports the balance after a successful spend.
type SpendResponse struct {
	Balance int64 `json:"balance"`
}

// CreditTransactionResponse serialises a ledger entry.
type CreditTransactionResponse struct {
	ID        uint                   `json:"id"`
	Amount    int64                  `json:"amount"`
	Reason    string                 `json:"reason"`
	RefID     *uint                  `json:"ref_id"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// CreditSummary is the wallet balance with the most recent ledger entries.
type CreditSummary struct {
	Balance      int64                       `json:"balance"`
	Transactions []CreditTransactionResponse `json:"transactions"`
}

// NewCreditTransactionResponse maps a ledger entry.
func NewCreditTransactionResponse(entry models.CreditTransaction) CreditTransactionResponse {
	return CreditTransactionResponse{
		ID:        entry.ID,
		Amount:    entry.Amount,
		Reason:    entry.Reason,
		RefID:     entry.RefID,
		Metadata:  entry.Metadata,
		CreatedAt: entry.CreatedAt,
	}
}
