package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/repository"
)

// ledgerEntry is one signed balance movement.
type ledgerEntry struct {
	UserID   uint
	Amount   int64
	Reason   string
	RefID    *uint
	Metadata map[string]interface{}
}

// postLedger appends the entry and applies the same signed amount to the wallet. Callers pass the
// transactional repository so both writes commit with the payout or spend that caused them.
func postLedger(ctx context.Context, tx repository.RewardRepository, entry ledgerEntry, at time.Time) error {
	record := models.CreditTransaction{
		UserID:    entry.UserID,
		Amount:    entry.Amount,
		Reason:    entry.Reason,
		RefID:     entry.RefID,
		CreatedAt: at,
	}
	if len(entry.Metadata) > 0 {
		record.Metadata = datatypes.JSONMap(entry.Metadata)
	}
	if err := tx.AppendTransaction(ctx, &record); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	if err := tx.AddToWallet(ctx, entry.UserID, entry.Amount, at); err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return nil
}
