package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/challenge-api/internal/dto"
	"github.com/noah-isme/challenge-api/internal/models"
	"github.com/noah-isme/challenge-api/internal/observability"
	"github.com/noah-isme/challenge-api/internal/repository"
)

const recentTransactionLimit = 50

// CreditService spends credits and reports wallet state.
type CreditService interface {
	Spend(ctx context.Context, userID uint, req dto.SpendRequest) (dto.SpendResponse, error)
	Summary(ctx context.Context, userID uint) (dto.CreditSummary, error)
	Rewards(ctx context.Context, userID uint) ([]dto.PayoutResponse, error)
}

type creditService struct {
	rewards      repository.RewardRepository
	applyCredits bool
	sanitizer    *bluemonday.Policy
	tracer       trace.Tracer
	logger       zerolog.Logger
	now          func() time.Time
}

// NewCreditService constructs the credit service. When applyCredits is false spending is refused.
func NewCreditService(rewards repository.RewardRepository, applyCredits bool, logger zerolog.Logger) CreditService {
	return &creditService{
		rewards:      rewards,
		applyCredits: applyCredits,
		sanitizer:    bluemonday.StrictPolicy(),
		tracer:       otel.Tracer("github.com/noah-isme/challenge-api/internal/service/credit"),
		logger:       logger.With().Str("component", "credit_service").Logger(),
		now:          time.Now,
	}
}

// Spend debits amount from the wallet. The balance check and both writes share one transaction
// with the wallet row locked, so concurrent spends cannot overdraw.
func (s *creditService) Spend(ctx context.Context, userID uint, req dto.SpendRequest) (dto.SpendResponse, error) {
	ctx, span := s.tracer.Start(ctx, "credit.spend")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", int64(userID)), attribute.Int64("credit.amount", req.Amount))

	if userID == 0 {
		return dto.SpendResponse{}, ErrLoginRequired
	}
	if req.Amount <= 0 {
		return dto.SpendResponse{}, ErrInvalidAmount
	}
	if !s.applyCredits {
		observability.CreditSpends().WithLabelValues("disabled").Inc()
		return dto.SpendResponse{}, ErrCreditsDisabled
	}

	reason := s.sanitizer.Sanitize(strings.TrimSpace(req.Reason))
	if reason == "" {
		reason = models.SpendReasonDefault
	}

	var remaining int64
	err := s.rewards.Transaction(ctx, func(tx repository.RewardRepository) error {
		balance, err := tx.LockBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if balance < req.Amount {
			return withDetail(ErrInsufficientBalance, "balance %d, requested %d", balance, req.Amount)
		}
		entry := ledgerEntry{UserID: userID, Amount: -req.Amount, Reason: reason, RefID: req.RefID}
		if err := postLedger(ctx, tx, entry, s.now()); err != nil {
			return err
		}
		remaining = balance - req.Amount
		return nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrInsufficientBalance) {
			outcome = "insufficient"
		}
		observability.CreditSpends().WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return dto.SpendResponse{}, err
	}

	observability.CreditSpends().WithLabelValues("ok").Inc()
	s.logger.Info().Uint("user_id", userID).Int64("amount", req.Amount).Str("reason", reason).Int64("balance", remaining).Msg("credits spent")
	return dto.SpendResponse{Balance: remaining}, nil
}

func (s *creditService) Summary(ctx context.Context, userID uint) (dto.CreditSummary, error) {
	if userID == 0 {
		return dto.CreditSummary{}, ErrLoginRequired
	}
	balance, err := s.rewards.GetBalance(ctx, userID)
	if err != nil {
		return dto.CreditSummary{}, err
	}
	entries, err := s.rewards.ListTransactions(ctx, userID, recentTransactionLimit)
	if err != nil {
		return dto.CreditSummary{}, err
	}

	summary := dto.CreditSummary{Balance: balance, Transactions: make([]dto.CreditTransactionResponse, 0, len(entries))}
	for _, entry := range entries {
		summary.Transactions = append(summary.Transactions, dto.NewCreditTransactionResponse(entry))
	}
	return summary, nil
}

func (s *creditService) Rewards(ctx context.Context, userID uint) ([]dto.PayoutResponse, error) {
	if userID == 0 {
		return nil, ErrLoginRequired
	}
	payouts, err := s.rewards.ListPayoutsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PayoutResponse, 0, len(payouts))
	for _, p := range payouts {
		items = append(items, dto.NewPayoutResponse(p))
	}
	return items, nil
}
