package service

import (
	"context"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	txRepo      ports.TransactionRepository
	balanceRepo ports.BalanceRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	txRepo ports.TransactionRepository,
	balanceRepo ports.BalanceRepository,
) ports.ReportingService {
	return &reportingService{
		txRepo:      txRepo,
		balanceRepo: balanceRepo,
	}
}

// ListTransactions returns a paginated list of the user's transactions.
func (s *reportingService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, apperror.Validation("from must not be after to")
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	return txns, total, nil
}

// GetStats returns aggregated transaction stats for the user.
func (s *reportingService) GetStats(ctx context.Context, userID uuid.UUID, asset *domain.Asset) (*ports.TransactionStats, error) {
	if asset != nil && !asset.Valid() {
		return nil, apperror.ErrInvalidAsset(string(*asset))
	}
	stats, err := s.txRepo.GetStats(ctx, userID, asset)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

// ReconcileBalance checks that a balance equals the sum of its approved
// entries. A balance that was never created reconciles against zero.
func (s *reportingService) ReconcileBalance(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*ports.Reconciliation, error) {
	if !asset.Valid() {
		return nil, apperror.ErrInvalidAsset(string(asset))
	}

	b, err := s.balanceRepo.Get(ctx, userID, asset)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	rec := &ports.Reconciliation{
		UserID:        userID,
		Asset:         asset,
		BalanceAmount: decimal.Zero,
		LedgerSum:     decimal.Zero,
	}
	if b != nil {
		sum, count, err := s.txRepo.SumApproved(ctx, b.ID)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		rec.BalanceAmount = b.Amount
		rec.LedgerSum = sum
		rec.ApprovedEntries = count
	}
	rec.Difference = rec.BalanceAmount.Sub(rec.LedgerSum)
	rec.Consistent = rec.Difference.IsZero()
	return rec, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
