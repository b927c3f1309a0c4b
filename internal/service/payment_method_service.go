package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PaymentMethodServiceImpl implements ports.PaymentMethodService.
type PaymentMethodServiceImpl struct {
	repo       ports.PaymentMethodRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewPaymentMethodService creates a new PaymentMethodServiceImpl.
func NewPaymentMethodService(repo ports.PaymentMethodRepository, transactor ports.DBTransactor, log zerolog.Logger) *PaymentMethodServiceImpl {
	return &PaymentMethodServiceImpl{repo: repo, transactor: transactor, log: log}
}

// Link registers a new withdrawal destination awaiting review.
func (s *PaymentMethodServiceImpl) Link(ctx context.Context, req ports.LinkPaymentMethodRequest) (*domain.PaymentMethod, error) {
	if !req.Type.Valid() {
		return nil, apperror.Validation("type must be BANK_ACCOUNT or CRYPTO_WALLET")
	}
	if !req.Asset.Valid() {
		return nil, apperror.ErrInvalidAsset(string(req.Asset))
	}
	if !req.Type.Accepts(req.Asset) {
		return nil, apperror.ErrAssetMismatch()
	}
	label, details := strings.TrimSpace(req.Label), strings.TrimSpace(req.Details)
	if label == "" || details == "" {
		return nil, apperror.Validation("label and details are required")
	}

	now := time.Now().UTC()
	pm := &domain.PaymentMethod{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Type:      req.Type,
		Label:     label,
		Asset:     req.Asset,
		Details:   details,
		Network:   req.Network,
		Status:    domain.PaymentMethodStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, pm); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment method: %w", err))
	}

	s.log.Info().
		Str("payment_method_id", pm.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("type", string(pm.Type)).
		Msg("payment method linked")
	return pm, nil
}

// Update edits a linked method that has not been approved yet.
func (s *PaymentMethodServiceImpl) Update(ctx context.Context, req ports.UpdatePaymentMethodRequest) (*domain.PaymentMethod, error) {
	label, details := strings.TrimSpace(req.Label), strings.TrimSpace(req.Details)
	if label == "" || details == "" {
		return nil, apperror.Validation("label and details are required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	pm, err := s.lockOwned(ctx, dbTx, req.UserID, req.ID)
	if err != nil {
		return nil, err
	}
	if err := pm.CheckEditable(); err != nil {
		return nil, err
	}

	pm.Label = label
	pm.Details = details
	pm.Network = req.Network
	pm.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateDetails(ctx, dbTx, pm); err != nil {
		if errors.Is(err, ports.ErrStatusChanged) {
			return nil, apperror.ErrImmutablePaymentMethod()
		}
		return nil, apperror.InternalError(err)
	}
	if err := dbTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("payment_method_id", pm.ID.String()).Msg("payment method updated")
	return pm, nil
}

// Unlink soft-deletes a method in any review status.
func (s *PaymentMethodServiceImpl) Unlink(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*domain.PaymentMethod, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	pm, err := s.lockOwned(ctx, dbTx, userID, id)
	if err != nil {
		return nil, err
	}
	if !pm.IsLinked() {
		return nil, apperror.ErrPaymentMethodNotFound()
	}

	now := time.Now().UTC()
	if err := s.repo.Unlink(ctx, dbTx, pm.ID, now); err != nil {
		if errors.Is(err, ports.ErrStatusChanged) {
			return nil, apperror.ErrPaymentMethodNotFound()
		}
		return nil, apperror.InternalError(err)
	}
	if err := dbTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	pm.UnlinkedAt = &now
	pm.UpdatedAt = now
	s.log.Info().Str("payment_method_id", pm.ID.String()).Msg("payment method unlinked")
	return pm, nil
}

// Review moves a pending method to APPROVED or REJECTED.
func (s *PaymentMethodServiceImpl) Review(ctx context.Context, id uuid.UUID, target domain.PaymentMethodStatus) (*domain.PaymentMethod, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	pm, err := s.repo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment method: %w", err))
	}
	if pm == nil || !pm.IsLinked() {
		return nil, apperror.ErrPaymentMethodNotFound()
	}
	if err := pm.Status.CheckTransition(target); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, dbTx, pm.ID, pm.Status, target); err != nil {
		if errors.Is(err, ports.ErrStatusChanged) {
			return nil, apperror.ErrIllegalTransitionMsg("Payment method status changed concurrently")
		}
		return nil, apperror.InternalError(err)
	}
	if err := dbTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	pm.Status = target
	pm.UpdatedAt = time.Now().UTC()
	s.log.Info().
		Str("payment_method_id", pm.ID.String()).
		Str("status", string(target)).
		Msg("payment method reviewed")
	return pm, nil
}

// List returns the user's linked methods.
func (s *PaymentMethodServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]domain.PaymentMethod, error) {
	methods, err := s.repo.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if methods == nil {
		methods = []domain.PaymentMethod{}
	}
	return methods, nil
}

// lockOwned locks the user's method. Another user's method reads as missing.
func (s *PaymentMethodServiceImpl) lockOwned(ctx context.Context, dbTx pgx.Tx, userID, id uuid.UUID) (*domain.PaymentMethod, error) {
	pm, err := s.repo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment method: %w", err))
	}
	if pm == nil || pm.UserID != userID {
		return nil, apperror.ErrPaymentMethodNotFound()
	}
	return pm, nil
}
