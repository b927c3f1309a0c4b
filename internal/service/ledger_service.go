package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"custody-ledger/config"
	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// inFlightTTL bounds how long a crashed request can hold its idempotency key.
const inFlightTTL = 30 * time.Second

// LedgerDeps groups the collaborators of LedgerServiceImpl. IdempCache and
// Lock are optional.
type LedgerDeps struct {
	Balances     ports.BalanceRepository
	Transactions ports.TransactionRepository
	Idempotency  ports.IdempotencyRepository
	IdempCache   ports.IdempotencyCache
	Lock         ports.RequestLock
	Transactor   ports.DBTransactor
	References   ports.ReferenceGenerator
	Hasher       ports.AuditHasher
}

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	balances   ports.BalanceRepository
	txns       ports.TransactionRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	lock       ports.RequestLock
	transactor ports.DBTransactor
	poster     *poster
	idempTTL   time.Duration
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(deps LedgerDeps, cfg config.LedgerConfig, log zerolog.Logger) *LedgerServiceImpl {
	attempts := cfg.ReferenceAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &LedgerServiceImpl{
		balances:   deps.Balances,
		txns:       deps.Transactions,
		idempRepo:  deps.Idempotency,
		idempCache: deps.IdempCache,
		lock:       deps.Lock,
		transactor: deps.Transactor,
		poster: &poster{
			balances: deps.Balances,
			txns:     deps.Transactions,
			refs:     deps.References,
			hasher:   deps.Hasher,
			attempts: attempts,
		},
		idempTTL: cfg.IdempotencyTTL,
		log:      log,
	}
}

// Credit adds a pre-authorized amount to the user's balance.
func (s *LedgerServiceImpl) Credit(ctx context.Context, req ports.CreditRequest) (*domain.Transaction, error) {
	if err := validateAssetAmount(req.Asset, req.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateCreditKind(req.Kind, req.Asset); err != nil {
		return nil, err
	}

	key := scopedKey(req.UserID, domain.IdempotencyScopeCredit, req.IdempotencyKey)
	fp := requestFingerprint(string(req.Asset), string(req.Kind), req.Amount.String())
	txn, err := runIdempotent(ctx, s, key, fp, func(dbTx pgx.Tx) (*domain.Transaction, uuid.UUID, error) {
		legs := []domain.Leg{{Asset: req.Asset, Delta: req.Amount, Kind: req.Kind}}
		posted, err := s.poster.post(ctx, dbTx, req.UserID, legs, postingMeta{Description: req.Description})
		if err != nil {
			return nil, uuid.Nil, err
		}
		return posted[0], posted[0].ID, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("asset", string(req.Asset)).
		Str("amount", req.Amount.String()).
		Msg("credit applied")
	return txn, nil
}

// Debit removes a pre-authorized amount from the user's balance.
func (s *LedgerServiceImpl) Debit(ctx context.Context, req ports.DebitRequest) (*domain.Transaction, error) {
	if err := validateAssetAmount(req.Asset, req.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateDebitKind(req.Kind, req.Asset); err != nil {
		return nil, err
	}

	key := scopedKey(req.UserID, domain.IdempotencyScopeDebit, req.IdempotencyKey)
	fp := requestFingerprint(string(req.Asset), string(req.Kind), req.Amount.String())
	txn, err := runIdempotent(ctx, s, key, fp, func(dbTx pgx.Tx) (*domain.Transaction, uuid.UUID, error) {
		legs := []domain.Leg{{Asset: req.Asset, Delta: req.Amount.Neg(), Kind: req.Kind}}
		posted, err := s.poster.post(ctx, dbTx, req.UserID, legs, postingMeta{Description: req.Description})
		if err != nil {
			return nil, uuid.Nil, err
		}
		return posted[0], posted[0].ID, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("asset", string(req.Asset)).
		Str("amount", req.Amount.String()).
		Msg("debit applied")
	return txn, nil
}

// Transfer moves amount between two of the user's balances as one unit.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	if !req.FromAsset.Valid() {
		return nil, apperror.ErrInvalidAsset(string(req.FromAsset))
	}
	if !req.ToAsset.Valid() {
		return nil, apperror.ErrInvalidAsset(string(req.ToAsset))
	}
	if req.FromAsset == req.ToAsset {
		return nil, apperror.ErrAssetMismatch()
	}
	if err := domain.ValidateAmount(req.FromAsset, req.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(req.ToAsset, req.Amount); err != nil {
		return nil, err
	}

	key := scopedKey(req.UserID, domain.IdempotencyScopeTransfer, req.IdempotencyKey)
	fp := requestFingerprint(string(req.FromAsset), string(req.ToAsset), req.Amount.String())
	result, err := runIdempotent(ctx, s, key, fp, func(dbTx pgx.Tx) (*ports.TransferResult, uuid.UUID, error) {
		out, in := domain.TransferLegs(req.FromAsset, req.ToAsset, req.Amount)
		posted, err := s.poster.post(ctx, dbTx, req.UserID, []domain.Leg{out, in}, postingMeta{Description: req.Description})
		if err != nil {
			return nil, uuid.Nil, err
		}
		return &ports.TransferResult{From: posted[0], To: posted[1]}, posted[0].ID, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("from_tx_id", result.From.ID.String()).
		Str("to_tx_id", result.To.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("from_asset", string(req.FromAsset)).
		Str("to_asset", string(req.ToAsset)).
		Str("amount", req.Amount.String()).
		Msg("transfer applied")
	return result, nil
}

// RecordPendingTransaction appends a PENDING deposit or withdrawal. The
// balance amount is untouched until the transaction is approved.
func (s *LedgerServiceImpl) RecordPendingTransaction(ctx context.Context, req ports.PendingRequest) (*domain.Transaction, error) {
	if err := validateAssetAmount(req.Asset, req.Amount); err != nil {
		return nil, err
	}
	signed, err := domain.PendingAmount(req.Kind, req.Asset, req.Amount)
	if err != nil {
		return nil, err
	}

	key := scopedKey(req.UserID, domain.PendingIdempotencyScope(req.Kind), req.IdempotencyKey)
	destination := ""
	if req.Destination != nil {
		destination = *req.Destination
	}
	fp := requestFingerprint(string(req.Asset), string(req.Kind), req.Amount.String(), destination)
	txn, err := runIdempotent(ctx, s, key, fp, func(dbTx pgx.Tx) (*domain.Transaction, uuid.UUID, error) {
		b, err := s.balances.GetOrCreate(ctx, dbTx, req.UserID, req.Asset)
		if err != nil {
			return nil, uuid.Nil, apperror.InternalError(fmt.Errorf("ensure balance: %w", err))
		}

		if signed.IsNegative() && !b.Covers(req.Amount) {
			return nil, uuid.Nil, apperror.ErrInsufficientBalance(b.Amount.String(), req.Amount.String())
		}

		if req.Kind == domain.KindCryptoDeposit && req.Destination != nil && *req.Destination != "" {
			set, err := s.balances.SetExternalAddressIfEmpty(ctx, dbTx, b.ID, *req.Destination)
			if err != nil {
				return nil, uuid.Nil, apperror.InternalError(fmt.Errorf("set external address: %w", err))
			}
			if set {
				s.log.Debug().Str("balance_id", b.ID.String()).Msg("external address recorded")
			}
		}

		t := &domain.Transaction{
			ID:                uuid.New(),
			UserID:            req.UserID,
			BalanceID:         b.ID,
			Asset:             req.Asset,
			Kind:              req.Kind,
			Amount:            signed,
			Status:            domain.TransactionStatusPending,
			Description:       req.Description,
			Destination:       req.Destination,
			Network:           req.Network,
			ExternalReference: req.ExternalReference,
			CreatedAt:         time.Now().UTC(),
		}
		if err := s.poster.insert(ctx, dbTx, t); err != nil {
			return nil, uuid.Nil, err
		}
		return t, t.ID, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("kind", string(req.Kind)).
		Str("amount", signed.String()).
		Msg("pending transaction recorded")
	return txn, nil
}

// ApproveTransaction finalises a pending transaction and applies its
// amount to the balance. If the balance cannot absorb a withdrawal the
// transaction stays PENDING.
func (s *LedgerServiceImpl) ApproveTransaction(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*domain.Transaction, error) {
	return s.finalise(ctx, id, domain.TransactionStatusApproved, actorID)
}

// RejectTransaction finalises a pending transaction without touching the balance.
func (s *LedgerServiceImpl) RejectTransaction(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*domain.Transaction, error) {
	return s.finalise(ctx, id, domain.TransactionStatusRejected, actorID)
}

func (s *LedgerServiceImpl) finalise(ctx context.Context, id uuid.UUID, target domain.TransactionStatus, actorID uuid.UUID) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	t, err := s.txns.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if t == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	if err := t.Status.CheckTransition(target); err != nil {
		return nil, err
	}

	from := t.Status
	if target == domain.TransactionStatusApproved {
		b, err := s.balances.GetByID(ctx, t.BalanceID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("read balance: %w", err))
		}
		if b == nil {
			return nil, apperror.ErrBalanceNotFound()
		}
		if err := s.poster.apply(ctx, dbTx, b, t); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	t.Status = target
	t.ProcessedAt = &now
	if err := s.txns.UpdateStatus(ctx, dbTx, t, from); err != nil {
		if errors.Is(err, ports.ErrStatusChanged) {
			return nil, apperror.ErrIllegalTransitionMsg("Transaction status changed concurrently")
		}
		return nil, apperror.InternalError(fmt.Errorf("update transaction status: %w", err))
	}

	if err := dbTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", t.ID.String()).
		Str("actor_id", actorID.String()).
		Str("status", string(target)).
		Msg("transaction finalised")
	return t, nil
}

// GetBalance returns the user's balance for asset. An asset the user never
// touched reads as an unsaved zero balance.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error) {
	if !asset.Valid() {
		return nil, apperror.ErrInvalidAsset(string(asset))
	}
	b, err := s.balances.Get(ctx, userID, asset)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if b == nil {
		return domain.EmptyBalance(userID, asset), nil
	}
	return b, nil
}

// ListBalances returns every balance the user holds.
func (s *LedgerServiceImpl) ListBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	balances, err := s.balances.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if balances == nil {
		balances = []domain.Balance{}
	}
	return balances, nil
}

// GetTransaction returns one of the user's transactions. Another user's
// transaction reads as not found.
func (s *LedgerServiceImpl) GetTransaction(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*domain.Transaction, error) {
	t, err := s.txns.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if t == nil || t.UserID != userID {
		return nil, apperror.ErrTransactionNotFound()
	}
	return t, nil
}

// GetTransactionByReference looks a transaction up by its reference id.
func (s *LedgerServiceImpl) GetTransactionByReference(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	t, err := s.txns.GetByReference(ctx, referenceID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if t == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	return t, nil
}

func validateAssetAmount(asset domain.Asset, amount decimal.Decimal) error {
	if !asset.Valid() {
		return apperror.ErrInvalidAsset(string(asset))
	}
	return domain.ValidateAmount(asset, amount)
}

// scopedKey namespaces a client idempotency key. An empty client key means
// the request is not idempotent.
func scopedKey(userID uuid.UUID, scope, clientKey string) string {
	if clientKey == "" {
		return ""
	}
	return domain.BuildIdempotencyKey(userID, scope, clientKey)
}

// runIdempotent executes run in a unit of work. When key is set the result
// is replayed from Redis or the idempotency log if it was stored before by a
// request with the same fingerprint, and stored alongside the mutation
// otherwise. A stored result from a different request yields LED_003.
func runIdempotent[T any](ctx context.Context, s *LedgerServiceImpl, key, fingerprint string, run func(dbTx pgx.Tx) (*T, uuid.UUID, error)) (*T, error) {
	if key != "" {
		// Layer 1: Redis idempotency check
		if s.idempCache != nil {
			cached, err := s.idempCache.Get(ctx, key)
			if err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
			}
			if cached != nil {
				var entry domain.IdempotencyLog
				if err := json.Unmarshal(cached, &entry); err != nil {
					s.log.Warn().Err(err).Str("key", key).Msg("unreadable idempotency cache entry, falling through to DB")
				} else {
					return replay[T](&entry, fingerprint)
				}
			}
		}

		// Layer 2: DB idempotency check
		idempLog, err := s.idempRepo.Get(ctx, key)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if idempLog != nil {
			return replay[T](idempLog, fingerprint)
		}

		if s.lock != nil {
			token, claimed, err := s.lock.Claim(ctx, key, inFlightTTL)
			if err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("request lock unavailable, relying on DB uniqueness")
			} else if !claimed {
				return nil, apperror.ErrDuplicateRequest()
			} else {
				defer func() {
					if err := s.lock.Release(context.WithoutCancel(ctx), key, token); err != nil {
						s.log.Warn().Err(err).Str("key", key).Msg("failed to release request lock")
					}
				}()
			}
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	result, txID, err := run(dbTx)
	if err != nil {
		return nil, err
	}

	var entry *domain.IdempotencyLog
	if key != "" {
		respJSON, err := json.Marshal(result)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		entry = &domain.IdempotencyLog{
			Key:           key,
			TransactionID: txID,
			RequestHash:   fingerprint,
			ResponseJSON:  respJSON,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.idempRepo.Create(ctx, dbTx, entry); err != nil {
			if errors.Is(err, ports.ErrIdempotencyKeyExists) {
				return nil, apperror.ErrDuplicateRequest()
			}
			return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
		}
	}

	if err := dbTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: cache in Redis (best-effort)
	if entry != nil && s.idempCache != nil {
		data, err := json.Marshal(entry)
		if err == nil {
			err = s.idempCache.Set(ctx, key, data, s.idempTTL)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
		}
	}
	return result, nil
}

func replay[T any](entry *domain.IdempotencyLog, fingerprint string) (*T, error) {
	if !entry.Matches(fingerprint) {
		return nil, apperror.ErrIdempotencyKeyReused()
	}
	var v T
	if err := json.Unmarshal(entry.ResponseJSON, &v); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached response: %w", err))
	}
	return &v, nil
}
