package handler

import (
	"time"

	"custody-ledger/internal/adapter/http/dto"
	"custody-ledger/internal/adapter/http/middleware"
	"custody-ledger/internal/core/domain"
	"custody-ledger/pkg/apperror"
	"custody-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// callerID returns the authenticated user or writes AUTH_001.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	id := middleware.UserID(c)
	if id == uuid.Nil {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds and sanitises a request body. Binding failures are
// reported as VAL_005.
func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Validation(err.Error())
	}
	dto.SanitizeStruct(req)
	return nil
}

func idempotencyKey(c *gin.Context) (string, error) {
	key := c.GetHeader(middleware.HeaderIdempotencyKey)
	if !dto.ValidIdempotencyKey(key) {
		return "", apperror.Validation("Idempotency-Key must be at most 128 characters of letters, digits, '.', '_' or '-'")
	}
	return key, nil
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("Invalid " + name)
	}
	return id, nil
}

// parseAmount parses a validated decimal string and checks it against the
// asset's precision.
func parseAmount(asset domain.Asset, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.ErrInvalidAmount()
	}
	if err := domain.ValidateAmount(asset, amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func pageParams(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
