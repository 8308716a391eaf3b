// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
	"gorm.io/gorm"
)

// Service reads and writes orders and charge attempts
type Service struct {
	db *gorm.DB
}

// NewService creates a new order service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// WithTx returns a copy of the service bound to tx
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx}
}

// FindAttempt loads the charge attempt for key. A missing attempt is NotFound.
func (s *Service) FindAttempt(ctx context.Context, key string) (*ChargeAttempt, error) {
	var attempt ChargeAttempt
	result := s.db.WithContext(ctx).Where("charge_key = ?", key).First(&attempt)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "charge attempt %s not found", key)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "failed to load charge attempt")
	}
	return &attempt, nil
}

// CreateAttempt inserts a new charge attempt
func (s *Service) CreateAttempt(ctx context.Context, attempt *ChargeAttempt) error {
	if err := s.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to record charge attempt")
	}
	return nil
}

// UpdateAttempt applies updates to attempt and to its row
func (s *Service) UpdateAttempt(ctx context.Context, attempt *ChargeAttempt, updates map[string]any) error {
	result := s.db.WithContext(ctx).Model(attempt).Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "failed to update charge attempt")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodePersistence, "charge attempt %s vanished", attempt.ChargeKey)
	}
	return nil
}

// CreateOrder inserts the order row alone and stamps its order number
func (s *Service) CreateOrder(ctx context.Context, o *Order) error {
	if err := s.db.WithContext(ctx).Omit("Details").Create(o).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to insert order")
	}

	o.OrderNumber = o.GenerateOrderNumber()
	if err := s.db.WithContext(ctx).Model(o).Update("order_number", o.OrderNumber).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to stamp order number")
	}
	return nil
}

// CreateDetails inserts the details of an already persisted order
func (s *Service) CreateDetails(ctx context.Context, o *Order, details []OrderDetail) error {
	if o.ID == 0 {
		return pkgerrors.New(pkgerrors.CodePersistence, "order must be persisted before its details")
	}
	if len(details) == 0 {
		return pkgerrors.New(pkgerrors.CodePersistence, "order has no details")
	}
	for i := range details {
		details[i].OrderID = o.ID
	}
	if err := s.db.WithContext(ctx).Create(&details).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to insert order details")
	}
	o.Details = details
	return nil
}

// GetForPrincipal returns an order with its details if it belongs to principalID.
// Orders of other users are reported as NotFound.
func (s *Service) GetForPrincipal(ctx context.Context, orderID uint, principalID string) (*Order, error) {
	var o Order
	result := s.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ? AND user_id = ?", orderID, principalID).
		First(&o)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to load order: %w", result.Error)
	}
	return &o, nil
}

// PendingReconciliation lists charge attempts that need a human to look at them
func (s *Service) PendingReconciliation(ctx context.Context) ([]ChargeAttempt, error) {
	attempts := []ChargeAttempt{}
	if err := s.db.WithContext(ctx).
		Where("needs_reconciliation = ?", true).
		Order("updated_at ASC").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list charge attempts: %w", err)
	}
	return attempts, nil
}

// FindUnresolvedForOwner returns an attempt of ownerKey, other than exceptKey,
// whose money may have moved without an order: pending, indeterminate or
// charged. It returns nil when there is none.
func (s *Service) FindUnresolvedForOwner(ctx context.Context, ownerKey, exceptKey string) (*ChargeAttempt, error) {
	var attempts []ChargeAttempt
	if err := s.db.WithContext(ctx).
		Where("owner_key = ? AND charge_key <> ?", ownerKey, exceptKey).
		Where("status IN ?", []AttemptStatus{AttemptPending, AttemptIndeterminate, AttemptCharged}).
		Order("id ASC").
		Limit(1).
		Find(&attempts).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "failed to look up open charge attempts")
	}
	if len(attempts) == 0 {
		return nil, nil
	}
	return &attempts[0], nil
}

// ResolveAttempt records the outcome of a manual reconciliation. When the
// gateway shows no capture the attempt becomes declined; when it shows a
// capture the attempt becomes charged and is ready to be committed.
// Pending attempts are accepted even when unflagged, since a pending row
// outlives its submission only when the gateway outcome was never recorded.
func (s *Service) ResolveAttempt(ctx context.Context, key string, captured bool, paymentReference string) (*ChargeAttempt, error) {
	attempt, err := s.FindAttempt(ctx, key)
	if err != nil {
		return nil, err
	}
	if !attempt.NeedsReconciliation && attempt.Status != AttemptPending {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "charge attempt %s is not awaiting reconciliation", key)
	}

	updates := map[string]any{"needs_reconciliation": false}
	switch {
	case attempt.Status == AttemptCharged:
		// Commit failed after capture; it stays charged until committed.
	case captured:
		if paymentReference == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required for a captured charge")
		}
		updates["status"] = AttemptCharged
		updates["payment_reference"] = paymentReference
	default:
		updates["status"] = AttemptDeclined
	}

	if err := s.UpdateAttempt(ctx, attempt, updates); err != nil {
		return nil, err
	}
	return attempt, nil
}
