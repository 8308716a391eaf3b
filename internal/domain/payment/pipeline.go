// internal/domain/payment/pipeline.go
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/checkout"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/session"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
	"github.com/your-org/storefront/internal/pkg/metrics"
	"gorm.io/gorm"
)

// Stage is a state of the payment commit state machine
type Stage string

const (
	StageDraft      Stage = "DRAFT"
	StageCharging   Stage = "CHARGING"
	StageCommitting Stage = "COMMITTING"
	StageDone       Stage = "DONE"
	StageFailed     Stage = "FAILED"
)

const lockPrefix = "checkout:lock:"

// Locker serializes submissions for one cart owner
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// Payer is the signed-in shopper paying for the draft
type Payer struct {
	PrincipalID string
	Email       string
}

// Result is handed back once an order is committed
type Result struct {
	OrderID     uint   `json:"order_id"`
	OrderNumber string `json:"order_number,omitempty"`
	Stage       Stage  `json:"stage"`
	Replayed    bool   `json:"replayed"`
}

// Options configures a Pipeline
type Options struct {
	Currency      string
	ChargeTimeout time.Duration
	LockTTL       time.Duration
}

// Pipeline charges a draft order and turns it into a committed order.
// Every submission is keyed by the draft's charge key and recorded as a
// ChargeAttempt before the gateway is called, so a retry never charges twice.
type Pipeline struct {
	db      *gorm.DB
	carts   *cart.Service
	orders  *order.Service
	gateway Gateway
	locker  Locker
	metrics *metrics.Checkout
	logger  logrus.FieldLogger
	opts    Options
}

// NewPipeline creates a new payment commit pipeline
func NewPipeline(db *gorm.DB, carts *cart.Service, orders *order.Service, gateway Gateway, locker Locker, m *metrics.Checkout, logger logrus.FieldLogger, opts Options) *Pipeline {
	return &Pipeline{
		db:      db,
		carts:   carts,
		orders:  orders,
		gateway: gateway,
		locker:  locker,
		metrics: m,
		logger:  logger,
		opts:    opts,
	}
}

// Submit runs the state machine for the session's draft.
//
// On a decline the cart and the draft are kept and the draft gets a fresh
// charge key, so the shopper can retry with another card. An unknown gateway
// outcome or a failed commit after capture is flagged for reconciliation and
// never retried blindly. A captured but uncommitted charge from an earlier
// draft of the same owner is committed in place of a new charge. The draft is
// removed from state only on success.
func (p *Pipeline) Submit(ctx context.Context, state *session.State, payer Payer, paymentToken string) (*Result, error) {
	draft := state.Draft
	if draft == nil {
		return nil, p.reject(pkgerrors.New(pkgerrors.CodeValidation, "there is no order awaiting payment"))
	}
	if payer.PrincipalID == "" {
		return nil, p.reject(pkgerrors.New(pkgerrors.CodeUnauthorized, "payment requires a signed-in user"))
	}
	if draft.UserID != payer.PrincipalID {
		return nil, p.reject(pkgerrors.New(pkgerrors.CodeForbidden, "the pending order belongs to another user"))
	}
	ownerKey := state.OwnerKey
	if ownerKey == "" {
		return nil, p.reject(pkgerrors.New(pkgerrors.CodeValidation, "session has no cart"))
	}

	unlock, err := p.lock(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	log := p.logger.WithFields(logrus.Fields{
		"owner_key":  ownerKey,
		"user_id":    payer.PrincipalID,
		"charge_key": draft.ChargeKey,
	})

	attempt, err := p.orders.FindAttempt(ctx, draft.ChargeKey)
	if err != nil && !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	if attempt != nil {
		switch attempt.Status {
		case order.AttemptCommitted:
			log.WithField("order_id", attempt.OrderID).Info("Payment already committed, returning existing order")
			state.ClearDraft()
			p.metrics.IncOutcome(metrics.OutcomeReplayed)
			return &Result{OrderID: derefID(attempt.OrderID), Stage: StageDone, Replayed: true}, nil
		case order.AttemptCharged:
			log.Warn("Resuming commit of an already captured charge")
			return p.commit(context.WithoutCancel(ctx), state, attempt, log)
		case order.AttemptPending, order.AttemptIndeterminate:
			return nil, p.unresolved(ctx, attempt, log)
		case order.AttemptDeclined:
			draft.RotateChargeKey()
			state.MarkDirty()
			log = log.WithField("charge_key", draft.ChargeKey)
		}
	}

	// An earlier draft of this owner may have been charged without an order,
	// or may still have an unknown outcome. Neither may be charged around.
	open, err := p.orders.FindUnresolvedForOwner(ctx, ownerKey, draft.ChargeKey)
	if err != nil {
		return nil, err
	}
	if open != nil {
		log = log.WithField("open_charge_key", open.ChargeKey)
		if open.Status != order.AttemptCharged {
			return nil, p.unresolved(ctx, open, log)
		}
		log.Warn("Committing an earlier captured charge instead of charging again")
		result, err := p.commit(context.WithoutCancel(ctx), state, open, log)
		if err != nil {
			return nil, err
		}
		result.Replayed = true
		return result, nil
	}

	if paymentToken == "" {
		return nil, p.reject(pkgerrors.New(pkgerrors.CodeValidation, "payment token is required"))
	}

	attempt, err = p.prepare(ctx, ownerKey, draft)
	if err != nil {
		return nil, err
	}
	log.WithField("amount_minor", attempt.AmountMinor).Info("Charging draft order")

	// Bookkeeping after the gateway call must survive the client going away.
	bookkeeping := context.WithoutCancel(ctx)
	if err := p.charge(ctx, bookkeeping, state, draft, attempt, payer, paymentToken, log); err != nil {
		return nil, err
	}

	return p.commit(bookkeeping, state, attempt, log)
}

// CommitCaptured writes the order for a charge that was captured but never
// committed, for example after an operator confirmed the capture. The
// shopper's session is not needed; the attempt carries the order data.
func (p *Pipeline) CommitCaptured(ctx context.Context, chargeKey string) (*Result, error) {
	attempt, err := p.orders.FindAttempt(ctx, chargeKey)
	if err != nil {
		return nil, err
	}

	unlock, err := p.lock(ctx, attempt.OwnerKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock; a submission may have committed it meanwhile.
	attempt, err = p.orders.FindAttempt(ctx, chargeKey)
	if err != nil {
		return nil, err
	}
	log := p.logger.WithFields(logrus.Fields{
		"owner_key":  attempt.OwnerKey,
		"user_id":    attempt.UserID,
		"charge_key": attempt.ChargeKey,
	})

	switch attempt.Status {
	case order.AttemptCommitted:
		return &Result{OrderID: derefID(attempt.OrderID), Stage: StageDone, Replayed: true}, nil
	case order.AttemptCharged:
		return p.commit(context.WithoutCancel(ctx), nil, attempt, log)
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "charge attempt %s has no captured payment to commit", chargeKey)
	}
}

// lock takes the per-owner checkout lock and returns its release
func (p *Pipeline) lock(ctx context.Context, ownerKey string) (func(), error) {
	release, acquired, err := p.locker.Acquire(ctx, lockPrefix+ownerKey, p.opts.LockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to lock checkout")
	}
	if !acquired {
		return nil, p.reject(pkgerrors.New(pkgerrors.CodeConflict, "a payment for this cart is already in progress"))
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			p.logger.WithError(err).WithField("owner_key", ownerKey).Warn("Failed to release checkout lock")
		}
	}, nil
}

// prepare checks the cart still matches the draft and records a pending attempt
func (p *Pipeline) prepare(ctx context.Context, ownerKey string, draft *checkout.Draft) (*order.ChargeAttempt, error) {
	lines, err := p.carts.ListByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, p.reject(pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
	}

	total := cart.Total(lines)
	if !total.Equal(draft.Total) {
		return nil, p.reject(pkgerrors.New(pkgerrors.CodeValidation, "cart changed since checkout; please review your order").
			WithDetails(map[string]string{
				"order_total": draft.Total.StringFixed(2),
				"cart_total":  total.StringFixed(2),
			}))
	}

	snapshot := make([]order.LineSnapshot, 0, len(lines))
	for _, line := range lines {
		name := ""
		if line.Product != nil {
			name = line.Product.Name
		}
		snapshot = append(snapshot, order.LineSnapshot{
			ProductID:   line.ProductID,
			ProductName: name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	attempt := &order.ChargeAttempt{
		ChargeKey:   draft.ChargeKey,
		OwnerKey:    ownerKey,
		UserID:      draft.UserID,
		AmountMinor: draft.AmountMinor(),
		Currency:    p.opts.Currency,
		Status:      order.AttemptPending,
		Lines:       snapshot,
		Shipping: order.Address{
			FirstName:  draft.Shipping.FirstName,
			LastName:   draft.Shipping.LastName,
			Address:    draft.Shipping.Address,
			City:       draft.Shipping.City,
			Province:   draft.Shipping.Province,
			PostalCode: draft.Shipping.PostalCode,
			Phone:      draft.Shipping.Phone,
		},
		OrderDate: draft.OrderDate,
	}
	if err := p.orders.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// charge moves the attempt from pending to charged, declined or indeterminate
func (p *Pipeline) charge(ctx, bookkeeping context.Context, state *session.State, draft *checkout.Draft, attempt *order.ChargeAttempt, payer Payer, paymentToken string, log logrus.FieldLogger) error {
	chargeCtx, cancel := context.WithTimeout(ctx, p.opts.ChargeTimeout)
	defer cancel()

	customer, err := p.gateway.CreateCustomer(chargeCtx, CustomerRequest{
		Email:          payer.Email,
		PaymentToken:   paymentToken,
		ReferenceID:    payer.PrincipalID,
		IdempotencyKey: attempt.ChargeKey,
	})
	if err != nil {
		// No charge was requested yet, so nothing can have been captured.
		return p.decline(bookkeeping, state, draft, attempt, err, log)
	}

	start := time.Now()
	result, err := p.gateway.Charge(chargeCtx, ChargeRequest{
		Customer:       customer,
		AmountMinor:    attempt.AmountMinor,
		Currency:       attempt.Currency,
		Description:    "Order for " + payer.Email,
		ReferenceID:    attempt.ChargeKey,
		IdempotencyKey: attempt.ChargeKey,
	})
	p.metrics.ObserveCharge(time.Since(start))

	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodePaymentDeclined) && chargeCtx.Err() == nil {
			return p.decline(bookkeeping, state, draft, attempt, err, log)
		}
		return p.indeterminate(bookkeeping, attempt, err, log)
	}

	if err := p.orders.UpdateAttempt(bookkeeping, attempt, map[string]any{
		"status":            order.AttemptCharged,
		"payment_reference": result.PaymentID,
	}); err != nil {
		// Money moved but the record says pending: a retry will refuse to charge.
		return p.indeterminate(bookkeeping, attempt, err, log)
	}
	attempt.Status = order.AttemptCharged
	attempt.PaymentReference = result.PaymentID

	log.WithField("payment_reference", result.PaymentID).Info("Charge captured")
	return nil
}

func (p *Pipeline) decline(ctx context.Context, state *session.State, draft *checkout.Draft, attempt *order.ChargeAttempt, cause error, log logrus.FieldLogger) error {
	if err := p.orders.UpdateAttempt(ctx, attempt, map[string]any{
		"status":     order.AttemptDeclined,
		"last_error": cause.Error(),
	}); err != nil {
		log.WithError(err).Error("Failed to record declined charge")
	}

	draft.RotateChargeKey()
	state.MarkDirty()
	p.metrics.IncOutcome(metrics.OutcomeDeclined)
	log.WithError(cause).Warn("Charge declined")

	message := "payment was declined"
	if typed := pkgerrors.As(cause); typed != nil && typed.Code() == pkgerrors.CodePaymentDeclined {
		message = typed.Message()
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentDeclined, cause, message).
		WithDetails(map[string]any{"stage": StageFailed})
}

// unresolved refuses to charge while attempt has no known outcome. An attempt
// found unflagged (its submission died before recording the gateway result)
// is flagged and escalated here.
func (p *Pipeline) unresolved(ctx context.Context, attempt *order.ChargeAttempt, log logrus.FieldLogger) error {
	if !attempt.NeedsReconciliation {
		if err := p.orders.UpdateAttempt(context.WithoutCancel(ctx), attempt, map[string]any{
			"needs_reconciliation": true,
		}); err != nil {
			log.WithError(err).Error("Failed to flag stranded charge attempt")
		} else {
			p.metrics.IncEscalation()
			log.WithFields(logrus.Fields{
				"reconciliation":  true,
				"stranded_key":    attempt.ChargeKey,
				"stranded_status": attempt.Status,
			}).Error("Charge attempt has no recorded outcome, flagged for manual reconciliation")
		}
	}

	p.metrics.IncOutcome(metrics.OutcomeIndeterminate)
	return pkgerrors.New(pkgerrors.CodePaymentIndeterminate,
		"a previous payment attempt for this cart is still being confirmed").
		WithDetails(map[string]any{"stage": StageFailed, "charge_key": attempt.ChargeKey})
}

func (p *Pipeline) indeterminate(ctx context.Context, attempt *order.ChargeAttempt, cause error, log logrus.FieldLogger) error {
	if err := p.orders.UpdateAttempt(ctx, attempt, map[string]any{
		"status":               order.AttemptIndeterminate,
		"needs_reconciliation": true,
		"last_error":           cause.Error(),
	}); err != nil {
		log.WithError(err).Error("Failed to flag indeterminate charge")
	}

	p.metrics.IncOutcome(metrics.OutcomeIndeterminate)
	p.metrics.IncEscalation()
	log.WithError(cause).WithFields(logrus.Fields{
		"reconciliation": true,
		"timeout":        errors.Is(cause, context.DeadlineExceeded),
	}).Error("Charge outcome unknown, flagged for manual reconciliation")

	return pkgerrors.Wrap(pkgerrors.CodePaymentIndeterminate, cause, "payment status could not be confirmed").
		WithDetails(map[string]any{"stage": StageFailed})
}

// commit writes the order, its details and the attempt in one transaction and
// then takes the charged units out of the cart. Order gets its id before
// details reference it, and the cart changes only after the details are
// written. Units added to the cart after the snapshot stay there.
// state may be nil when no shopper session is involved.
func (p *Pipeline) commit(ctx context.Context, state *session.State, attempt *order.ChargeAttempt, log logrus.FieldLogger) (*Result, error) {
	o := &order.Order{
		UserID:          attempt.UserID,
		Shipping:        attempt.Shipping,
		OrderDate:       attempt.OrderDate,
		Total:           order.SnapshotTotal(attempt.Lines),
		Currency:        attempt.Currency,
		ChargeKey:       attempt.ChargeKey,
		ChargeReference: attempt.PaymentReference,
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := p.orders.WithTx(tx)
		if err := orders.CreateOrder(ctx, o); err != nil {
			return err
		}

		details := make([]order.OrderDetail, 0, len(attempt.Lines))
		charged := make(map[uint]int, len(attempt.Lines))
		for _, line := range attempt.Lines {
			details = append(details, order.OrderDetail{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
			})
			charged[line.ProductID] += line.Quantity
		}
		if err := orders.CreateDetails(ctx, o, details); err != nil {
			return err
		}

		if err := orders.UpdateAttempt(ctx, attempt, map[string]any{
			"status":               order.AttemptCommitted,
			"order_id":             o.ID,
			"needs_reconciliation": false,
			"last_error":           "",
		}); err != nil {
			return err
		}

		return p.carts.WithTx(tx).Deduct(ctx, attempt.OwnerKey, charged)
	})
	if err != nil {
		if flagErr := p.orders.UpdateAttempt(ctx, attempt, map[string]any{
			"status":               order.AttemptCharged,
			"needs_reconciliation": true,
			"last_error":           err.Error(),
		}); flagErr != nil {
			log.WithError(flagErr).Error("Failed to flag charge for reconciliation")
		}

		p.metrics.IncOutcome(metrics.OutcomeCommitFailed)
		p.metrics.IncEscalation()
		log.WithError(err).WithFields(logrus.Fields{
			"reconciliation":    true,
			"payment_reference": attempt.PaymentReference,
		}).Error("Customer charged but order could not be saved")

		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "payment captured but the order could not be saved").
			WithDetails(map[string]any{"stage": StageFailed})
	}

	if state != nil {
		state.ClearDraft()
	}
	p.metrics.IncOutcome(metrics.OutcomeSucceeded)
	log.WithFields(logrus.Fields{
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
	}).Info("Order committed")

	return &Result{OrderID: o.ID, OrderNumber: o.OrderNumber, Stage: StageDone}, nil
}

func (p *Pipeline) reject(err *pkgerrors.Error) *pkgerrors.Error {
	p.metrics.IncOutcome(metrics.OutcomeRejected)
	return err
}

func derefID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
