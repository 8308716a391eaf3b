package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
	"github.com/your-org/storefront/internal/pkg/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.NewDB(t, &Order{}, &OrderDetail{}, &ChargeAttempt{}))
}

func sampleOrder(user, key string) *Order {
	return &Order{
		UserID: user,
		Shipping: Address{
			FirstName: "Ada", LastName: "Lovelace", Address: "12 Analytical Row",
			City: "Barrie", Province: "ON", PostalCode: "L4M 3X9", Phone: "705-555-0100",
		},
		OrderDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Total:           decimal.RequireFromString("30.00"),
		Currency:        "USD",
		ChargeKey:       key,
		ChargeReference: "pay_123",
	}
}

func TestCreateOrderAndDetails(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	o := sampleOrder("ada@example.com", "k1")
	require.NoError(t, svc.CreateOrder(ctx, o))
	require.NotZero(t, o.ID)
	assert.Equal(t, o.GenerateOrderNumber(), o.OrderNumber)
	assert.Contains(t, o.OrderNumber, "ORD-20260301-")

	details := []OrderDetail{{ProductID: 7, ProductName: "ProductA", Quantity: 3, UnitPrice: decimal.NewFromInt(10)}}
	require.NoError(t, svc.CreateDetails(ctx, o, details))

	loaded, err := svc.GetForPrincipal(ctx, o.ID, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, loaded.Details, 1)
	assert.Equal(t, o.ID, loaded.Details[0].OrderID)
	assert.True(t, loaded.DetailsTotal().Equal(loaded.Total))
}

func TestCreateDetailsRequiresPersistedOrder(t *testing.T) {
	svc := newService(t)
	err := svc.CreateDetails(context.Background(), &Order{}, []OrderDetail{{ProductID: 1, Quantity: 1}})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodePersistence))
}

func TestGetForPrincipalHidesOtherUsersOrders(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	o := sampleOrder("ada@example.com", "k1")
	require.NoError(t, svc.CreateOrder(ctx, o))

	_, err := svc.GetForPrincipal(ctx, o.ID, "mallory@example.com")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = svc.GetForPrincipal(ctx, o.ID+1, "ada@example.com")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestChargeKeyIsUnique(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateOrder(ctx, sampleOrder("a", "same")))
	err := svc.CreateOrder(ctx, sampleOrder("a", "same"))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodePersistence))
}

func TestAttemptLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.FindAttempt(ctx, "missing")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	attempt := &ChargeAttempt{
		ChargeKey:   "k1",
		OwnerKey:    "ada@example.com",
		UserID:      "ada@example.com",
		AmountMinor: 3000,
		Currency:    "USD",
		Status:      AttemptPending,
		Lines: []LineSnapshot{
			{ProductID: 7, ProductName: "ProductA", Quantity: 3, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}
	require.NoError(t, svc.CreateAttempt(ctx, attempt))

	require.NoError(t, svc.UpdateAttempt(ctx, attempt, map[string]any{
		"status":               AttemptIndeterminate,
		"needs_reconciliation": true,
		"last_error":           "gateway timeout",
	}))

	loaded, err := svc.FindAttempt(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, AttemptIndeterminate, loaded.Status)
	require.Len(t, loaded.Lines, 1)
	assert.True(t, decimal.NewFromInt(30).Equal(SnapshotTotal(loaded.Lines)))

	pending, err := svc.PendingReconciliation(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "k1", pending[0].ChargeKey)
}

func TestFindUnresolvedForOwner(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for key, status := range map[string]AttemptStatus{
		"declined":  AttemptDeclined,
		"committed": AttemptCommitted,
		"current":   AttemptPending,
	} {
		require.NoError(t, svc.CreateAttempt(ctx, &ChargeAttempt{
			ChargeKey: key, OwnerKey: "ada", UserID: "ada", Currency: "USD", Status: status,
		}))
	}

	open, err := svc.FindUnresolvedForOwner(ctx, "ada", "current")
	require.NoError(t, err)
	assert.Nil(t, open, "the caller's own attempt and settled ones do not count")

	require.NoError(t, svc.CreateAttempt(ctx, &ChargeAttempt{
		ChargeKey: "lost", OwnerKey: "ada", UserID: "ada", Currency: "USD", Status: AttemptIndeterminate,
	}))
	open, err = svc.FindUnresolvedForOwner(ctx, "ada", "current")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "lost", open.ChargeKey)

	open, err = svc.FindUnresolvedForOwner(ctx, "bob", "")
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestResolveAttempt(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	create := func(key string, status AttemptStatus, flagged bool) {
		t.Helper()
		a := &ChargeAttempt{ChargeKey: key, OwnerKey: "ada", UserID: "ada", Currency: "USD", Status: status}
		require.NoError(t, svc.CreateAttempt(ctx, a))
		if flagged {
			require.NoError(t, svc.UpdateAttempt(ctx, a, map[string]any{"needs_reconciliation": true}))
		}
	}
	create("not-captured", AttemptIndeterminate, true)
	create("captured", AttemptIndeterminate, true)
	create("commit-failed", AttemptCharged, true)
	create("settled", AttemptDeclined, false)

	a, err := svc.ResolveAttempt(ctx, "not-captured", false, "")
	require.NoError(t, err)
	assert.Equal(t, AttemptDeclined, a.Status)
	assert.False(t, a.NeedsReconciliation)

	_, err = svc.ResolveAttempt(ctx, "captured", true, "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	a, err = svc.ResolveAttempt(ctx, "captured", true, "pay_789")
	require.NoError(t, err)
	assert.Equal(t, AttemptCharged, a.Status)
	assert.Equal(t, "pay_789", a.PaymentReference)

	a, err = svc.ResolveAttempt(ctx, "commit-failed", false, "")
	require.NoError(t, err)
	assert.Equal(t, AttemptCharged, a.Status, "captured money is never written off as declined")

	_, err = svc.ResolveAttempt(ctx, "settled", false, "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	_, err = svc.ResolveAttempt(ctx, "missing", false, "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	pending, err := svc.PendingReconciliation(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResolveAttemptAcceptsUnflaggedPending(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, key := range []string{"stranded-a", "stranded-b"} {
		require.NoError(t, svc.CreateAttempt(ctx, &ChargeAttempt{
			ChargeKey: key, OwnerKey: "ada", UserID: "ada", Currency: "USD", Status: AttemptPending,
		}))
	}

	a, err := svc.ResolveAttempt(ctx, "stranded-a", false, "")
	require.NoError(t, err)
	assert.Equal(t, AttemptDeclined, a.Status)

	a, err = svc.ResolveAttempt(ctx, "stranded-b", true, "pay_321")
	require.NoError(t, err)
	assert.Equal(t, AttemptCharged, a.Status)
	assert.Equal(t, "pay_321", a.PaymentReference)
	assert.False(t, a.NeedsReconciliation)
}
