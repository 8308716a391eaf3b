// internal/domain/owner/resolver.go
package owner

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/session"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
	"gorm.io/gorm"
)

// Resolver decides which owner key a session's cart lives under and moves an
// anonymous cart to the shopper's account when they sign in.
type Resolver struct {
	db     *gorm.DB
	carts  *cart.Service
	logger logrus.FieldLogger
	newKey func() string
}

// NewResolver creates a new owner-key resolver
func NewResolver(db *gorm.DB, carts *cart.Service, logger logrus.FieldLogger) *Resolver {
	return &Resolver{
		db:     db,
		carts:  carts,
		logger: logger,
		newKey: uuid.NewString,
	}
}

// Resolve returns the session's owner key, minting one on first use. A signed-in
// shopper without a key gets their principal id; everyone else gets an
// anonymous random token.
func (r *Resolver) Resolve(state *session.State, principalID string) string {
	if state.OwnerKey != "" {
		return state.OwnerKey
	}

	key := strings.TrimSpace(principalID)
	if key == "" {
		key = r.newKey()
	}
	state.SetOwnerKey(key)
	return key
}

// MergeOnAuthentication rebinds the session's cart to principalID. Lines owned
// by the session key are reassigned in one transaction and the session key is
// replaced. Calling it again with the same principal does nothing.
func (r *Resolver) MergeOnAuthentication(ctx context.Context, state *session.State, principalID string) error {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "principal id is required to merge a cart")
	}

	sessionKey := state.OwnerKey
	if sessionKey == principalID {
		return nil
	}

	if sessionKey != "" {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return r.carts.WithTx(tx).MergeOwner(ctx, sessionKey, principalID)
		})
		if err != nil {
			return err
		}

		r.logger.WithFields(logrus.Fields{
			"from_owner": sessionKey,
			"to_owner":   principalID,
		}).Info("Merged anonymous cart into account")
	}

	state.SetOwnerKey(principalID)
	return nil
}
