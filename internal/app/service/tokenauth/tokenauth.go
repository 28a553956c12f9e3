// Package tokenauth binds a store correlation token to a local purchase.
package tokenauth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/tool"
	"github.com/fatflowers/reconciler/pkg/types"
)

var ErrTokenBelongsToOtherUser = errors.New("correlation token belongs to another user")

type Authenticator interface {
	Authenticate(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, token string) error
}

type Service struct{}

func NewService() *Service { return &Service{} }

// Authenticate accepts the purchase's own id. Any other token must name a
// purchase of the same user that has not completed, which is the case when a
// store keeps echoing the token of a superseded purchase attempt.
func (s *Service) Authenticate(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, token string) error {
	if purchase == nil {
		return ErrTokenBelongsToOtherUser
	}
	if token == purchase.ID {
		return nil
	}
	if !tool.IsUUID(token) {
		return fmt.Errorf("%w: token is not a purchase id", ErrTokenBelongsToOtherUser)
	}

	var owner models.Purchase
	err := tx.WithContext(ctx).
		Select("id", "user_id", "status").
		Where("id = ?", token).
		Take(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: no purchase for token", ErrTokenBelongsToOtherUser)
	}
	if err != nil {
		return fmt.Errorf("failed to load token owner: %w", err)
	}
	if owner.UserID != purchase.UserID || owner.Status == types.PurchaseStatusCompleted {
		return ErrTokenBelongsToOtherUser
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(func(s *Service) Authenticator { return s }),
)
