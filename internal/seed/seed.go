package seed

import (
	"context"
	"errors"

	"github.com/smallbiznis/queueline/internal/config"
	identitydomain "github.com/smallbiznis/queueline/internal/identity/domain"
	"go.uber.org/zap"
)

const defaultAdminUsername = "admin"

// EnsureAdmin seeds the default administrator account for startup bootstrap.
func EnsureAdmin(ctx context.Context, users identitydomain.Service, cfg config.BootstrapConfig, log *zap.Logger) error {
	if users == nil {
		return errors.New("seed identity service is required")
	}

	user, created, err := users.EnsureAdmin(ctx, defaultAdminUsername, cfg.AdminPassword)
	if err != nil {
		return err
	}

	if log != nil {
		log.Info("bootstrap admin ensured",
			zap.String("user_id", user.ID.String()),
			zap.Bool("created", created),
		)
	}
	return nil
}
