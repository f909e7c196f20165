package identity

import (
	"github.com/smallbiznis/queueline/internal/identity/repository"
	"github.com/smallbiznis/queueline/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
