package queue

import (
	"github.com/smallbiznis/queueline/internal/cache"
	"github.com/smallbiznis/queueline/internal/queue/repository"
	"github.com/smallbiznis/queueline/internal/queue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("queue.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.NewProfileCache),
	fx.Provide(NewIdentityStore),
	fx.Provide(service.New),
)
