package main

import (
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/queueline/internal/authorization"
	"github.com/smallbiznis/queueline/internal/clock"
	"github.com/smallbiznis/queueline/internal/config"
	"github.com/smallbiznis/queueline/internal/identity"
	"github.com/smallbiznis/queueline/internal/lock"
	"github.com/smallbiznis/queueline/internal/migration"
	"github.com/smallbiznis/queueline/internal/observability"
	"github.com/smallbiznis/queueline/internal/queue"
	"github.com/smallbiznis/queueline/internal/ratelimit"
	"github.com/smallbiznis/queueline/internal/server"
	"github.com/smallbiznis/queueline/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		ratelimit.Module,

		// Domains
		identity.Module,
		authorization.Module,
		queue.Module,
		migration.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
