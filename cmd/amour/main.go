package main

import (
	"github.com/amourlabs/amour/internal/clock"
	"github.com/amourlabs/amour/internal/config"
	"github.com/amourlabs/amour/internal/migration"
	"github.com/amourlabs/amour/internal/observability"
	"github.com/amourlabs/amour/internal/scheduler"
	"github.com/amourlabs/amour/internal/server"
	"github.com/amourlabs/amour/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		migration.Module,
		server.Module,
		scheduler.Module,
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
