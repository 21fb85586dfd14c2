package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/glowpress/keyline/internal/clock"
	"github.com/glowpress/keyline/internal/config"
	"github.com/glowpress/keyline/internal/migration"
	"github.com/glowpress/keyline/internal/observability"
	"github.com/glowpress/keyline/internal/server"
	"github.com/glowpress/keyline/internal/vault"
	"github.com/glowpress/keyline/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		vault.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
