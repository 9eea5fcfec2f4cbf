package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/soundline/vocalis/internal/clock"
	"github.com/soundline/vocalis/internal/config"
	"github.com/soundline/vocalis/internal/distlock"
	"github.com/soundline/vocalis/internal/logger"
	"github.com/soundline/vocalis/internal/migration"
	"github.com/soundline/vocalis/internal/observability"
	voice "github.com/soundline/vocalis/internal/providers/voice"
	"github.com/soundline/vocalis/internal/server"
	"github.com/soundline/vocalis/internal/worker"
	"github.com/soundline/vocalis/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Outbound providers
		voice.Module,
		distlock.Module,

		// HTTP surface plus every domain module it wires
		server.Module,

		// In the monolith the worker runs in-process alongside the server.
		worker.Module,
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
