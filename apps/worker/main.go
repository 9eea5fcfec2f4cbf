package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/soundline/vocalis/internal/audit"
	"github.com/soundline/vocalis/internal/clock"
	"github.com/soundline/vocalis/internal/config"
	"github.com/soundline/vocalis/internal/distlock"
	"github.com/soundline/vocalis/internal/enforcement"
	"github.com/soundline/vocalis/internal/logger"
	"github.com/soundline/vocalis/internal/migration"
	"github.com/soundline/vocalis/internal/observability"
	voice "github.com/soundline/vocalis/internal/providers/voice"
	"github.com/soundline/vocalis/internal/reconcile"
	"github.com/soundline/vocalis/internal/resource"
	"github.com/soundline/vocalis/internal/syncjob"
	"github.com/soundline/vocalis/internal/usage"
	"github.com/soundline/vocalis/internal/worker"
	"github.com/soundline/vocalis/pkg/db"
	"go.uber.org/fx"
)

// Worker-only deployment: drains the sync queue, rolls usage periods, and
// sweeps for drift. No HTTP surface.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		voice.Module,
		distlock.Module,

		// Domain services the worker drives
		audit.Module,
		resource.Module,
		usage.Module,
		syncjob.Module,
		enforcement.Module,
		reconcile.Module,

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
