package main

import (
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/jobs"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/logger"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/migration"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/override"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/projectlock"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/providers/email"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/providers/slack"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/quota"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		projectlock.Module,

		// Abuse control services
		project.Module,
		usage.Module,
		audit.Module,
		email.Module,
		slack.Module,
		notification.Module,
		suspension.Module,
		quota.Module,
		detection.Module,
		override.Module,

		// Background sweeps; jobs.Module starts the runner.
		jobs.Module,
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
