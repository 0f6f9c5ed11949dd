package jobs

import (
	"context"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	obsmetrics "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("jobs",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideMetrics),
	fx.Provide(New),
	fx.Invoke(StartRunner),
)

func ProvideMetrics(cfg config.Config) *obsmetrics.JobMetrics {
	return obsmetrics.JobsWithConfig(obsmetrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}

func StartRunner(lc fx.Lifecycle, runner *Runner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go runner.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
