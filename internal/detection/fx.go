package detection

import (
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/repository"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("detection.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewSQLInjectionSource),
	fx.Provide(service.NewBruteForceSource),
	fx.Provide(service.NewKeyCreationSource),
	fx.Provide(service.NewSpikeDetector),
	fx.Provide(service.NewErrorRateDetector),
	fx.Provide(service.NewPatternDetector),
)
