package override

import (
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/override/repository"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/override/service"
	"go.uber.org/fx"
)

var Module = fx.Module("override.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
