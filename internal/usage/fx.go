package usage

import (
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/repository"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
