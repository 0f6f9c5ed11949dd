package suspension

import (
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/repository"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/service"
	"go.uber.org/fx"
)

var Module = fx.Module("suspension.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
