package quota

import (
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/quota/repository"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
