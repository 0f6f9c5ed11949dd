package notification

import (
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification/repository"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.dispatcher",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.AsDispatcher),
	fx.Invoke(service.RegisterHooks),
)
