package project

import (
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("project",
	fx.Provide(repository.Provide),
)
