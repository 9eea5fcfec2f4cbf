package usage

import (
	"github.com/soundline/vocalis/internal/usage/repository"
	"github.com/soundline/vocalis/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
