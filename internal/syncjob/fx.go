package syncjob

import (
	"github.com/soundline/vocalis/internal/syncjob/repository"
	"github.com/soundline/vocalis/internal/syncjob/service"
	"go.uber.org/fx"
)

var Module = fx.Module("syncjob.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
