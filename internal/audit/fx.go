package audit

import (
	"github.com/soundline/vocalis/internal/audit/repository"
	"github.com/soundline/vocalis/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
