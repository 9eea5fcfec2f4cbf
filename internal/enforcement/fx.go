package enforcement

import (
	"github.com/soundline/vocalis/internal/enforcement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("enforcement.service",
	fx.Provide(service.NewService),
)
