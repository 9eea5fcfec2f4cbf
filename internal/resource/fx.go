package resource

import (
	"github.com/soundline/vocalis/internal/resource/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("resource",
	fx.Provide(repository.Provide),
)
