package voiceevents

import (
	"github.com/soundline/vocalis/internal/voiceevents/service"
	"go.uber.org/fx"
)

var Module = fx.Module("voiceevents.service",
	fx.Provide(service.NewService),
)
