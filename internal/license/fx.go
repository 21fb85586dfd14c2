package license

import (
	"github.com/glowpress/keyline/internal/license/repository"
	"github.com/glowpress/keyline/internal/license/service"
	"go.uber.org/fx"
)

var Module = fx.Module("license.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
