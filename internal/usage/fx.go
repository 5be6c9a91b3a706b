package usage

import (
	"github.com/smallbiznis/usagestats/internal/usage/repository"
	"github.com/smallbiznis/usagestats/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewNormalizer),
)
