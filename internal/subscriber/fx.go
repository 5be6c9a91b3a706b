package subscriber

import (
	"github.com/smallbiznis/usagestats/internal/subscriber/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("subscriber",
	fx.Provide(repository.Provide),
)
