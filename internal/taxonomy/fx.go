package taxonomy

import (
	"github.com/smallbiznis/usagestats/internal/config"
	"go.uber.org/fx"
)

func provide(cfg config.Config) (*Taxonomy, error) {
	return Load(cfg.TaxonomyFile)
}

var Module = fx.Module("taxonomy",
	fx.Provide(provide),
)
