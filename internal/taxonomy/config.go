package taxonomy

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadFile reads an ordered pattern list from a YAML file:
//
//	patterns:
//	  - match: histo_actions
//	    kind: contains
//	    category: Stocks
//
// The taxonomy visibly evolved across reporting generations (Green Bonds was
// added late, Mutual Funds was once four patterns), so the list is treated as
// versioned configuration rather than code.
func LoadFile(path string) (*Taxonomy, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("taxonomy: read %s: %w", path, err)
	}

	var file struct {
		Patterns []Pattern `mapstructure:"patterns"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("taxonomy: parse %s: %w", path, err)
	}
	for i := range file.Patterns {
		if file.Patterns[i].Kind == "" {
			file.Patterns[i].Kind = MatchContains
		}
	}
	return New(file.Patterns)
}

// Load returns the taxonomy for the given config path, falling back to the
// built-in list when path is empty.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return NewDefault(), nil
	}
	return LoadFile(path)
}
