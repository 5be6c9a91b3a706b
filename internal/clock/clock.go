package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time for the refresh worker so tests can drive ticks.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return systemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
