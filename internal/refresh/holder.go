package refresh

import (
	"sync/atomic"

	"github.com/smallbiznis/usagestats/internal/pipeline"
)

// Holder publishes the latest successful run to readers. Swaps are atomic;
// a reader either sees the previous complete snapshot or the new one, never
// a half-refreshed state.
type Holder struct {
	current atomic.Pointer[pipeline.Result]
}

func NewHolder() *Holder {
	return &Holder{}
}

// Latest returns the last published snapshot, nil before the first run.
func (h *Holder) Latest() *pipeline.Result {
	return h.current.Load()
}

// Publish replaces the served snapshot.
func (h *Holder) Publish(result *pipeline.Result) {
	if result == nil {
		return
	}
	h.current.Store(result)
}
