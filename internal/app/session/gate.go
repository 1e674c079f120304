package session

import (
	"sync/atomic"

	"github.com/Rana-X/nora/internal/core"
)

// gate forwards transport events until closed. An Emit racing with close may
// still get through; subscribers released on the same teardown ignore it.
type gate struct {
	next   core.EventSink
	closed atomic.Bool
}

func (g *gate) Emit(ev core.Event) {
	if g.closed.Load() {
		return
	}
	g.next.Emit(ev)
}

func (g *gate) close() { g.closed.Store(true) }
