package shape

import (
	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/mapadapter"
)

// ListenerSet holds the subscriptions tied to one live overlay.
type ListenerSet struct {
	adapter mapadapter.Adapter
	handle  mapadapter.Handle
	subs    []mapadapter.Subscription
}

// attachListeners subscribes fn to every edit event of a kind's overlay:
// drag for both kinds, plus vertex insert/remove/edit for polygons.
func attachListeners(a mapadapter.Adapter, h mapadapter.Handle, kind geocodec.Kind, fn mapadapter.Listener) *ListenerSet {
	events := []mapadapter.EventType{mapadapter.EventDrag}
	if kind == geocodec.KindPolygon {
		events = append(events,
			mapadapter.EventVertexInsert,
			mapadapter.EventVertexRemove,
			mapadapter.EventVertexEdit,
		)
	}

	ls := &ListenerSet{adapter: a, handle: h}
	for _, ev := range events {
		if sub := a.On(h, ev, fn); sub.Attached() {
			ls.subs = append(ls.subs, sub)
		}
	}
	return ls
}

// Len returns the number of attached subscriptions.
func (ls *ListenerSet) Len() int {
	if ls == nil {
		return 0
	}
	return len(ls.subs)
}

// Detach removes every subscription. It is safe to call more than once and
// on a nil set.
func (ls *ListenerSet) Detach() {
	if ls == nil {
		return
	}
	for _, sub := range ls.subs {
		ls.adapter.Off(sub)
	}
	ls.subs = nil
}
