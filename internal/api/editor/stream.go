package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geofield/internal/humastar"
	"github.com/joeblew999/geofield/internal/service"
)

// StreamHandler keeps one SSE connection per mounted widget and pushes state
// the request handlers cannot: debounced writes and bootstrap results.
type StreamHandler struct {
	Handler
	bus *service.EventBus
}

// NewStreamHandler creates a stream handler fed by bus.
func NewStreamHandler(base Handler, bus *service.EventBus) *StreamHandler {
	if bus == nil {
		bus = service.DefaultBus
	}
	return &StreamHandler{Handler: base, bus: bus}
}

func (h *StreamHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/fields/{id}/stream", h.Follow, huma.OperationTags("editor"))
}

type StreamInput struct {
	ID string `path:"id" doc:"Field instance ID" example:"location_1"`
}

// Follow sends the current state, then re-sends it after every bus event
// for the instance until the client goes away or the instance is deleted.
func (h *StreamHandler) Follow(ctx context.Context, input *StreamInput) (*huma.StreamResponse, error) {
	inst, err := h.instance(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		h.PushState(sse, inst)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Resource != service.ResourceFields || ev.ID != inst.ID {
					continue
				}
				if ev.Action == service.ActionDeleted {
					sse.Signals(map[string]any{Signal(inst.ID, "status"): "deleted"})
					return
				}
				h.PushState(sse, inst)
				sse.DispatchCustomEvent("field-changed", map[string]any{
					"id": ev.ID, "action": ev.Action,
				})
			}
		}
	}), nil
}
