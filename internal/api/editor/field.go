package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/humastar"
	"github.com/joeblew999/geofield/internal/mapadapter"
	"github.com/joeblew999/geofield/internal/service"
)

// FieldHandler serves the tool group, native map events and the bootstrap
// handshake.
type FieldHandler struct {
	Handler
	entries *service.EntryService
}

// NewFieldHandler creates a field handler.
func NewFieldHandler(base Handler, entries *service.EntryService) *FieldHandler {
	return &FieldHandler{Handler: base, entries: entries}
}

func (h *FieldHandler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("editor")
	huma.Post(api, "/api/v1/editor/fields/{id}/library-ready", h.LibraryReady, tags)
	huma.Post(api, "/api/v1/editor/fields/{id}/draw/{kind}", h.Draw, tags)
	huma.Post(api, "/api/v1/editor/fields/{id}/cancel", h.Cancel, tags)
	huma.Post(api, "/api/v1/editor/fields/{id}/delete", h.Delete, tags)
	huma.Post(api, "/api/v1/editor/fields/{id}/events", h.Events, tags)
	huma.Post(api, "/api/v1/editor/fields/{id}/submit", h.Submit, tags)
}

// LibraryReady marks the instance's map library as loaded and answers once
// the instance is bootstrapped.
func (h *FieldHandler) LibraryReady(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	inst, err := h.fields.LibraryReady(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		select {
		case <-inst.Done():
		case <-ctx.Done():
			return
		}
		h.PushState(sse, inst)
	}), nil
}

type DrawInput struct {
	ID   string `path:"id" doc:"Field instance ID" example:"location_1"`
	Kind string `path:"kind" enum:"marker,polygon" doc:"Shape kind to draw"`
}

// Draw arms the tool for a marker or starts polygon drawing.
func (h *FieldHandler) Draw(ctx context.Context, input *DrawInput) (*huma.StreamResponse, error) {
	inst, c, err := h.ready(input.ID)
	if err != nil {
		return nil, err
	}
	kind, err := geocodec.ParseKind(input.Kind)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		if err := c.StartDrawing(kind); err != nil {
			sse.Error(err.Error())
		}
		h.PushState(sse, inst)
	}), nil
}

// Cancel aborts polygon drawing.
func (h *FieldHandler) Cancel(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	inst, c, err := h.ready(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		if err := c.CancelDrawing(); err != nil {
			sse.Error(err.Error())
		}
		h.PushState(sse, inst)
	}), nil
}

// Delete removes the shape and clears the hidden fields.
func (h *FieldHandler) Delete(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	inst, c, err := h.ready(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		if err := c.DeleteShape(); err != nil {
			sse.Error(err.Error())
		} else {
			sse.Success("Shape deleted")
		}
		h.PushState(sse, inst)
	}), nil
}

// Events applies a native map event posted in the "<id>_mapevent" signal.
func (h *FieldHandler) Events(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	inst, _, err := h.ready(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := humastar.MustParse(input.RawBody)
	if err != nil {
		return nil, err
	}
	var ev mapadapter.NativeEvent
	if err := signals.Decode(Signal(input.ID, "mapevent"), &ev); err != nil || ev.Type == "" {
		return nil, huma.Error400BadRequest("map event is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		if err := inst.Adapter().Dispatch(ev); err != nil {
			sse.Error(eventError(err))
		}
		h.PushState(sse, inst)
	}), nil
}

func eventError(err error) string {
	switch {
	case errors.Is(err, mapadapter.ErrIncompleteDrawing):
		return "A polygon needs at least three points"
	case errors.Is(err, mapadapter.ErrNotDrawing):
		return "Choose a drawing tool first"
	}
	return err.Error()
}

// Submit stores the instance's current value as an entry, applying the
// field's validation hook.
func (h *FieldHandler) Submit(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	inst, c, err := h.ready(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		c.Flush()
		v, address := inst.Value()
		e, err := h.entries.Submit(ctx, inst.Config.Name, geocodec.HostValue{
			GeoJSON: v.GeoJSON, Type: v.Type, Address: address,
		})
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Success(fmt.Sprintf("Saved entry %s", e.ID))
		sse.DispatchCustomEvent("entry-created", map[string]any{
			"id": e.ID, "field": e.Field,
		})
	}), nil
}
