package editor

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geofield/internal/field"
	"github.com/joeblew999/geofield/internal/humastar"
	"github.com/joeblew999/geofield/internal/search"
	"github.com/joeblew999/geofield/internal/shape"
)

// SearchHandler serves the search box and its suggestion list.
type SearchHandler struct {
	Handler
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(base Handler) *SearchHandler {
	return &SearchHandler{Handler: base}
}

func (h *SearchHandler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("editor")
	huma.Post(api, "/api/v1/editor/fields/{id}/search", h.Search, tags)
	huma.Post(api, "/api/v1/editor/fields/{id}/search/key", h.Key, tags)
	huma.Post(api, "/api/v1/editor/fields/{id}/search/select", h.Select, tags)
	huma.Post(api, "/api/v1/editor/fields/{id}/search/toggle", h.Toggle, tags)
	huma.Post(api, "/api/v1/editor/fields/{id}/search/focus", h.Focus, tags)
}

// ResultData is the search-result fragment data.
type ResultData struct {
	ID string
	search.Item
}

func (h *SearchHandler) overlay(id string) (*field.Instance, *search.Overlay, error) {
	inst, _, err := h.ready(id)
	if err != nil {
		return nil, nil, err
	}
	o, _ := inst.Search()
	if o == nil {
		return nil, nil, huma.Error404NotFound("search is not available for this field")
	}
	return inst, o, nil
}

func (h *SearchHandler) pushResults(sse humastar.SSE, id string, o *search.Overlay) {
	view := o.View()
	html := ""
	if view.Text != "" {
		items := make([]any, len(view.Items))
		for i, it := range view.Items {
			items[i] = ResultData{ID: id, Item: it}
		}
		html = h.RenderList("search-result", items, "No places found", "Try a different address")
	}
	sse.Patch(html, "#"+id+"-results")
	sse.Signals(map[string]any{
		Signal(id, "search"):    view.Text,
		Signal(id, "open"):      view.Open,
		Signal(id, "visible"):   view.Visible,
		Signal(id, "highlight"): view.Highlight,
	})
}

// Search runs the "<id>_search" text through the place provider.
func (h *SearchHandler) Search(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	_, o, err := h.overlay(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := humastar.MustParse(input.RawBody)
	if err != nil {
		return nil, err
	}
	text := signals.String(Signal(input.ID, "search"))

	return h.Stream(func(sse humastar.SSE) {
		if _, err := o.Query(ctx, text); errors.Is(err, search.ErrSuperseded) {
			return
		}
		h.pushResults(sse, input.ID, o)
	}), nil
}

// Key applies the "<id>_key" keyboard key. Enter places the highlighted
// prediction, asking "<id>_confirm" before replacing an existing shape.
func (h *SearchHandler) Key(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	inst, o, err := h.overlay(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := humastar.MustParse(input.RawBody)
	if err != nil {
		return nil, err
	}
	key := signals.String(Signal(input.ID, "key"))
	switch key {
	case search.KeyDown, search.KeyUp, search.KeyEnter, search.KeyEscape:
	default:
		return nil, huma.Error400BadRequest("unsupported key")
	}

	return h.Stream(func(sse humastar.SSE) {
		if _, err := o.Key(ctx, key, confirmFrom(signals, input.ID)); err != nil {
			selectError(sse, err)
		}
		h.pushResults(sse, input.ID, o)
		h.PushState(sse, inst)
	}), nil
}

// Select places the prediction at "<id>_index".
func (h *SearchHandler) Select(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	inst, o, err := h.overlay(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := humastar.MustParse(input.RawBody)
	if err != nil {
		return nil, err
	}
	index := signals.Int(Signal(input.ID, "index"))

	return h.Stream(func(sse humastar.SSE) {
		if _, err := o.Select(ctx, index, confirmFrom(signals, input.ID)); err != nil {
			selectError(sse, err)
		}
		h.pushResults(sse, input.ID, o)
		h.PushState(sse, inst)
	}), nil
}

func selectError(sse humastar.SSE, err error) {
	switch {
	case errors.Is(err, shape.ErrOverwriteDeclined):
		sse.Success("Kept the existing shape")
	case errors.Is(err, shape.ErrInvalidTransition):
		sse.Error("Finish or cancel the polygon first")
	default:
		sse.Error(err.Error())
	}
}

// Toggle shows or hides the search panel.
func (h *SearchHandler) Toggle(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	_, o, err := h.overlay(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		o.Toggle()
		h.pushResults(sse, input.ID, o)
	}), nil
}

// Focus re-shows existing results when the input regains focus.
func (h *SearchHandler) Focus(ctx context.Context, input *FieldInput) (*huma.StreamResponse, error) {
	_, o, err := h.overlay(input.ID)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		o.Focus()
		h.pushResults(sse, input.ID, o)
	}), nil
}
