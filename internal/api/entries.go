package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/humastar"
	"github.com/joeblew999/geofield/internal/service"
)

// DefaultPageLimit is the entries page size when none is given.
const DefaultPageLimit = 20

type SubmitInput struct {
	Body struct {
		Field   string `json:"field" required:"true" minLength:"1" doc:"Catalogue field name" example:"location"`
		GeoJSON string `json:"geoJSON,omitempty" doc:"Serialized shape envelope"`
		Type    string `json:"type,omitempty" doc:"Shape type" example:"marker"`
		Address string `json:"address,omitempty" doc:"Address chosen in the search box"`
		Lat     any    `json:"lat,omitempty" doc:"Legacy latitude (number or numeric string)"`
		Lng     any    `json:"lng,omitempty" doc:"Legacy longitude (number or numeric string)"`
	}
}

type EntryIDInput struct {
	ID string `path:"id" doc:"Entry ID"`
}

type ListEntriesInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
}

// RegisterEntries registers host form submission routes.
func (h *APIHandler) RegisterEntries(api huma.API) {
	huma.Get(api, "/api/v1/entries", h.ListEntries, huma.OperationTags("entries"))
	huma.Post(api, "/api/v1/entries", h.SubmitEntry, huma.OperationTags("entries"), created)
	huma.Get(api, "/api/v1/entries/{id}", h.GetEntry, huma.OperationTags("entries"))
}

func (h *APIHandler) SubmitEntry(ctx context.Context, input *SubmitInput) (*struct{ Body service.Entry }, error) {
	in := input.Body
	hv := geocodec.HostValue{GeoJSON: in.GeoJSON, Type: in.Type, Address: in.Address}
	var err error
	if hv.Lat, err = rawValue(in.Lat); err != nil {
		return nil, err
	}
	if hv.Lng, err = rawValue(in.Lng); err != nil {
		return nil, err
	}

	e, err := h.svc.Entries.Submit(ctx, in.Field, hv)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body service.Entry }{Body: e}, nil
}

func (h *APIHandler) GetEntry(ctx context.Context, input *EntryIDInput) (*struct{ Body service.Entry }, error) {
	e, err := h.svc.Entries.Get(ctx, input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body service.Entry }{Body: e}, nil
}

func (h *APIHandler) ListEntries(ctx context.Context, input *ListEntriesInput) (*struct {
	Body humastar.PageBody[service.Entry]
}, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	entries, total, err := h.svc.Entries.List(ctx, input.Offset, limit)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct {
		Body humastar.PageBody[service.Entry]
	}{Body: humastar.PageBody[service.Entry]{
		Total: total, Offset: input.Offset, Limit: limit, Data: entries,
	}}, nil
}
