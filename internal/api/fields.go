package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geofield/internal/field"
	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/humastar"
	"github.com/joeblew999/geofield/internal/shape"
)

// FieldBody describes a mounted field instance.
type FieldBody struct {
	ID       string                  `json:"id" doc:"Instance ID" example:"location_1"`
	Field    string                  `json:"field" doc:"Catalogue field name" example:"location"`
	Label    string                  `json:"label,omitempty" doc:"Field label"`
	Status   field.Status            `json:"status" enum:"pending,ready,failed" doc:"Bootstrap status"`
	Error    string                  `json:"error,omitempty" doc:"Failure reason"`
	Backend  string                  `json:"backend" doc:"Map backend"`
	Library  string                  `json:"library" doc:"Map library the instance waits on"`
	MustLoad bool                    `json:"mustLoad" doc:"Whether this instance is responsible for loading the library"`
	Surface  string                  `json:"surface" doc:"Element ID of the map surface"`
	Search   bool                    `json:"search" doc:"Whether the search box is available"`
	Shape    *shape.Snapshot         `json:"shape,omitempty" doc:"Controller state once ready"`
	Value    geocodec.PersistedValue `json:"value" doc:"Hidden field values"`
	Address  string                  `json:"address,omitempty" doc:"Search address"`
}

const editorBase = "/api/v1/editor/fields/%s"

var (
	actionLibraryReady = humastar.ActionDef{Rel: "library-ready", Pattern: editorBase + "/library-ready", Method: "POST", Title: "Map library loaded"}
	actionDrawMarker   = humastar.ActionDef{Rel: "draw-marker", Pattern: editorBase + "/draw/marker", Method: "POST", Title: "Place marker"}
	actionDrawPolygon  = humastar.ActionDef{Rel: "draw-polygon", Pattern: editorBase + "/draw/polygon", Method: "POST", Title: "Draw polygon"}
	actionCancel       = humastar.ActionDef{Rel: "cancel", Pattern: editorBase + "/cancel", Method: "POST", Title: "Cancel drawing"}
	actionDelete       = humastar.ActionDef{Rel: "delete", Pattern: editorBase + "/delete", Method: "POST", Title: "Delete shape"}
	actionSearch       = humastar.ActionDef{Rel: "search", Pattern: editorBase + "/search", Method: "POST", Title: "Search places"}
)

// Actions lists what the editor may do in the instance's current state.
func (b FieldBody) Actions() []humastar.Action {
	var defs []humastar.ActionDef
	switch {
	case b.Status == field.StatusPending:
		defs = append(defs, actionLibraryReady)
	case b.Shape == nil:
		return nil
	default:
		if b.Shape.Tools.Draw {
			defs = append(defs, actionDrawMarker, actionDrawPolygon)
		}
		if b.Shape.Tools.Drawing {
			defs = append(defs, actionCancel)
		}
		if b.Shape.Tools.Delete {
			defs = append(defs, actionDelete)
		}
		if b.Search {
			defs = append(defs, actionSearch)
		}
	}
	return humastar.ActionsFor(b.ID, defs...)
}

// NewFieldBody snapshots an instance.
func NewFieldBody(inst *field.Instance) FieldBody {
	status, reason := inst.Status()
	body := FieldBody{
		ID:       inst.ID,
		Field:    inst.Config.Name,
		Label:    inst.Config.Label,
		Status:   status,
		Backend:  inst.Config.Backend,
		Library:  inst.Config.Library(),
		MustLoad: inst.MustLoad,
		Surface:  inst.Adapter().Surface(),
	}
	if reason != nil {
		body.Error = reason.Error()
	}
	if c, err := inst.Controller(); err == nil {
		snap := c.Snapshot()
		body.Shape = &snap
		overlay, _ := inst.Search()
		body.Search = overlay != nil
	}
	body.Value, body.Address = inst.Value()
	return body
}

type MountInput struct {
	Body struct {
		Field string `json:"field" required:"true" minLength:"1" doc:"Catalogue field name" example:"location"`
		Value any    `json:"value,omitempty" doc:"Stored value: {geoJSON,type,address} or legacy {lat,lng}"`
	}
}

// RegisterFields registers field instance routes.
func (h *APIHandler) RegisterFields(api huma.API) {
	huma.Get(api, "/api/v1/catalogue", h.GetCatalogue, huma.OperationTags("fields"))
	huma.Get(api, "/api/v1/fields", h.GetFields, huma.OperationTags("fields"))
	huma.Post(api, "/api/v1/fields", h.MountField, huma.OperationTags("fields"), created)
	huma.Get(api, "/api/v1/fields/{id}", h.GetField, huma.OperationTags("fields"))
	huma.Delete(api, "/api/v1/fields/{id}", h.DeleteField, huma.OperationTags("fields"))
}

func (h *APIHandler) GetCatalogue(ctx context.Context, input *humastar.EmptyInput) (*struct{ Body []field.Config }, error) {
	return &struct{ Body []field.Config }{Body: h.svc.Fields.Catalogue()}, nil
}

func (h *APIHandler) GetFields(ctx context.Context, input *humastar.EmptyInput) (*struct{ Body []FieldBody }, error) {
	instances := h.svc.Fields.List()
	bodies := make([]FieldBody, 0, len(instances))
	for _, inst := range instances {
		bodies = append(bodies, NewFieldBody(inst))
	}
	return &struct{ Body []FieldBody }{Body: bodies}, nil
}

func (h *APIHandler) MountField(ctx context.Context, input *MountInput) (*struct{ Body FieldBody }, error) {
	prior, err := rawValue(input.Body.Value)
	if err != nil {
		return nil, err
	}
	inst, err := h.svc.Fields.Mount(input.Body.Field, prior)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body FieldBody }{Body: NewFieldBody(inst)}, nil
}

func (h *APIHandler) GetField(ctx context.Context, input *IDInput) (*struct{ Body FieldBody }, error) {
	inst, ok := h.svc.Fields.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("field instance not found")
	}
	return &struct{ Body FieldBody }{Body: NewFieldBody(inst)}, nil
}

func (h *APIHandler) DeleteField(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Fields.Delete(input.ID); err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Field unmounted"}}, nil
}
