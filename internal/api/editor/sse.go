// Package editor contains the Datastar SSE handlers behind the field widget.
//
// The browser posts native map events and tool clicks; handlers apply them to
// the server-side map mirror and controller, then answer with hidden field
// signals, tool group fragments and a "geofield-commands" window event that
// geofield.js replays against the real map library.
package editor

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geofield/internal/field"
	"github.com/joeblew999/geofield/internal/humastar"
	"github.com/joeblew999/geofield/internal/mapadapter"
	"github.com/joeblew999/geofield/internal/service"
	"github.com/joeblew999/geofield/internal/shape"
)

// CommandsEvent is the window event carrying queued map commands.
const CommandsEvent = "geofield-commands"

// Signal returns the Datastar signal name for an instance-scoped value.
func Signal(id, name string) string {
	return id + "_" + name
}

// FieldInput addresses an instance and carries the Datastar signals.
type FieldInput struct {
	ID      string `path:"id" doc:"Field instance ID" example:"location_1"`
	RawBody []byte
}

// CommandBatch is the detail of a CommandsEvent.
type CommandBatch struct {
	Surface  string               `json:"surface"`
	Backend  mapadapter.Backend   `json:"backend"`
	Commands []mapadapter.Command `json:"commands"`
}

// ToolsData is the field-tools fragment data.
type ToolsData struct {
	ID string
	shape.Snapshot
}

// Handler is the shared base of the field and search handlers.
type Handler struct {
	humastar.Handler
	fields *service.FieldService
}

// NewHandler creates the editor base handler.
func NewHandler(fields *service.FieldService, h humastar.Handler) Handler {
	return Handler{Handler: h, fields: fields}
}

func (h *Handler) instance(id string) (*field.Instance, error) {
	inst, ok := h.fields.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("field instance not found")
	}
	return inst, nil
}

// ready returns the instance controller or a 503 while it bootstraps.
func (h *Handler) ready(id string) (*field.Instance, *shape.Controller, error) {
	inst, err := h.instance(id)
	if err != nil {
		return nil, nil, err
	}
	c, err := inst.Controller()
	if err != nil {
		return nil, nil, huma.Error503ServiceUnavailable(err.Error())
	}
	return inst, c, nil
}

// PushState sends the instance's hidden field signals, tool group and any
// queued map commands.
func (h *Handler) PushState(sse humastar.SSE, inst *field.Instance) {
	status, reason := inst.Status()
	signals := map[string]any{Signal(inst.ID, "status"): string(status)}
	if reason != nil {
		signals["error"] = reason.Error()
	}

	if c, err := inst.Controller(); err == nil {
		snap := c.Snapshot()
		signals[Signal(inst.ID, "geojson")] = snap.Value.GeoJSON
		signals[Signal(inst.ID, "type")] = snap.Value.Type
		signals[Signal(inst.ID, "address")] = snap.Address
		signals[Signal(inst.ID, "state")] = string(snap.State)
		signals[Signal(inst.ID, "tool")] = string(snap.Tool)
		sse.Replace(h.MustRender("field-tools", ToolsData{ID: inst.ID, Snapshot: snap}), "#"+inst.ID+"-tools")
	}
	sse.Signals(signals)
	PushCommands(sse, inst.Adapter())
}

// PushCommands drains the adapter's queued commands to the browser.
func PushCommands(sse humastar.SSE, a mapadapter.Adapter) {
	cmds := a.Drain()
	if len(cmds) == 0 {
		return
	}
	sse.DispatchCustomEvent(CommandsEvent, CommandBatch{
		Surface:  a.Surface(),
		Backend:  a.Backend(),
		Commands: cmds,
	})
}

// confirmFrom reads the editor's answer to the overwrite prompt.
func confirmFrom(signals humastar.Signals, id string) shape.ConfirmFunc {
	return func() bool { return signals.Bool(Signal(id, "confirm")) }
}
