package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joeblew999/geofield/internal/api/editor"
	"github.com/joeblew999/geofield/internal/field"
	"github.com/joeblew999/geofield/internal/service"
)

// PageData is the data of the field-page template.
type PageData struct {
	ID         string
	Name       string
	Label      string
	Required   bool
	Backend    string
	Library    string
	LibraryURL string
	Surface    string
	Search     bool

	// Signals is the JSON object seeding the instance's Datastar signals.
	Signals string
}

// handleField mounts a catalogue field and renders its page. The optional
// value query parameter carries the host's stored value as JSON.
func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	var prior json.RawMessage
	if v := r.URL.Query().Get("value"); v != "" {
		prior = json.RawMessage(v)
	}

	inst, err := s.services.Fields.Mount(r.PathValue("name"), prior)
	if err != nil {
		if errors.Is(err, service.ErrUnknownField) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	signals, err := json.Marshal(initialSignals(inst, s.hasSearch(inst)))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cfg := inst.Config
	label := cfg.Label
	if label == "" {
		label = cfg.Name
	}
	data := PageData{
		ID:         inst.ID,
		Name:       cfg.Name,
		Label:      label,
		Required:   cfg.Required,
		Backend:    cfg.Backend,
		Library:    cfg.Library(),
		LibraryURL: s.libraryURL(cfg.Backend),
		Surface:    inst.Adapter().Surface(),
		Search:     s.hasSearch(inst),
		Signals:    string(signals),
	}

	var buf bytes.Buffer
	if err := s.renderer.RenderToBuffer(&buf, "field-page", data); err != nil {
		s.log.Error("render field page", "instance", inst.ID, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) hasSearch(inst *field.Instance) bool {
	return s.providers != nil && s.providers(inst.Adapter().Backend()) != nil
}

// initialSignals seeds the hidden fields from the instance value, which is
// the migrated prior until the map loads, so the form still posts it if the
// map never does.
func initialSignals(inst *field.Instance, search bool) map[string]any {
	value, address := inst.Value()

	id := inst.ID
	sig := map[string]any{
		editor.Signal(id, "geojson"):  value.GeoJSON,
		editor.Signal(id, "type"):     value.Type,
		editor.Signal(id, "address"):  address,
		editor.Signal(id, "status"):   string(field.StatusPending),
		editor.Signal(id, "state"):    "",
		editor.Signal(id, "tool"):     "",
		editor.Signal(id, "mapevent"): nil,
		"error":                       "",
		"success":                     "",
	}
	if search {
		sig[editor.Signal(id, "search")] = ""
		sig[editor.Signal(id, "open")] = true
		sig[editor.Signal(id, "visible")] = false
		sig[editor.Signal(id, "highlight")] = -1
		sig[editor.Signal(id, "key")] = ""
		sig[editor.Signal(id, "confirm")] = false
		sig[editor.Signal(id, "index")] = -1
	}
	return sig
}
