package templates_test

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/joeblew999/geofield/internal/search"
	"github.com/joeblew999/geofield/internal/shape"
	"github.com/joeblew999/geofield/internal/templates"
	"github.com/joeblew999/geofield/web"
)

func TestSignalHelpers(t *testing.T) {
	fsys := fstest.MapFS{
		"t.html": {Data: []byte(`{{define "t"}}<input data-bind="{{signal .ID "search"}}" data-on:input="{{sig .ID "key"}} = 1">{{end}}`)},
	}
	r, err := templates.New(fsys, "*.html")
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Render("t", map[string]string{"ID": "location_1"})
	if err != nil {
		t.Fatal(err)
	}
	want := `<input data-bind="location_1_search" data-on:input="$location_1_key = 1">`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestEmbeddedFragments(t *testing.T) {
	r, err := templates.New(web.FS, web.Templates...)
	if err != nil {
		t.Fatal(err)
	}

	tools, err := r.Render("field-tools", struct {
		ID string
		shape.Snapshot
	}{ID: "location_1", Snapshot: shape.Snapshot{State: shape.StateEmpty, Tools: shape.Tools{Draw: true}}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(tools, `id="location_1-tools"`) || !strings.Contains(tools, "/draw/polygon") {
		t.Fatalf("tools=%s", tools)
	}
	if strings.Contains(tools, "/cancel") || strings.Contains(tools, "/delete") {
		t.Fatalf("empty field should only offer drawing tools: %s", tools)
	}

	item, err := r.Render("search-result", struct {
		ID string
		search.Item
	}{ID: "location_1", Item: search.Item{
		Index:  2,
		Title:  []search.Segment{{Text: "Bat", Match: true}, {Text: "h"}},
		Detail: []search.Segment{{Text: "Somerset, UK"}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`id="location_1-result-2"`, "<b>Bat</b>h", "Somerset, UK", "$location_1_index"} {
		if !strings.Contains(item, want) {
			t.Errorf("search result missing %q:\n%s", want, item)
		}
	}

	empty, err := r.Render("empty-state", map[string]string{"Title": "No matches", "Message": "Try another address"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(empty, "No matches") {
		t.Fatalf("empty=%s", empty)
	}
}

func TestUnknownTemplate(t *testing.T) {
	r, err := templates.New(web.FS, web.Templates...)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
