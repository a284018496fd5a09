package humastar_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/geofield/internal/humastar"
)

func TestPaginationLinks(t *testing.T) {
	p := humastar.PageBody[int]{Total: 45, Offset: 20, Limit: 20}
	got := p.PaginationLinks("/api/v1/entries")
	want := []string{
		`</api/v1/entries?offset=0&limit=20>; rel="first"`,
		`</api/v1/entries?offset=0&limit=20>; rel="prev"`,
		`</api/v1/entries?offset=40&limit=20>; rel="next"`,
		`</api/v1/entries?offset=40&limit=20>; rel="last"`,
	}
	if !slices.Equal(got, want) {
		t.Fatalf("links=%q\nwant %q", got, want)
	}

	first := humastar.PageBody[int]{Total: 0, Limit: 20}.PaginationLinks("/x")
	if len(first) != 2 || first[1] != `</x?offset=0&limit=20>; rel="last"` {
		t.Fatalf("empty page links=%q", first)
	}
	if links := (humastar.PageBody[int]{Total: 3}).PaginationLinks("/x"); links != nil {
		t.Fatalf("unlimited page links=%q, want none", links)
	}
}

func TestActionsFor(t *testing.T) {
	actions := humastar.ActionsFor("location_1",
		humastar.ActionDef{Rel: "cancel", Pattern: "/api/v1/editor/fields/%s/cancel", Method: "POST", Title: "Cancel drawing"},
		humastar.ActionDef{Rel: "self", Pattern: "/api/v1/fields/%s"},
	)
	if len(actions) != 2 {
		t.Fatalf("actions=%d, want 2", len(actions))
	}
	want := `</api/v1/editor/fields/location_1/cancel>; rel="cancel"; method="POST"; title="Cancel drawing"`
	if got := actions[0].LinkHeader(); got != want {
		t.Fatalf("header=%s, want %s", got, want)
	}
	if got := actions[1].LinkHeader(); got != `</api/v1/fields/location_1>; rel="self"` {
		t.Fatalf("header=%s", got)
	}
}

func TestSignals(t *testing.T) {
	s, err := humastar.ParseSignals([]byte(`{"f_search":"bath","f_index":2,"f_confirm":true,"f_mapevent":{"type":"click","point":[1,2]}}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.String("f_search") != "bath" || s.Int("f_index") != 2 || !s.Bool("f_confirm") {
		t.Fatalf("signals=%v", s)
	}
	if s.String("f_index") != "" || s.Int("missing") != 0 || s.Has("missing") {
		t.Fatal("type mismatches and missing keys should yield zero values")
	}

	var ev struct {
		Type  string     `json:"type"`
		Point [2]float64 `json:"point"`
	}
	if err := s.Decode("f_mapevent", &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "click" || ev.Point != [2]float64{1, 2} {
		t.Fatalf("event=%+v", ev)
	}

	empty, err := humastar.ParseSignals([]byte("  "))
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty body: %v %v", empty, err)
	}
	if _, err := humastar.MustParse([]byte("{")); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

type thing struct {
	ID string `json:"id"`
}

type thingBody struct {
	thing
}

func (thingBody) Actions() []humastar.Action {
	return []humastar.Action{{Rel: "delete", Href: "/things/1", Method: "DELETE"}}
}

func TestLinksTransformer(t *testing.T) {
	links := humastar.NewLinks()
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.CreateHooks = nil
	cfg.Transformers = append(cfg.Transformers, links.Transformer())

	mux := http.NewServeMux()
	api := humago.New(mux, cfg)

	huma.Get(api, "/health", func(ctx context.Context, _ *humastar.EmptyInput) (*struct{ Body thing }, error) {
		return &struct{ Body thing }{Body: thing{ID: "ok"}}, nil
	}, huma.OperationTags("health"))
	huma.Get(api, "/things", func(ctx context.Context, _ *humastar.EmptyInput) (*struct {
		Body humastar.PageBody[thing]
	}, error) {
		return &struct{ Body humastar.PageBody[thing] }{Body: humastar.PageBody[thing]{Total: 1, Limit: 10, Data: []thing{{ID: "1"}}}}, nil
	}, huma.OperationTags("things"))
	huma.Post(api, "/things", func(ctx context.Context, _ *humastar.EmptyInput) (*struct{ Body thing }, error) {
		return &struct{ Body thing }{Body: thing{ID: "1"}}, nil
	}, huma.OperationTags("things"))
	huma.Get(api, "/things/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body thingBody }, error) {
		return &struct{ Body thingBody }{Body: thingBody{thing{ID: in.ID}}}, nil
	}, huma.OperationTags("things"))
	huma.Post(api, "/editor/things/{id}/poke", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		return &struct{}{}, nil
	}, huma.OperationTags("editor"))
	links.Build(api)

	get := func(path string) []string {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: %d %s", path, rec.Code, rec.Body)
		}
		return rec.Header().Values("Link")
	}

	root := get("/health")
	for _, want := range []string{
		`</things>; rel="things"`,
		`</openapi.json>; rel="service-desc"`,
		`</docs>; rel="service-doc"`,
	} {
		if !slices.Contains(root, want) {
			t.Errorf("/health links=%q missing %s", root, want)
		}
	}
	if got := links.For("/editor/things/{id}/poke"); len(got) != 0 {
		t.Errorf("editor operation links=%q, want none", got)
	}

	coll := get("/things")
	for _, want := range []string{
		`</health>; rel="up"`,
		`</things>; rel="create-form"`,
		`</things/{id}>; rel="item"`,
		`</things?offset=0&limit=10>; rel="first"`,
	} {
		if !slices.Contains(coll, want) {
			t.Errorf("/things links=%q missing %s", coll, want)
		}
	}

	item := get("/things/1")
	for _, want := range []string{
		`</things>; rel="collection"`,
		`</things/1>; rel="self"`,
		`</things/1>; rel="delete"; method="DELETE"`,
	} {
		if !slices.Contains(item, want) {
			t.Errorf("/things/1 links=%q missing %s", item, want)
		}
	}

	if got := links.For("/things/{id}"); len(got) == 0 {
		t.Fatal("For returned no links for the item path")
	}
}
