package mapadapter_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/geocodec"
	"github.com/joeblew999/geofield/internal/mapadapter"
)

func open(t *testing.T, backend mapadapter.Backend) mapadapter.Adapter {
	t.Helper()
	a, err := mapadapter.Open(backend, "map-1", mapadapter.MapOptions{
		Center: orb.Point{-2.109375, 51.508742},
		Zoom:   2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestOpenQueuesCreateMap(t *testing.T) {
	a := open(t, mapadapter.BackendHosted)
	cmds := a.Drain()
	if len(cmds) != 1 || cmds[0].Op != mapadapter.OpCreateMap {
		t.Fatalf("cmds=%+v, want one create-map", cmds)
	}
	if cmds[0].MaxZoom != 14 {
		t.Fatalf("maxZoom=%d, want 14", cmds[0].MaxZoom)
	}
	if len(a.Drain()) != 0 {
		t.Fatal("Drain did not clear the queue")
	}
}

func TestOpenRejectsBadOptions(t *testing.T) {
	if _, err := mapadapter.Open(mapadapter.BackendVector, "", mapadapter.MapOptions{}); err == nil {
		t.Fatal("expected error for empty surface")
	}
	if _, err := mapadapter.Open("leaflet", "m", mapadapter.MapOptions{}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := mapadapter.Open(mapadapter.BackendVector, "m", mapadapter.MapOptions{Zoom: 20}); err == nil {
		t.Fatal("expected error for zoom above max")
	}
}

func TestBackendsNormaliseCoordinateOrder(t *testing.T) {
	tests := []struct {
		backend mapadapter.Backend
		pos     string
	}{
		{mapadapter.BackendVector, `[-2.1,51.5]`},
		{mapadapter.BackendHosted, `{"lat":51.5,"lng":-2.1}`},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			a := open(t, tt.backend)
			var got orb.Point
			a.OnMap(mapadapter.EventMapClick, func(ev mapadapter.Event) { got = ev.Point })

			if err := a.Dispatch(mapadapter.NativeEvent{Type: "click", Position: raw(tt.pos)}); err != nil {
				t.Fatal(err)
			}
			if got != (orb.Point{-2.1, 51.5}) {
				t.Fatalf("point=%v, want [-2.1 51.5]", got)
			}
		})
	}
}

func TestVectorPolygonDrawing(t *testing.T) {
	a := open(t, mapadapter.BackendVector)
	a.EnableDrawingMode(geocodec.KindPolygon, mapadapter.DefaultStyle())

	var done []mapadapter.Event
	a.OnMap(mapadapter.EventOverlayComplete, func(ev mapadapter.Event) { done = append(done, ev) })

	for _, p := range []string{`[0,0]`, `[1,0]`} {
		if err := a.Dispatch(mapadapter.NativeEvent{Type: "click", Position: raw(p)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Dispatch(mapadapter.NativeEvent{Type: "commit"}); !errors.Is(err, mapadapter.ErrIncompleteDrawing) {
		t.Fatalf("err=%v, want ErrIncompleteDrawing", err)
	}
	if err := a.Dispatch(mapadapter.NativeEvent{Type: "click", Position: raw(`[1,1]`)}); err != nil {
		t.Fatal(err)
	}
	if err := a.Dispatch(mapadapter.NativeEvent{Type: "commit"}); err != nil {
		t.Fatal(err)
	}

	if len(done) != 1 || done[0].Kind != geocodec.KindPolygon {
		t.Fatalf("events=%+v, want one polygon completion", done)
	}
	if a.Drawing() != geocodec.KindNone {
		t.Fatal("drawing mode still enabled after completion")
	}
	g, ok := a.Geometry(done[0].Handle)
	if !ok {
		t.Fatal("completed overlay not found")
	}
	if !g.(orb.Ring).Equal(orb.Ring{{0, 0}, {1, 0}, {1, 1}}) {
		t.Fatalf("ring=%v", g)
	}
}

func TestVectorCommitDropsRepeatedVertices(t *testing.T) {
	tests := []struct {
		name   string
		clicks []string
		path   string
	}{
		{"double-click", []string{`[0,0]`, `[1,0]`, `[1,1]`, `[1,1]`}, ""},
		{"supplied path", nil, `[[0,0],[0,0],[1,0],[1,1],[1,1],[0,0]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := open(t, mapadapter.BackendVector)
			a.EnableDrawingMode(geocodec.KindPolygon, mapadapter.DefaultStyle())
			var h mapadapter.Handle
			a.OnMap(mapadapter.EventOverlayComplete, func(ev mapadapter.Event) { h = ev.Handle })

			for _, p := range tt.clicks {
				if err := a.Dispatch(mapadapter.NativeEvent{Type: "click", Position: raw(p)}); err != nil {
					t.Fatal(err)
				}
			}
			ev := mapadapter.NativeEvent{Type: "commit"}
			if tt.path != "" {
				ev.Path = raw(tt.path)
			}
			if err := a.Dispatch(ev); err != nil {
				t.Fatal(err)
			}
			g, _ := a.Geometry(h)
			if want := (orb.Ring{{0, 0}, {1, 0}, {1, 1}}); !g.(orb.Ring).Equal(want) {
				t.Fatalf("ring=%v, want %v", g, want)
			}
		})
	}
}

func TestVectorVertexMoveQueuesRedraw(t *testing.T) {
	a := open(t, mapadapter.BackendVector)
	h := a.PlacePolygon(orb.Ring{{0, 0}, {1, 0}, {1, 1}}, mapadapter.DefaultStyle())
	a.Drain()

	if err := a.Dispatch(mapadapter.NativeEvent{Type: "vertex:move", Overlay: h, Index: 2, Position: raw(`[2,2]`)}); err != nil {
		t.Fatal(err)
	}
	cmds := a.Drain()
	if len(cmds) != 1 || cmds[0].Op != mapadapter.OpUpdateOverlay || cmds[0].Overlay != h {
		t.Fatalf("cmds=%+v, want one update-overlay", cmds)
	}
	path, err := json.Marshal(cmds[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(path) != `[[0,0],[1,0],[2,2]]` {
		t.Fatalf("path=%s", path)
	}

	hosted := open(t, mapadapter.BackendHosted)
	hh := hosted.PlacePolygon(orb.Ring{{0, 0}, {1, 0}, {1, 1}}, mapadapter.DefaultStyle())
	hosted.Drain()
	if err := hosted.Dispatch(mapadapter.NativeEvent{Type: "set_at", Overlay: hh, Index: 2, Position: raw(`{"lat":2,"lng":2}`)}); err != nil {
		t.Fatal(err)
	}
	if cmds := hosted.Drain(); len(cmds) != 0 {
		t.Fatalf("hosted cmds=%+v, want none", cmds)
	}
}

func TestHostedOverlayCompleteNeedsDrawingMode(t *testing.T) {
	a := open(t, mapadapter.BackendHosted)
	ev := mapadapter.NativeEvent{Type: "overlaycomplete", Kind: "marker", Position: raw(`{"lat":1,"lng":2}`)}

	if err := a.Dispatch(ev); !errors.Is(err, mapadapter.ErrNotDrawing) {
		t.Fatalf("err=%v, want ErrNotDrawing", err)
	}

	a.EnableDrawingMode(geocodec.KindMarker, mapadapter.DefaultStyle())
	var h mapadapter.Handle
	a.OnMap(mapadapter.EventOverlayComplete, func(e mapadapter.Event) { h = e.Handle })
	if err := a.Dispatch(ev); err != nil {
		t.Fatal(err)
	}
	if g, _ := a.Geometry(h); g != (orb.Point{2, 1}) {
		t.Fatalf("geometry=%v, want [2 1]", g)
	}
}

func TestVertexEditsAndListenerRemoval(t *testing.T) {
	a := open(t, mapadapter.BackendHosted)
	h := a.PlacePolygon(orb.Ring{{0, 0}, {1, 0}, {1, 1}}, mapadapter.DefaultStyle())

	var edits int
	for _, ev := range []mapadapter.EventType{mapadapter.EventVertexInsert, mapadapter.EventVertexRemove, mapadapter.EventVertexEdit} {
		a.On(h, ev, func(mapadapter.Event) { edits++ })
	}
	if a.Listeners(h) != 3 {
		t.Fatalf("listeners=%d, want 3", a.Listeners(h))
	}

	steps := []mapadapter.NativeEvent{
		{Type: "insert_at", Overlay: h, Index: 3, Position: raw(`{"lat":1,"lng":0}`)},
		{Type: "set_at", Overlay: h, Index: 0, Position: raw(`{"lat":-1,"lng":-1}`)},
		{Type: "remove_at", Overlay: h, Index: 1},
	}
	for _, ev := range steps {
		if err := a.Dispatch(ev); err != nil {
			t.Fatalf("%s: %v", ev.Type, err)
		}
	}
	if edits != 3 {
		t.Fatalf("edits=%d, want 3", edits)
	}
	g, _ := a.Geometry(h)
	if want := (orb.Ring{{-1, -1}, {1, 1}, {0, 1}}); !g.(orb.Ring).Equal(want) {
		t.Fatalf("ring=%v, want %v", g, want)
	}

	if err := a.Dispatch(mapadapter.NativeEvent{Type: "remove_at", Overlay: h, Index: 0}); !errors.Is(err, mapadapter.ErrIncompleteDrawing) {
		t.Fatalf("err=%v, want ErrIncompleteDrawing", err)
	}

	a.RemoveOverlay(h)
	if a.Listeners(h) != 0 {
		t.Fatalf("listeners=%d after removal, want 0", a.Listeners(h))
	}
	if err := a.Dispatch(mapadapter.NativeEvent{Type: "dragend", Overlay: h, Position: raw(`{"lat":0,"lng":0}`)}); !errors.Is(err, mapadapter.ErrUnknownOverlay) {
		t.Fatalf("err=%v, want ErrUnknownOverlay", err)
	}
}

func TestOffIsIdempotent(t *testing.T) {
	a := open(t, mapadapter.BackendVector)
	h := a.PlaceMarker(orb.Point{0, 0}, mapadapter.DefaultStyle())
	sub := a.On(h, mapadapter.EventDrag, func(mapadapter.Event) {})
	a.Off(sub)
	a.Off(sub)
	a.Off(mapadapter.Subscription{})
	if a.Listeners(h) != 0 {
		t.Fatalf("listeners=%d, want 0", a.Listeners(h))
	}
}

func TestFitRespectsMaxZoom(t *testing.T) {
	a := open(t, mapadapter.BackendVector)
	h := a.PlaceMarker(orb.Point{10, 10}, mapadapter.DefaultStyle())
	a.Drain()

	a.FitToGeometry(h, 14)
	if v := a.Viewport(); v.Zoom != 14 || v.Center != (orb.Point{10, 10}) {
		t.Fatalf("viewport=%+v, want zoom 14 at marker", v)
	}

	a.FitToBound(orb.Bound{Min: orb.Point{-170, -60}, Max: orb.Point{170, 60}}, 14)
	if v := a.Viewport(); v.Zoom > 2 {
		t.Fatalf("zoom=%d for a world-sized bound", v.Zoom)
	}
	cmds := a.Drain()
	if len(cmds) != 2 || cmds[1].Op != mapadapter.OpFit {
		t.Fatalf("cmds=%+v", cmds)
	}
}

func TestFitToGeometryDuringVertexEdits(t *testing.T) {
	a := open(t, mapadapter.BackendVector)
	h := a.PlacePolygon(orb.Ring{{0, 0}, {1, 0}, {1, 1}}, mapadapter.DefaultStyle())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			pos := raw(fmt.Sprintf("[%d,%d]", 2+i%5, 2+i%5))
			if err := a.Dispatch(mapadapter.NativeEvent{Type: "vertex:move", Overlay: h, Index: 2, Position: pos}); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	for i := 0; i < 100; i++ {
		a.FitToGeometry(h, 10)
	}
	wg.Wait()

	if v := a.Viewport(); v.Zoom > 10 {
		t.Fatalf("zoom=%d, want at most 10", v.Zoom)
	}
}

func TestUnknownNativeEvent(t *testing.T) {
	a := open(t, mapadapter.BackendVector)
	if err := a.Dispatch(mapadapter.NativeEvent{Type: "overlaycomplete"}); !errors.Is(err, mapadapter.ErrUnknownEvent) {
		t.Fatalf("err=%v, want ErrUnknownEvent", err)
	}
}
