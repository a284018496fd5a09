package search_test

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geofield/internal/mapadapter"
	"github.com/joeblew999/geofield/internal/search"
	"github.com/joeblew999/geofield/internal/shape"
)

// mockProvider is a Provider driven by function fields.
type mockProvider struct {
	PredictFn func(ctx context.Context, text string) ([]search.Prediction, error)
	ResolveFn func(ctx context.Context, id string) (search.Place, error)
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Predict(ctx context.Context, text string) ([]search.Prediction, error) {
	return m.PredictFn(ctx, text)
}

func (m *mockProvider) Resolve(ctx context.Context, id string) (search.Place, error) {
	return m.ResolveFn(ctx, id)
}

func threePredictions(context.Context, string) ([]search.Prediction, error) {
	return []search.Prediction{
		{Description: "Bath, UK", PlaceID: "a"},
		{Description: "Bathurst, AU", PlaceID: "b"},
		{Description: "Bathgate, UK", PlaceID: "c"},
	}, nil
}

func newOverlay(t *testing.T, p *mockProvider) (*search.Overlay, *shape.Controller) {
	t.Helper()
	a, err := mapadapter.Open(mapadapter.BackendVector, "map", mapadapter.MapOptions{Zoom: 2})
	if err != nil {
		t.Fatal(err)
	}
	c, err := shape.New(a, shape.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return search.New(p, c, search.Options{MaxZoom: 14}), c
}

func press(t *testing.T, o *search.Overlay, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if _, err := o.Key(context.Background(), k, nil); err != nil {
			t.Fatalf("key %s: %v", k, err)
		}
	}
}

func TestKeyboardWraparound(t *testing.T) {
	o, _ := newOverlay(t, &mockProvider{PredictFn: threePredictions})
	if _, err := o.Query(context.Background(), "Bath"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		keys []string
		want int
	}{
		{[]string{search.KeyDown}, 0},
		{[]string{search.KeyDown, search.KeyDown}, 2},
		{[]string{search.KeyDown}, 0},
		{[]string{search.KeyUp}, 2},
		{[]string{search.KeyEscape}, -1},
		{[]string{search.KeyUp}, 2},
	}
	for i, tt := range tests {
		press(t, o, tt.keys...)
		if got := o.View().Highlight; got != tt.want {
			t.Fatalf("step %d: highlight=%d, want %d", i, got, tt.want)
		}
	}
}

func TestEscapeHidesButKeepsText(t *testing.T) {
	o, _ := newOverlay(t, &mockProvider{PredictFn: threePredictions})
	o.Query(context.Background(), "Bath")
	press(t, o, search.KeyEscape)

	v := o.View()
	if v.Visible || v.Text != "Bath" || len(v.Items) != 3 {
		t.Fatalf("view=%+v", v)
	}
	o.Focus()
	if !o.View().Visible {
		t.Fatal("focus did not re-show results")
	}
}

func TestEnterSelectsHighlighted(t *testing.T) {
	o, c := newOverlay(t, &mockProvider{
		PredictFn: threePredictions,
		ResolveFn: func(_ context.Context, id string) (search.Place, error) {
			if id != "b" {
				t.Errorf("resolved %q, want b", id)
			}
			return search.Place{Location: orb.Point{149.5, -33.4}}, nil
		},
	})
	o.Query(context.Background(), "Bath")

	if sel, err := o.Key(context.Background(), search.KeyEnter, nil); err != nil || sel != nil {
		t.Fatalf("enter with nothing highlighted: sel=%v err=%v", sel, err)
	}

	press(t, o, search.KeyDown, search.KeyDown)
	sel, err := o.Key(context.Background(), search.KeyEnter, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sel == nil || sel.Place.Location != (orb.Point{149.5, -33.4}) {
		t.Fatalf("selection=%+v", sel)
	}
	if c.State() != shape.StateActive || c.Snapshot().Address != "Bathurst, AU" {
		t.Fatalf("controller=%+v", c.Snapshot())
	}
	if v := c.Adapter().Viewport(); v.Zoom != 14 {
		t.Fatalf("zoom=%d, want 14 for a place without viewport", v.Zoom)
	}
	if o.View().Visible {
		t.Fatal("list still visible after selection")
	}
}

func TestSelectDeclinedKeepsShape(t *testing.T) {
	o, c := newOverlay(t, &mockProvider{
		PredictFn: threePredictions,
		ResolveFn: func(context.Context, string) (search.Place, error) {
			return search.Place{Location: orb.Point{1, 1}}, nil
		},
	})
	if _, err := c.PlaceFromSearch(orb.Point{0, 0}, "", nil); err != nil {
		t.Fatal(err)
	}
	before := c.Value()

	o.Query(context.Background(), "Bath")
	_, err := o.Select(context.Background(), 0, func() bool { return false })
	if !errors.Is(err, shape.ErrOverwriteDeclined) {
		t.Fatalf("err=%v, want ErrOverwriteDeclined", err)
	}
	if c.Value() != before {
		t.Fatal("declined selection changed the shape")
	}
}

func TestSupersededResponseDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	p := &mockProvider{PredictFn: func(_ context.Context, text string) ([]search.Prediction, error) {
		if text == "slow" {
			close(started)
			<-release
		}
		return []search.Prediction{{Description: text, PlaceID: text}}, nil
	}}
	o, _ := newOverlay(t, p)

	errc := make(chan error, 1)
	go func() {
		_, err := o.Query(context.Background(), "slow")
		errc <- err
	}()
	<-started
	if _, err := o.Query(context.Background(), "fast"); err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := <-errc; !errors.Is(err, search.ErrSuperseded) {
		t.Fatalf("err=%v, want ErrSuperseded", err)
	}
	if v := o.View(); len(v.Items) != 1 || v.Items[0].PlaceID != "fast" {
		t.Fatalf("items=%+v, want the fast result", v.Items)
	}
}

func TestServiceErrorClearsResults(t *testing.T) {
	fail := false
	o, _ := newOverlay(t, &mockProvider{PredictFn: func(ctx context.Context, text string) ([]search.Prediction, error) {
		if fail {
			return nil, &search.ServiceError{Provider: "mock", Status: "OVER_QUERY_LIMIT"}
		}
		return threePredictions(ctx, text)
	}})
	o.Query(context.Background(), "Bath")
	fail = true

	_, err := o.Query(context.Background(), "Bath, U")
	var se *search.ServiceError
	if !errors.As(err, &se) || se.Status != "OVER_QUERY_LIMIT" {
		t.Fatalf("err=%v", err)
	}
	if v := o.View(); v.Visible || len(v.Items) != 0 {
		t.Fatalf("view=%+v, want cleared", v)
	}
}

func TestEmptyQueryClears(t *testing.T) {
	o, _ := newOverlay(t, &mockProvider{PredictFn: threePredictions})
	o.Query(context.Background(), "Bath")
	preds, err := o.Query(context.Background(), "  ")
	if err != nil || preds != nil {
		t.Fatalf("preds=%v err=%v", preds, err)
	}
	if len(o.View().Items) != 0 {
		t.Fatal("results not cleared")
	}
}

func TestToggle(t *testing.T) {
	o, _ := newOverlay(t, &mockProvider{PredictFn: threePredictions})
	if o.Toggle() {
		t.Fatal("first toggle should close the open panel")
	}
	if !o.Toggle() {
		t.Fatal("second toggle should reopen")
	}
}

func TestLayoutHighlightsMatches(t *testing.T) {
	item := search.Layout(0, search.Prediction{
		Description: "Bath, Somerset, UK",
		Terms:       []search.Term{{Value: "Bath", Offset: 0}, {Value: "Somerset", Offset: 6}, {Value: "UK", Offset: 16}},
		Matches:     []search.Match{{Offset: 0, Length: 3}},
	})
	if len(item.Title) != 2 || !item.Title[0].Match || item.Title[0].Text != "Bat" || item.Title[1].Text != "h" {
		t.Fatalf("title=%+v", item.Title)
	}
	if got := search.Text(item.Detail); got != "Somerset, UK" {
		t.Fatalf("detail=%q", got)
	}
}

func TestLayoutHighlightsCharacters(t *testing.T) {
	item := search.Layout(0, search.Prediction{
		Description: "Zürich, Schweiz",
		Terms:       []search.Term{{Value: "Zürich", Offset: 0}, {Value: "Schweiz", Offset: 8}},
		Matches:     []search.Match{{Offset: 0, Length: 2}, {Offset: 8, Length: 20}},
	})
	if len(item.Title) != 2 || item.Title[0].Text != "Zü" || item.Title[1].Text != "rich" {
		t.Fatalf("title=%+v", item.Title)
	}
	for _, seg := range append(item.Title, item.Detail...) {
		if !utf8.ValidString(seg.Text) {
			t.Fatalf("segment %q is not valid UTF-8", seg.Text)
		}
	}
	if len(item.Detail) != 1 || !item.Detail[0].Match || item.Detail[0].Text != "Schweiz" {
		t.Fatalf("detail=%+v", item.Detail)
	}
}
